package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	chatuc "github.com/kailas-cloud/semwalk/internal/usecase/chat"
)

var (
	chatConversation string
	chatSystem       string
	chatTemperature  float32
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the completion model",
	Long: `Starts an interactive chat. Every turn is stored in the conversation log,
so a conversation can be resumed with --conversation. Type "exit" to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "resume an existing conversation")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "system prompt sent with every turn")
	chatCmd.Flags().Float32Var(&chatTemperature, "temperature", 0, "sampling temperature (default from config)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.chat == nil {
		return errors.New("chat needs chat.model in the config")
	}

	var temperature *float32
	if cmd.Flags().Changed("temperature") {
		temperature = &chatTemperature
	}

	conversationID := chatConversation
	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("> ")
		if !in.Scan() {
			break
		}
		prompt := strings.TrimSpace(in.Text())
		if prompt == "" {
			continue
		}
		if strings.EqualFold(prompt, "exit") {
			break
		}

		reply, err := a.chat.Complete(cmd.Context(), chatuc.Request{
			ConversationID: conversationID,
			System:         chatSystem,
			Prompt:         prompt,
			Temperature:    temperature,
		})
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		if conversationID == "" {
			conversationID = reply.ConversationID
			cmd.Printf("(conversation %s)\n", conversationID)
		}
		cmd.Println(reply.Content)
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
