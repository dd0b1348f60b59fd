package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// parseAPIError extracts a human-readable error from the API response.
// wrap builds the domain error (embedding or chat) so callers map it to 502.
func parseAPIError(api string, err error, wrap func(error) error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return wrap(fmt.Errorf("%s API error %d: %s", api, reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrap(fmt.Errorf("%s API error %d: %s", api, apiErr.HTTPStatusCode, apiErr.Message))
	}

	return wrap(fmt.Errorf("%s request failed: %w", api, err))
}

// errorType labels an API failure for the errors metric.
func errorType(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return "rate_limited"
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return "auth"
		case apiErr.HTTPStatusCode >= 500:
			return "upstream"
		}
		return "api_error"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return "request_error"
	}
	return "transport"
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
