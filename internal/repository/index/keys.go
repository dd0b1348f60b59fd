package index

import (
	"strconv"
	"strings"
)

// Document hash fields.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
)

// keys lays out one corpus in the keyspace:
//
//	<prefix><corpus>             FT index
//	<prefix><corpus>:doc:<id>    document hashes
//	<prefix><corpus>:seq         last assigned document id
//	<prefix><corpus>:dim         vector dimension set at Create
type keys struct {
	prefix string
}

func (k keys) index(corpus string) string {
	return k.prefix + corpus
}

func (k keys) docPrefix(corpus string) string {
	return k.prefix + corpus + ":doc:"
}

func (k keys) doc(corpus string, id int64) string {
	return k.docPrefix(corpus) + strconv.FormatInt(id, 10)
}

func (k keys) seq(corpus string) string {
	return k.prefix + corpus + ":seq"
}

func (k keys) dim(corpus string) string {
	return k.prefix + corpus + ":dim"
}

// docID parses the id out of a document key; ok is false for foreign keys.
func (k keys) docID(corpus, key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, k.docPrefix(corpus))
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}
