package domain

// MaxCorpusNameLen bounds corpus names; they become key and table names.
const MaxCorpusNameLen = 64

// IsValidCorpusName reports whether name matches [a-zA-Z0-9_-]{1,64}.
func IsValidCorpusName(name string) bool {
	if name == "" || len(name) > MaxCorpusNameLen {
		return false
	}
	for _, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// CorpusInfo describes a stored corpus. Dimension is 0 when the backend
// cannot tell (an index created outside semwalk, an empty table).
type CorpusInfo struct {
	Name      string
	Dimension int
	Count     int
}

// StoredDocument is a document together with its backend id.
type StoredDocument struct {
	ID int64
	Document
}
