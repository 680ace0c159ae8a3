package utils

// KeySet is an insertion-tracking set of string keys. It is not safe for
// concurrent use; the scrape loop owns its sets exclusively.
type KeySet struct {
	keys map[string]struct{}
}

// NewKeySet returns an empty set.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]struct{})}
}

// Add inserts key and reports whether it was new.
func (s *KeySet) Add(key string) bool {
	if _, exists := s.keys[key]; exists {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Size returns the number of distinct keys.
func (s *KeySet) Size() int {
	return len(s.keys)
}
