package parser

import "sync"

// StringIntern hands out one shared copy of each server and player name seen
// during an extraction run. Workers share the parser, so it is locked.
type StringIntern struct {
	mu    sync.Mutex
	names map[string]string
}

func NewStringIntern() *StringIntern {
	return &StringIntern{names: make(map[string]string, 256)}
}

// Intern returns the first copy of s seen by this interner.
func (si *StringIntern) Intern(s string) string {
	si.mu.Lock()
	defer si.mu.Unlock()
	if shared, ok := si.names[s]; ok {
		return shared
	}
	si.names[s] = s
	return s
}
