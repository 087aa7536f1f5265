package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one named value of a State.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// State is the ordered mapping of stage output keys to their text.
//
// A run owns its State; observers only ever see snapshots. The zero value is
// an empty state ready to use.
type State struct {
	keys   []string
	values map[string]string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *State) Get(key string) (string, bool) {
	if s == nil || s.values == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key has been written.
func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set writes a new key. Keys are write-once: each stage produces exactly one
// new key, so overwriting is an error.
func (s *State) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("state key must not be empty")
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, exists := s.values[key]; exists {
		return fmt.Errorf("state key %q already written", key)
	}
	s.keys = append(s.keys, key)
	s.values[key] = value
	return nil
}

// Keys returns the keys in insertion order.
func (s *State) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Len returns the number of keys.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Entries returns the key/value pairs in insertion order.
func (s *State) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Entry{Key: k, Value: s.values[k]})
	}
	return out
}

// Snapshot returns an independent copy.
func (s *State) Snapshot() *State {
	c := NewState()
	if s == nil {
		return c
	}
	c.keys = append(c.keys, s.keys...)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON encodes the state as a JSON object with keys in insertion order.
func (s *State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of strings, keeping the document's key order.
func (s *State) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if tok == nil {
		*s = State{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode state: expected object")
	}

	out := NewState()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode state: non-string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode state key %q: %w", key, err)
		}
		if err := out.Set(key, value); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	*s = *out
	return nil
}
