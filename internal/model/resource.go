package model

import (
	"fmt"
	"strings"
)

// ResourceKey is the canonical identity of an authority. All references to
// the same case, code section, or article share one key.
type ResourceKey struct {
	Kind Kind
	ID   []string
}

// NewResourceKey builds a key from already-normalized parts
func NewResourceKey(kind Kind, parts ...string) ResourceKey {
	return ResourceKey{Kind: kind, ID: parts}
}

// RawKey returns the singleton fallback key for an unresolved token
func RawKey(index int) ResourceKey {
	return ResourceKey{Kind: KindOther, ID: []string{"raw", fmt.Sprintf("%d", index)}}
}

// String renders the key as kind::part::part, skipping empty parts.
// Raw fallback keys render as raw:<index>.
func (k ResourceKey) String() string {
	if k.IsRaw() {
		return "raw:" + k.ID[1]
	}
	parts := []string{k.Kind.String()}
	for _, p := range k.ID {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "::")
}

// IsRaw reports whether k is a raw fallback key
func (k ResourceKey) IsRaw() bool {
	return k.Kind == KindOther && len(k.ID) == 2 && k.ID[0] == "raw"
}

// IsZero reports whether the key is unset
func (k ResourceKey) IsZero() bool {
	return len(k.ID) == 0
}

// Equal compares two keys by their rendered identity
func (k ResourceKey) Equal(o ResourceKey) bool {
	return k.String() == o.String()
}

// MarshalText implements encoding.TextMarshaler so keys can be map keys in JSON
func (k ResourceKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
