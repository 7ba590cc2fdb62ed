package vless

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UserSet is the configured set of accepted VLESS user ids. Membership is
// checked without an early exit so that the time taken does not leak which
// entry (if any) matched.
type UserSet struct {
	ids [][16]byte
}

// ParseUserSet builds a UserSet from a comma-separated list of UUID strings,
// the form the gateway's configuration accepts for "accepted user id(s)".
func ParseUserSet(csv string) (UserSet, error) {
	var set UserSet
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return UserSet{}, fmt.Errorf("vless: invalid user id %q: %w", raw, err)
		}
		set.ids = append(set.ids, id)
	}
	if len(set.ids) == 0 {
		return UserSet{}, fmt.Errorf("vless: accepted user id set must not be empty")
	}
	return set, nil
}

// Contains reports whether id is a member of the set. Every entry is
// compared; none of them short-circuits the loop.
func (s UserSet) Contains(id [16]byte) bool {
	var found int
	for _, candidate := range s.ids {
		found |= subtle.ConstantTimeCompare(candidate[:], id[:])
	}
	return found == 1
}

// Len reports how many user ids are configured.
func (s UserSet) Len() int {
	return len(s.ids)
}
