// Package prefs stores per-user preferences on top of the key-value table.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/noteshare/internal/index"
)

const interestsKey = "interests"

// maxInterests bounds the stored tag list.
const maxInterests = 50

// Store reads and writes user preferences.
type Store struct {
	kv index.PrefStore
}

// New returns a preference store over kv.
func New(kv index.PrefStore) *Store {
	return &Store{kv: kv}
}

// Interests returns the user's interest tags in the order they were saved.
// An unset preference yields an empty slice.
func (s *Store) Interests(ctx context.Context, userID string) ([]string, error) {
	raw, ok, err := s.kv.GetPref(ctx, userID, interestsKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("prefs: decode interests: %w", err)
	}
	return tags, nil
}

// SetInterests replaces the user's interest tags. Tags are trimmed, blanks
// dropped and duplicates removed, keeping the first occurrence.
func (s *Store) SetInterests(ctx context.Context, userID string, tags []string) ([]string, error) {
	clean := Normalize(tags)
	if len(clean) > maxInterests {
		clean = clean[:maxInterests]
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("prefs: encode interests: %w", err)
	}
	if err := s.kv.SetPref(ctx, userID, interestsKey, string(raw)); err != nil {
		return nil, err
	}
	return clean, nil
}

// Normalize trims and de-duplicates tags case-insensitively.
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
