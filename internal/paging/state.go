package paging

import "fmt"

// LoadState describes where a listing is in its fetch cycle.
type LoadState int

const (
	// FirstLoad means the first page is being fetched (or has not been requested yet).
	FirstLoad LoadState = iota
	// FirstLoadError means the first page fetch failed; the list is empty.
	FirstLoadError
	// NextLoad means a subsequent page is in flight.
	NextLoad
	// NextLoadError means a subsequent page fetch failed; the list is unchanged.
	NextLoadError
	// Success means the last fetch completed and the list is ready to render.
	Success
)

var stateNames = [...]string{
	FirstLoad:      "first_load",
	FirstLoadError: "first_load_error",
	NextLoad:       "next_load",
	NextLoadError:  "next_load_error",
	Success:        "success",
}

// String returns the snake_case name of the state.
func (s LoadState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("load_state(%d)", int(s))
	}
	return stateNames[s]
}

// IsError reports whether s is one of the two error states.
func (s LoadState) IsError() bool {
	return s == FirstLoadError || s == NextLoadError
}

// MarshalText encodes the state by name so JSON payloads stay readable.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *LoadState) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = LoadState(i)
			return nil
		}
	}
	return fmt.Errorf("paging: unknown load state %q", b)
}
