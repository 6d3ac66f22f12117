package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID-backed identifier used for runs and test cases.
type ID string

// NewID generates a new random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates s as a UUID and returns it as an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(parsed.String()), nil
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// Validate reports whether the ID holds a well-formed UUID.
func (id ID) Validate() error {
	_, err := ParseID(string(id))
	return err
}

// WithSuffix derives a related identifier, used for strategy variants
// that must stay traceable to their originating case.
func (id ID) WithSuffix(suffix string) ID {
	return ID(string(id) + "-" + suffix)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal id: %w", err)
	}
	*id = ID(s)
	return nil
}
