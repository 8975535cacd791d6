package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a backend identifier. The backend uses numeric IDs for most resources
// and string IDs for some (keys, assets), so ID accepts either JSON form and
// writes numeric IDs back as numbers.
type ID string

// IDFromInt converts a numeric identifier.
func IDFromInt(v int64) ID {
	return ID(strconv.FormatInt(v, 10))
}

func (id ID) String() string { return string(id) }

// IsZero reports an unset identifier.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Int64 parses the identifier as a number.
func (id ID) Int64() (int64, bool) {
	v, err := strconv.ParseInt(string(id), 10, 64)
	return v, err == nil
}

// MarshalJSON writes canonical decimal identifiers as JSON numbers. Anything
// that would not survive the round trip ("007", "+5") stays a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if v, ok := id.Int64(); ok {
		if canonical := strconv.FormatInt(v, 10); canonical == string(id) {
			return []byte(canonical), nil
		}
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number, string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Page is the backend's paginated envelope.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// PageParams selects a page; zero values are omitted from the query.
type PageParams struct {
	Page int
	Size int
}

// ErrorResponse is the backend's error body.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Variables are template variables passed to render endpoints.
type Variables map[string]string
