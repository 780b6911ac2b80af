package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned for tokens that do not decode to a Cursor.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the opaque pagination state we encode/decode.
// ID + CreatedUnix (in millis) establish a stable keyset position.
type Cursor struct {
	ID          uint64 `json:"id"`
	CreatedUnix int64  `json:"ts,omitempty"`
}

// IsZero reports whether c points at the first page.
func (c Cursor) IsZero() bool { return c.ID == 0 && c.CreatedUnix == 0 }

// Time returns the cursor timestamp in UTC.
func (c Cursor) Time() time.Time { return time.UnixMilli(c.CreatedUnix).UTC() }

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Next builds the token for the page after a result of n+1 rows requested with limit n.
// It returns nil when there is no further page.
func Next(fetched, limit int, last Cursor) *string {
	if fetched <= limit {
		return nil
	}
	token, err := Encode(last)
	if err != nil {
		return nil
	}
	return &token
}

// ClampLimit applies a default and an upper bound to a requested page size.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
