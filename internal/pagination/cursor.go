package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor is the position after which the next page starts. Pages are ordered
// newest first with the ID breaking timestamp ties.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// After reports whether an item keyed (id, ts) belongs on a page that starts
// after c.
func (c *Cursor) After(id string, ts time.Time) bool {
	if c == nil {
		return true
	}
	if ts.Equal(c.Timestamp) {
		return id < c.LastID
	}
	return ts.Before(c.Timestamp)
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor packs the last ID and timestamp of a page into a URL-safe token
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := timestamp.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor reverses EncodeCursor. An empty cursor is the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, Timestamp: timestamp}, nil
}

// NewPage builds a page from up to limit+1 fetched items. The extra item only
// signals that another page exists and is dropped.
func NewPage[T any](items []T, limit int, key func(T) (string, time.Time)) *PageResult[T] {
	page := &PageResult[T]{Items: items}
	if limit <= 0 || len(items) <= limit {
		if page.Items == nil {
			page.Items = []T{}
		}
		return page
	}

	page.Items = items[:limit]
	page.HasMore = true
	id, ts := key(page.Items[limit-1])
	page.Cursor = EncodeCursor(id, ts)
	return page
}
