// Package pagination encodes the opaque cursors filter_rows hands out.
//
// A cursor pins a dataset handle, a row offset into the sorted filtered view,
// a page size and the selection the rows were filtered with. The selection
// travels inside the token so a client can resume with the cursor alone; its
// fingerprint detects edits made to the token in transit.
package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const schemaVersion = 1

var (
	ErrEmpty      = errors.New("cursor: empty token")
	ErrTampered   = errors.New("cursor: selection does not match its fingerprint")
	ErrMalformed  = errors.New("cursor: malformed token")
	ErrNoDataset  = errors.New("cursor: dataset id required")
	ErrBadOffset  = errors.New("cursor: offset must be >= 0")
	ErrBadPageLen = errors.New("cursor: page size must be > 0")
)

// Cursor is the decoded token. Field names are kept short on the wire.
type Cursor struct {
	V   int             `json:"v"`
	Did string          `json:"did"`
	Off int             `json:"off"`
	Ps  int             `json:"ps"`
	Iat int64           `json:"iat"`
	Fh  string          `json:"fh,omitempty"`
	Sel json.RawMessage `json:"sel,omitempty"`
}

// IssuedAt is the time the cursor was minted.
func (c *Cursor) IssuedAt() time.Time { return time.Unix(c.Iat, 0) }

// Selection unmarshals the embedded selection into v. A cursor without a
// selection leaves v untouched.
func (c *Cursor) Selection(v any) error {
	if len(c.Sel) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Sel, v); err != nil {
		return fmt.Errorf("%w: selection: %v", ErrMalformed, err)
	}
	return nil
}

// Next mints the token for the page starting at off over dataset did,
// embedding sel so the follow-up call needs no other arguments.
func Next(did string, off, pageSize int, sel any) (string, error) {
	raw, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("cursor: encode selection: %w", err)
	}
	return EncodeCursor(Cursor{Did: did, Off: off, Ps: pageSize, Fh: Fingerprint(raw), Sel: raw})
}

// Resume decodes token and unmarshals its selection into sel.
func Resume(token string, sel any) (*Cursor, error) {
	c, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	if err := c.Selection(sel); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeCursor fills defaults, checks c and returns it as unpadded URL-safe
// base64 of its minified JSON.
func EncodeCursor(c Cursor) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, ErrEmpty
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.Fh != "" && len(c.Sel) > 0 && Fingerprint(c.Sel) != c.Fh {
		return nil, ErrTampered
	}
	return &c, nil
}

// Fingerprint is a short hex digest of a serialized selection.
func Fingerprint(sel []byte) string {
	sum := sha256.Sum256(sel)
	return hex.EncodeToString(sum[:8])
}

func (c *Cursor) check() error {
	if c.V <= 0 {
		c.V = schemaVersion
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	switch {
	case strings.TrimSpace(c.Did) == "":
		return ErrNoDataset
	case c.Off < 0:
		return ErrBadOffset
	case c.Ps <= 0:
		return ErrBadPageLen
	}
	return nil
}

// NextOffset is the offset following a page of n rows read at curr.
func NextOffset(curr, n int) int {
	return max(curr, 0) + max(n, 0)
}
