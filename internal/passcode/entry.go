// Package passcode models the fixed-length, one-digit-per-box passcode
// control used when joining a club.
package passcode

import (
	"errors"
	"fmt"
	"strings"
)

// Supported passcode lengths.
const (
	ShortLength   = 4
	DefaultLength = 6
)

var (
	ErrInvalidLength   = errors.New("passcode length must be 4 or 6")
	ErrInvalidPosition = errors.New("passcode position out of range")
)

// ValidateLength reports whether n is a supported passcode length.
func ValidateLength(n int) error {
	if n != ShortLength && n != DefaultLength {
		return fmt.Errorf("%w: got %d", ErrInvalidLength, n)
	}
	return nil
}

// Entry is an ordered, fixed-length sequence of boxes. Each box is either
// empty or holds exactly one decimal digit. Entry values are immutable;
// every edit returns a new Entry of the same length.
type Entry struct {
	boxes []string
}

// NewEntry returns an all-empty entry of length n.
func NewEntry(n int) (Entry, error) {
	if err := ValidateLength(n); err != nil {
		return Entry{}, err
	}
	return Entry{boxes: make([]string, n)}, nil
}

// Len returns the number of boxes.
func (e Entry) Len() int { return len(e.boxes) }

// At returns the content of box i, or "" when i is out of range.
func (e Entry) At(i int) string {
	if i < 0 || i >= len(e.boxes) {
		return ""
	}
	return e.boxes[i]
}

// Boxes returns a copy of the box contents.
func (e Entry) Boxes() []string {
	out := make([]string, len(e.boxes))
	copy(out, e.boxes)
	return out
}

// Complete reports whether every box holds a digit.
func (e Entry) Complete() bool {
	if len(e.boxes) == 0 {
		return false
	}
	for _, b := range e.boxes {
		if b == "" {
			return false
		}
	}
	return true
}

// Code returns the concatenated passcode. The second result is false
// while any box is still empty.
func (e Entry) Code() (string, bool) {
	if !e.Complete() {
		return "", false
	}
	return strings.Join(e.boxes, ""), true
}

// Cleared returns an all-empty entry of the same length.
func (e Entry) Cleared() Entry {
	return Entry{boxes: make([]string, len(e.boxes))}
}

// Equal reports whether both entries hold the same boxes.
func (e Entry) Equal(other Entry) bool {
	if len(e.boxes) != len(other.boxes) {
		return false
	}
	for i := range e.boxes {
		if e.boxes[i] != other.boxes[i] {
			return false
		}
	}
	return true
}

func (e Entry) with(i int, v string) Entry {
	next := e.Boxes()
	next[i] = v
	return Entry{boxes: next}
}

// IsDigit reports whether s is exactly one decimal digit.
func IsDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
