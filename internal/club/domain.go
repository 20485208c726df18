// internal/club/domain.go
package club

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingClubID is returned when a handoff does not identify the joined club.
var ErrMissingClubID = errors.New("handoff is missing the club id")

// ActionJoin marks a handoff produced by the join workflow.
const ActionJoin = "join"

// ID identifies a club. The remote API sends numeric ids, but the value is
// treated as opaque on this side.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("club id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("club id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Club is the search-result projection of a club.
type Club struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"club_type,omitempty"`
	Topic       string `json:"topic,omitempty"`
	ImagePath   string `json:"image_url,omitempty"`

	// ImageURL is ImagePath resolved against the API base address.
	ImageURL string `json:"-"`
}

// Tags returns the non-empty type and topic labels, in that order.
func (c Club) Tags() []string {
	var tags []string
	if c.Type != "" {
		tags = append(tags, c.Type)
	}
	if c.Topic != "" {
		tags = append(tags, c.Topic)
	}
	return tags
}

// JoinRequest is sent to the remote API to join a club by passcode.
type JoinRequest struct {
	ClubName string `json:"name"`
	Passcode string `json:"password"`
}

// Handoff is what the join workflow passes to the confirmation screen.
type Handoff struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Action   string `json:"action"`
}

// NewJoinHandoff builds the handoff for a club that was just joined.
func NewJoinHandoff(c Club) Handoff {
	return Handoff{
		ID:       c.ID,
		Name:     c.Name,
		ImageURL: c.ImageURL,
		Action:   ActionJoin,
	}
}

// Validate reports whether the handoff can be rendered.
func (h Handoff) Validate() error {
	if strings.TrimSpace(string(h.ID)) == "" {
		return ErrMissingClubID
	}
	return nil
}

// ResolveImageURL prefixes a relative image reference with the API base
// address. Absolute URLs are returned unchanged and an empty reference
// stays empty.
func ResolveImageURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
