// internal/fakeapi/directory.go
package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"clubportal/internal/club"
	"clubportal/internal/passcode"
)

var (
	ErrClubNotFound      = errors.New("club not found")
	ErrIncorrectPasscode = errors.New("incorrect passcode")
	ErrAlreadyMember     = errors.New("already a member of this club")
	ErrDuplicateClub     = errors.New("a club with this name already exists")
	ErrInvalidClub       = errors.New("club name is required")
	ErrInvalidPasscode   = errors.New("club passcode must be 4 or 6 digits")
)

// Service defines the club directory behind the fake API.
type Service interface {
	AddClub(ctx context.Context, c SeedClub) (club.Club, error)
	Search(ctx context.Context, query string) ([]club.Club, error)
	Join(ctx context.Context, member, name, code string) (club.Club, error)
	Events(ctx context.Context, id club.ID) ([]Event, error)
}

type record struct {
	club    club.Club
	hash    string
	salt    string
	members map[string]struct{}
}

// directory implements Service in memory.
type directory struct {
	events *EventLog

	mu     sync.RWMutex
	nextID int
	clubs  []*record
}

// NewService creates an empty club directory.
func NewService(events *EventLog) Service {
	if events == nil {
		events = NewEventLog()
	}
	return &directory{events: events}
}

// AddClub registers a club, hashing its passcode.
func (d *directory) AddClub(ctx context.Context, c SeedClub) (club.Club, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return club.Club{}, ErrInvalidClub
	}
	if !validPasscode(c.Passcode) {
		return club.Club{}, fmt.Errorf("%w: club %q", ErrInvalidPasscode, name)
	}
	hash, salt, err := hashPasscode(c.Passcode)
	if err != nil {
		return club.Club{}, fmt.Errorf("failed to hash passcode: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookup(name) != nil {
		return club.Club{}, fmt.Errorf("%w: %q", ErrDuplicateClub, name)
	}
	d.nextID++
	id := club.ID(strconv.Itoa(d.nextID))
	image := c.ImageURL
	if image == "" {
		image = fmt.Sprintf("static/clubs/%s.svg", id)
	}
	rec := &record{
		club: club.Club{
			ID:          id,
			Name:        name,
			Description: c.Description,
			Type:        c.Type,
			Topic:       c.Topic,
			ImagePath:   image,
		},
		hash:    hash,
		salt:    salt,
		members: make(map[string]struct{}),
	}
	for _, m := range c.Members {
		rec.members[m] = struct{}{}
	}

	if err := d.events.Append(ctx, id, 0, EventClubCreated, rec.club); err != nil {
		return club.Club{}, fmt.Errorf("failed to append event: %w", err)
	}
	d.clubs = append(d.clubs, rec)
	return rec.club, nil
}

// Search matches query case-insensitively against name and description.
// Results keep insertion order.
func (d *directory) Search(_ context.Context, query string) ([]club.Club, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]club.Club, 0)
	for _, rec := range d.clubs {
		if q == "" ||
			strings.Contains(strings.ToLower(rec.club.Name), q) ||
			strings.Contains(strings.ToLower(rec.club.Description), q) {
			out = append(out, rec.club)
		}
	}
	return out, nil
}

// Join adds member to the named club when the passcode matches.
func (d *directory) Join(ctx context.Context, member, name, code string) (club.Club, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.lookup(strings.TrimSpace(name))
	if rec == nil {
		return club.Club{}, ErrClubNotFound
	}
	id := rec.club.ID

	ok, err := verifyPasscode(code, rec.salt, rec.hash)
	if err != nil {
		return club.Club{}, fmt.Errorf("failed to verify passcode: %w", err)
	}
	if !ok {
		if err := d.events.Append(ctx, id, d.events.Version(id), EventJoinRejected, map[string]string{"member": member}); err != nil {
			return club.Club{}, fmt.Errorf("failed to append event: %w", err)
		}
		return club.Club{}, ErrIncorrectPasscode
	}
	if _, exists := rec.members[member]; exists {
		return club.Club{}, ErrAlreadyMember
	}

	if err := d.events.Append(ctx, id, d.events.Version(id), EventMemberJoined, map[string]string{"member": member}); err != nil {
		return club.Club{}, fmt.Errorf("failed to append event: %w", err)
	}
	rec.members[member] = struct{}{}
	return rec.club, nil
}

func (d *directory) Events(_ context.Context, id club.ID) ([]Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rec := range d.clubs {
		if rec.club.ID == id {
			return d.events.Load(id), nil
		}
	}
	return nil, ErrClubNotFound
}

func (d *directory) lookup(name string) *record {
	for _, rec := range d.clubs {
		if strings.EqualFold(rec.club.Name, name) {
			return rec
		}
	}
	return nil
}

func validPasscode(code string) bool {
	if passcode.ValidateLength(len(code)) != nil {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !passcode.IsDigit(code[i : i+1]) {
			return false
		}
	}
	return true
}
