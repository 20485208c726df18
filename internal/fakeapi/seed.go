// internal/fakeapi/seed.go
package fakeapi

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedClub is a club as written in a seed file. Passcode is plaintext here
// and hashed on load.
type SeedClub struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"club_type"`
	Topic       string   `yaml:"topic"`
	ImageURL    string   `yaml:"image_url"`
	Passcode    string   `yaml:"passcode"`
	Members     []string `yaml:"members"`
}

type Seed struct {
	Clubs []SeedClub `yaml:"clubs"`
}

// DefaultSeed is used when no seed file is given.
func DefaultSeed() Seed {
	return Seed{Clubs: []SeedClub{
		{
			Name:        "Chess Club",
			Description: "Weekly **rapid** and *blitz* games. All levels welcome.",
			Type:        "Board games",
			Topic:       "Strategy",
			Passcode:    "123456",
		},
		{
			Name:        "Trail Runners",
			Description: "Saturday morning runs on the ridge trail.\n\n- 10k loop\n- 21k for the brave",
			Type:        "Sports",
			Topic:       "Running",
			Passcode:    "240601",
		},
		{
			Name:        "Film Society",
			Description: "Monthly screenings followed by a discussion.",
			Type:        "Culture",
			Topic:       "Cinema",
			Passcode:    "808080",
		},
	}}
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("failed to parse seed: %w", err)
	}
	return s, nil
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Apply adds every seed club to the service.
func (s Seed) Apply(ctx context.Context, svc Service) error {
	for _, c := range s.Clubs {
		if _, err := svc.AddClub(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
