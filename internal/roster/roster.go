// Package roster loads the list of channel cards shown on the page
package roster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrBlankUsername = errors.New("channel username is blank")

// Channel is one card on the page
type Channel struct {
	Username string `yaml:"username" json:"username"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Roster is the ordered list of cards
type Roster struct {
	Channels []Channel `yaml:"channels" json:"channels"`
}

// Load reads a roster from a YAML file
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes and validates a roster
func Parse(r io.Reader) (*Roster, error) {
	var ro Roster
	if err := yaml.NewDecoder(r).Decode(&ro); err != nil {
		if errors.Is(err, io.EOF) {
			return &Roster{}, nil
		}
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	for i := range ro.Channels {
		ch := &ro.Channels[i]
		ch.Username = strings.TrimSpace(ch.Username)
		if ch.Username == "" {
			return nil, fmt.Errorf("channel %d: %w", i, ErrBlankUsername)
		}
		if ch.Name == "" {
			ch.Name = ch.Username
		}
	}
	return &ro, nil
}

// Usernames returns the identities in card order, duplicates included
func (r *Roster) Usernames() []string {
	out := make([]string, 0, len(r.Channels))
	for _, ch := range r.Channels {
		out = append(out, ch.Username)
	}
	return out
}
