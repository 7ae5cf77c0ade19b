// Package store persists named scenarios. The pipeline core never touches
// it; the binaries use it to keep a library of scenarios between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"capital_waterfall/pkg/core/config"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no scenario has the requested name.
	ErrNotFound = errors.New("scenario not found")
	// ErrInvalidName rejects names unusable as file names or URL segments.
	ErrInvalidName = errors.New("invalid scenario name")
)

// Record is a stored scenario plus bookkeeping.
type Record struct {
	ID        uuid.UUID       `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Scenario  config.Scenario `json:"scenario" yaml:"scenario"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Summary is one List entry.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScenarioStore saves scenarios keyed by name. Save on an existing name
// replaces the scenario and keeps the record ID and creation time.
type ScenarioStore interface {
	Save(ctx context.Context, s config.Scenario) (*Record, error)
	Load(ctx context.Context, name string) (*Record, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, name string) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// checkName keeps names usable as file names and URL segments.
func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
