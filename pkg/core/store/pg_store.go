package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"capital_waterfall/pkg/core/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the slice of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema of the scenarios table. The scenario itself is a JSONB blob.
const Schema = `
	CREATE TABLE IF NOT EXISTS scenarios (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		scenario_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// PGScenarioStore keeps scenarios in Postgres.
type PGScenarioStore struct {
	db  querier
	now func() time.Time
}

// NewPGScenarioStore wraps a pool (or any pgx querier).
func NewPGScenarioStore(db querier) *PGScenarioStore {
	return &PGScenarioStore{db: db, now: time.Now}
}

// EnsureSchema creates the scenarios table if it does not exist.
func (r *PGScenarioStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save upserts by name. On conflict the row keeps its id and created_at.
func (r *PGScenarioStore) Save(ctx context.Context, s config.Scenario) (*Record, error) {
	if err := checkName(s.Name); err != nil {
		return nil, err
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenario: %w", err)
	}

	query := `
		INSERT INTO scenarios (id, name, scenario_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name)
		DO UPDATE SET
			scenario_json = EXCLUDED.scenario_json,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	rec := &Record{Name: s.Name, Scenario: s}
	err = r.db.QueryRow(ctx, query, uuid.New(), s.Name, jsonData, r.now().UTC()).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}
	return rec, nil
}

func (r *PGScenarioStore) Load(ctx context.Context, name string) (*Record, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	query := `SELECT id, scenario_json, created_at, updated_at FROM scenarios WHERE name = $1`

	rec := &Record{Name: name}
	var jsonData []byte
	err := r.db.QueryRow(ctx, query, name).Scan(&rec.ID, &jsonData, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	if err := json.Unmarshal(jsonData, &rec.Scenario); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	return rec, nil
}

// List aggregates server-side so the whole listing is one row.
func (r *PGScenarioStore) List(ctx context.Context) ([]Summary, error) {
	query := `
		SELECT COALESCE(
			json_agg(json_build_object('id', id, 'name', name, 'updated_at', updated_at) ORDER BY name),
			'[]'::json)
		FROM scenarios
	`
	var jsonData []byte
	if err := r.db.QueryRow(ctx, query).Scan(&jsonData); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	var out []Summary
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario list: %w", err)
	}
	return out, nil
}

func (r *PGScenarioStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM scenarios WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
