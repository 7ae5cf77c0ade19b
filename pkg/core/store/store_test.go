package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"capital_waterfall/pkg/core/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleScenario(name string) config.Scenario {
	noi := 1_000_000.0
	amount := 4_000_000.0
	return config.Scenario{
		Name:       name,
		Operations: config.OperationsSpec{Horizon: 3, FirstYearNOI: &noi},
		Capital: config.CapitalSpec{
			InitialInvestment: 6_000_000,
			DebtTranches: []config.TrancheSpec{
				{ID: "senior", Amount: &amount, Rate: 0.06, TermYears: 3, Type: "interest_only"},
			},
		},
		Waterfall: config.WaterfallSpec{
			EquityClasses: []config.EquityClassSpec{{ID: "LP", ContributionPct: 1}},
		},
	}
}

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

// =============================================================================
// FILE STORE
// =============================================================================

func TestFileScenarioStore_SaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	fs, err := NewFileScenarioStore(t.TempDir())
	require.NoError(t, err)
	fs.now = fixedClock(t0, t0, t1)

	first, err := fs.Save(ctx, sampleScenario("beta"))
	require.NoError(t, err)
	_, err = fs.Save(ctx, sampleScenario("alpha"))
	require.NoError(t, err)

	updated := sampleScenario("beta")
	updated.Capital.InitialInvestment = 7_000_000
	second, err := fs.Save(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the id")
	assert.True(t, second.CreatedAt.Equal(t0))
	assert.True(t, second.UpdatedAt.Equal(t1))

	loaded, err := fs.Load(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, first.ID, loaded.ID)
	assert.Equal(t, 7_000_000.0, loaded.Scenario.Capital.InitialInvestment)
	assert.Equal(t, updated.ToInput(), loaded.Scenario.ToInput())

	list, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)

	require.NoError(t, fs.Delete(ctx, "alpha"))
	_, err = fs.Load(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fs.Delete(ctx, "alpha"), ErrNotFound)
}

func TestFileScenarioStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileScenarioStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("[unclosed"), 0o644))
	_, err = fs.Save(context.Background(), sampleScenario("ok"))
	require.NoError(t, err)

	list, err := fs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].Name)
}

func TestScenarioNames(t *testing.T) {
	fs, err := NewFileScenarioStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "a/b", ".hidden", "with space"} {
		_, err := fs.Save(context.Background(), sampleScenario(name))
		assert.Error(t, err, "name %q", name)
	}
	for _, name := range []string{"deal-1", "Deal_2.v3"} {
		_, err := fs.Save(context.Background(), sampleScenario(name))
		assert.NoError(t, err, "name %q", name)
	}
}

func TestFileScenarioStore_CanceledContext(t *testing.T) {
	fs, err := NewFileScenarioStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fs.Save(ctx, sampleScenario("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// POSTGRES STORE
// =============================================================================

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgconn.CommandTag), ret.Error(1)
}

func (m *MockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgx.Row)
}

// stubRow scans fixed values into the destination pointers.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *[]byte:
			*p = r.values[i].([]byte)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestPGScenarioStore_Save(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()

	db := new(MockQuerier)
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool { return len(sql) > 0 }), mock.MatchedBy(func(args []any) bool {
		if len(args) != 4 || args[1] != "deal" || !args[3].(time.Time).Equal(now) {
			return false
		}
		var s config.Scenario
		return json.Unmarshal(args[2].([]byte), &s) == nil && s.Name == "deal"
	})).Return(stubRow{values: []any{id, now, now}}).Once()

	r := NewPGScenarioStore(db)
	r.now = func() time.Time { return now }

	rec, err := r.Save(ctx, sampleScenario("deal"))
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "deal", rec.Name)
	assert.Equal(t, now, rec.CreatedAt)
	db.AssertExpectations(t)
}

func TestPGScenarioStore_Load(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	blob, err := json.Marshal(sampleScenario("deal"))
	require.NoError(t, err)

	db := new(MockQuerier)
	db.On("QueryRow", ctx, mock.Anything, []any{"deal"}).Return(stubRow{values: []any{id, blob, now, now}}).Once()
	db.On("QueryRow", ctx, mock.Anything, []any{"gone"}).Return(stubRow{err: pgx.ErrNoRows}).Once()
	db.On("QueryRow", ctx, mock.Anything, []any{"down"}).Return(stubRow{err: errors.New("connection refused")}).Once()

	r := NewPGScenarioStore(db)
	rec, err := r.Load(ctx, "deal")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, sampleScenario("deal").ToInput(), rec.Scenario.ToInput())

	_, err = r.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Load(ctx, "down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestPGScenarioStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	listing := fmt.Sprintf(`[{"id":"%s","name":"deal","updated_at":"2025-06-01T00:00:00Z"}]`, id)

	db := new(MockQuerier)
	db.On("QueryRow", ctx, mock.Anything, []any(nil)).Return(stubRow{values: []any{[]byte(listing)}}).Once()
	db.On("Exec", ctx, mock.Anything, []any{"deal"}).Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	db.On("Exec", ctx, mock.Anything, []any{"gone"}).Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	r := NewPGScenarioStore(db)
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "deal", list[0].Name)

	require.NoError(t, r.Delete(ctx, "deal"))
	assert.ErrorIs(t, r.Delete(ctx, "gone"), ErrNotFound)
	db.AssertExpectations(t)
}

func TestPGScenarioStore_EnsureSchema(t *testing.T) {
	ctx := context.Background()
	db := new(MockQuerier)
	db.On("Exec", ctx, Schema, []any(nil)).Return(pgconn.NewCommandTag("CREATE TABLE"), nil).Once()

	require.NoError(t, NewPGScenarioStore(db).EnsureSchema(ctx))
	db.AssertExpectations(t)
}

func TestStores_SatisfyInterface(t *testing.T) {
	var _ ScenarioStore = (*FileScenarioStore)(nil)
	var _ ScenarioStore = (*PGScenarioStore)(nil)
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib")
	st, closeFn, err := Open(context.Background(), config.StoreConfig{Driver: "file", Dir: dir})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &FileScenarioStore{}, st)
	assert.DirExists(t, dir)

	_, closeFn, err = Open(context.Background(), config.StoreConfig{Driver: "sqlite"})
	assert.Error(t, err)
	closeFn()

	_, closeFn, err = Open(context.Background(), config.StoreConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "DSN not set")
	closeFn()
}
