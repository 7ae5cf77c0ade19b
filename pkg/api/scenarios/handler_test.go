package scenarios

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/logger"
	"capital_waterfall/pkg/core/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, s config.Scenario) (*store.Record, error) {
	args := m.Called(ctx, s)
	if rec, ok := args.Get(0).(*store.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Load(ctx context.Context, name string) (*store.Record, error) {
	args := m.Called(ctx, name)
	if rec, ok := args.Get(0).(*store.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]store.Summary, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]store.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

const scenarioJSON = `{
	"name": "deal",
	"operations": {"horizon": 3, "first_year_noi": 100},
	"waterfall": {"equity_classes": [{"id": "LP", "contribution_pct": 1}]}
}`

func newServer(t *testing.T, st store.ScenarioStore) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(st, logger.NewTestLogger(t)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleSave(t *testing.T) {
	st := new(MockStore)
	id := uuid.New()
	st.On("Save", mock.Anything, mock.MatchedBy(func(s config.Scenario) bool { return s.Name == "deal" })).
		Return(&store.Record{ID: id, Name: "deal", CreatedAt: time.Unix(0, 0).UTC()}, nil).Once()
	srv := newServer(t, st)

	resp, err := http.Post(srv.URL+"/api/scenarios", "application/json", strings.NewReader(scenarioJSON))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec store.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, id, rec.ID)
	st.AssertExpectations(t)
}

func TestHandleSave_RejectsInvalidScenario(t *testing.T) {
	st := new(MockStore)
	srv := newServer(t, st)

	resp, err := http.Post(srv.URL+"/api/scenarios", "application/json", strings.NewReader(`{"name": ""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	st.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHandleGetListDelete(t *testing.T) {
	st := new(MockStore)
	st.On("Load", mock.Anything, "deal").Return(&store.Record{Name: "deal"}, nil).Once()
	st.On("Load", mock.Anything, "gone").Return(nil, store.ErrNotFound).Once()
	st.On("List", mock.Anything).Return(nil, nil).Once()
	st.On("Delete", mock.Anything, "deal").Return(nil).Once()
	st.On("Delete", mock.Anything, "broken").Return(errors.New("disk full")).Once()
	srv := newServer(t, st)

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/api/scenarios/deal", http.StatusOK, `"name":"deal"`},
		{http.MethodGet, "/api/scenarios/gone", http.StatusNotFound, "not found"},
		{http.MethodGet, "/api/scenarios", http.StatusOK, "[]"},
		{http.MethodDelete, "/api/scenarios/deal", http.StatusNoContent, ""},
		{http.MethodDelete, "/api/scenarios/broken", http.StatusInternalServerError, "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.body)
		})
	}
	st.AssertExpectations(t)
}
