package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"secret-evoting/models"
	"secret-evoting/service"
	"secret-evoting/workflow"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	mu       sync.Mutex
	state    workflow.State
	voteErr  error
	searched []string
	voted    []int
	edits    []workflow.DraftEdited
	states   chan workflow.State
}

func newFakeService() *fakeService {
	st := workflow.Initial(workflow.Settings{CodeHash: "hash", AddressPrefix: "secret"}, testNow)
	st.Wallet = models.WalletSession{Status: models.WalletConnected, Address: "secret1voter"}
	return &fakeService{state: st, states: make(chan workflow.State, 4)}
}

func (f *fakeService) State() workflow.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeService) Info() service.Info {
	return service.Info{ChainID: "pulsar-2", CodeID: 21033, Wallet: f.State().Wallet}
}

func (f *fakeService) Reconnect() error { return nil }

func (f *fakeService) Subscribe() (<-chan workflow.State, func()) {
	f.states <- f.State()
	return f.states, func() {}
}

func (f *fakeService) Search(_ context.Context, address string) (workflow.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, address)
	f.state.SearchText = address
	return f.state, nil
}

func (f *fakeService) Refresh(context.Context) (workflow.State, error) { return f.State(), nil }

func (f *fakeService) Return(context.Context) (workflow.State, error) { return f.State(), nil }

func (f *fakeService) Vote(_ context.Context, id int) (workflow.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voteErr != nil {
		return f.state, f.voteErr
	}
	f.voted = append(f.voted, id)
	return f.state, nil
}

func (f *fakeService) EditDraft(_ context.Context, e workflow.DraftEdited) (workflow.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, e)
	return f.state, nil
}

func (f *fakeService) Create(context.Context) (workflow.State, error) { return f.State(), nil }

func (f *fakeService) DismissAlert(context.Context) (workflow.State, error) {
	return f.State(), workflow.ErrStopped
}

func newTestServer(t *testing.T, svc Service) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewServer(svc, Options{
		Gatherer: reg,
		Metrics:  service.NewMetricsCollector(),
		Now:      func() time.Time { return testNow },
	}, zap.NewNop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestGetState(t *testing.T) {
	s := newTestServer(t, newFakeService())

	w := do(t, s, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "search", view["phase"])
	wallet := view["wallet"].(map[string]interface{})
	assert.Equal(t, "Wallet connected", wallet["text"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, newFakeService())

	r := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"chain_id":"pulsar-2"`)
}

func TestSearch(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc)

	w := do(t, s, http.MethodPost, "/api/search", `{"address":"secret1contract"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"secret1contract"}, svc.searched)

	w = do(t, s, http.MethodPost, "/api/search", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVote(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc)

	w := do(t, s, http.MethodPost, "/api/vote", `{"candidate_id":0}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{0}, svc.voted)

	w = do(t, s, http.MethodPost, "/api/vote", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.voteErr = errors.Wrap(workflow.ErrVoteUnavailable, "already voted")
	w = do(t, s, http.MethodPost, "/api/vote", `{"candidate_id":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "vote unavailable")
	assert.NotEmpty(t, resp.RequestID)
}

func TestEditDraft(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc)

	w := do(t, s, http.MethodPut, "/api/draft",
		`{"title":"Board","candidates":["A","B"],"close_date":"2024-06-01","close_time":"14:30"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.edits, 1)

	e := svc.edits[0]
	assert.Equal(t, "Board", *e.Title)
	assert.Equal(t, []string{"A", "B"}, e.Candidates)
	assert.Nil(t, e.Voters)
	require.NotNil(t, e.CloseDate)
	assert.Equal(t, 2024, e.CloseDate.Year())
	assert.Equal(t, time.June, e.CloseDate.Month())
	assert.Equal(t, "14:30", *e.CloseTime)

	w = do(t, s, http.MethodPut, "/api/draft", `{"close_date":"01/06/2024"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, svc.edits, 1)
}

func TestStoppedServiceIsUnavailable(t *testing.T) {
	s := newTestServer(t, newFakeService())

	w := do(t, s, http.MethodDelete, "/api/alert", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, newFakeService())

	w := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventsStreamsViews(t *testing.T) {
	svc := newFakeService()
	srv := httptest.NewServer(newTestServer(t, svc).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first workflow.View
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, workflow.PhaseSearch, first.Phase)

	next := svc.State()
	next.SearchText = "secret1typed"
	svc.states <- next

	var second workflow.View
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "secret1typed", second.SearchText)
}

func TestRateLimitRejectsWrites(t *testing.T) {
	svc := newFakeService()
	s := NewServer(svc, Options{
		RateLimit: NewRateLimiter(100, 0.001, 1),
		Now:       func() time.Time { return testNow },
	}, zap.NewNop())

	w := do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = do(t, s, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
