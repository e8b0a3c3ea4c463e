package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditforge/auditforge/internal/application"
	appaudits "github.com/auditforge/auditforge/internal/application/audits"
	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/contracts"
	"github.com/auditforge/auditforge/internal/domain/vulns"
	"github.com/auditforge/auditforge/internal/infra/pubsub"
	"github.com/auditforge/auditforge/internal/infra/queue"
)

type memContracts map[string]*contracts.Contract

func (m memContracts) Get(_ context.Context, id string) (*contracts.Contract, error) {
	c, ok := m[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

type memRecords struct {
	seq     int
	records map[string]*domain.Record
	lists   map[string][]vulns.Vulnerability
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string]*domain.Record), lists: make(map[string][]vulns.Vulnerability)}
}

func (m *memRecords) Create(_ context.Context, contractID, requesterID string, kind domain.Kind) (string, error) {
	m.seq++
	id := "audit-" + string(rune('0'+m.seq))
	m.records[id] = &domain.Record{
		ID: id, ContractID: contractID, RequesterID: requesterID,
		Kind: kind, Status: domain.StatusPending, CreatedAt: time.Now(),
	}
	return id, nil
}

func (m *memRecords) Get(_ context.Context, id string) (*domain.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (m *memRecords) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	m.records[id].Status = status
	return nil
}

func (m *memRecords) Complete(_ context.Context, id string, res domain.Completion) error {
	m.records[id].Status = domain.StatusCompleted
	m.records[id].Counts = res.Counts
	return nil
}

func (m *memRecords) Fail(_ context.Context, id, message string) error {
	m.records[id].Status = domain.StatusFailed
	m.records[id].Error = message
	return nil
}

func (m *memRecords) SetArtifact(_ context.Context, id, url string) error {
	m.records[id].ArtifactURL = url
	return nil
}

func (m *memRecords) SaveVulnerabilities(_ context.Context, id string, list []vulns.Vulnerability) error {
	m.lists[id] = list
	return nil
}

func (m *memRecords) Vulnerabilities(_ context.Context, id string) ([]vulns.Vulnerability, error) {
	return m.lists[id], nil
}

func newTestRouter(t *testing.T) (http.Handler, *memRecords, *pubsub.Hub) {
	t.Helper()
	jobs := queue.NewStore()
	t.Cleanup(jobs.Close)
	hub := pubsub.NewHub()
	records := newMemRecords()
	svc := &appaudits.Service{
		Contracts: memContracts{
			"c1": {ID: "c1", OwnerID: "alice", Name: "Vault", SourceCode: "contract Vault {}"},
		},
		Records: records,
		Queue:   jobs,
		Hub:     hub,
		Clock:   application.SystemClock{},
	}
	return NewRouter(svc, hub), records, hub
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/alice/audits", map[string]any{
			"contract_id": "c1", "kind": "static",
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		var res appaudits.SubmitResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.NotEmpty(t, res.JobID)
		assert.NotEmpty(t, res.AuditID)
	})

	t.Run("unknown contract is 404", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/alice/audits", map[string]any{
			"contract_id": "nope", "kind": "static",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign contract is 403", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/mallory/audits", map[string]any{
			"contract_id": "c1", "kind": "static",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad kind is 400", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/alice/audits", map[string]any{
			"contract_id": "c1", "kind": "fuzzing",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad priority is 400", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/alice/audits", map[string]any{
			"contract_id": "c1", "kind": "static", "priority": 3,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/alice/audits", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProgressEndpoint(t *testing.T) {
	h, records, hub := newTestRouter(t)
	records.records["a1"] = &domain.Record{ID: "a1", RequesterID: "alice", Status: domain.StatusProcessing}
	hub.Publish("alice", domain.AuditProgress{
		AuditID: "a1", Status: domain.StatusProcessing, Progress: 70, CurrentStep: "aggregating findings",
	})

	w := get(h, "/v1/alice/audits/a1/progress")
	require.Equal(t, http.StatusOK, w.Code)

	var p domain.AuditProgress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 70, p.Progress)

	assert.Equal(t, http.StatusNotFound, get(h, "/v1/alice/audits/missing/progress").Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/v1/mallory/audits/a1/progress").Code)
}

func TestCancelEndpoint(t *testing.T) {
	t.Run("queued audit cancels", func(t *testing.T) {
		h, _, _ := newTestRouter(t)
		w := postJSON(t, h, "/v1/alice/audits", map[string]any{"contract_id": "c1", "kind": "static"})
		require.Equal(t, http.StatusAccepted, w.Code)
		var res appaudits.SubmitResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

		w = postJSON(t, h, "/v1/alice/audits/"+res.AuditID+"/cancel", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("terminal audit is 409", func(t *testing.T) {
		h, records, _ := newTestRouter(t)
		records.records["done"] = &domain.Record{ID: "done", RequesterID: "alice", Status: domain.StatusCompleted}
		w := postJSON(t, h, "/v1/alice/audits/done/cancel", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestVulnerabilitiesEndpoint(t *testing.T) {
	h, records, _ := newTestRouter(t)
	records.records["a1"] = &domain.Record{ID: "a1", RequesterID: "alice", Status: domain.StatusCompleted}
	records.lists["a1"] = []vulns.Vulnerability{{Type: vulns.TypeOverflow, Severity: vulns.SeverityLow}}

	w := get(h, "/v1/alice/audits/a1/vulnerabilities")
	require.Equal(t, http.StatusOK, w.Code)

	var list []vulns.Vulnerability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestStatsEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t)
	postJSON(t, h, "/v1/alice/audits", map[string]any{"contract_id": "c1", "kind": "ai"})

	w := get(h, "/v1/alice/queue/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.QueueStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Waiting)
}

func TestAuditEventsStream(t *testing.T) {
	h, records, hub := newTestRouter(t)
	records.records["a1"] = &domain.Record{ID: "a1", RequesterID: "alice", Status: domain.StatusProcessing}

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/alice/audits/a1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// give the handler a moment to subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	hub.Publish("alice", domain.AuditProgress{AuditID: "a1", Status: domain.StatusProcessing, Progress: 90})
	hub.Publish("alice", domain.AuditProgress{AuditID: "a1", Status: domain.StatusCompleted, Progress: 100})

	// the stream ends at the terminal event, so reading to EOF terminates
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()
	assert.Contains(t, body, `"progress":90`)
	assert.Contains(t, body, `"progress":100`)
	assert.Contains(t, body, `"status":"completed"`)
}
