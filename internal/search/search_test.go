package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []recorded
	reply    string
	status   int
}

type recorded struct {
	method string
	path   string
	body   string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, f.reply)
}

func newIndex(t *testing.T, f *fakeES) *TaskIndex {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewTaskIndex(es, "")
}

func TestSearch_FiltersByAssignee(t *testing.T) {
	t.Parallel()

	hit := uuid.New()
	f := &fakeES{reply: `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"` + hit.String() + `","title":"x"}},{"_source":{"id":"bad"}}]}}`}
	ix := newIndex(t, f)
	owner := uuid.New()

	total, ids, err := ix.Search(t.Context(), "report", &owner, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []uuid.UUID{hit}, ids)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/tasks/_search", f.requests[0].path)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].body), &body))
	assert.Contains(t, f.requests[0].body, owner.String())
	assert.EqualValues(t, 10, body["size"])
}

func TestSearch_AdminHasNoFilter(t *testing.T) {
	t.Parallel()

	f := &fakeES{reply: `{"hits":{"total":{"value":0},"hits":[]}}`}
	ix := newIndex(t, f)

	_, ids, err := ix.Search(t.Context(), "report", nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotContains(t, f.requests[0].body, "filter")
}

func TestSearch_BackendError(t *testing.T) {
	t.Parallel()

	f := &fakeES{status: http.StatusInternalServerError, reply: `{"error":"boom"}`}
	ix := newIndex(t, f)

	_, _, err := ix.Search(t.Context(), "x", nil, 0, 10)
	require.ErrorIs(t, err, ErrSearch)
}

func TestIndexAndDelete(t *testing.T) {
	t.Parallel()

	f := &fakeES{reply: `{"result":"created"}`}
	ix := newIndex(t, f)
	task := &models.Task{
		ID:         uuid.New(),
		Title:      "Write report",
		Status:     models.StatusPending,
		Priority:   models.PriorityHigh,
		AssignedTo: uuid.New(),
		DueDate:    time.Now(),
	}

	require.NoError(t, ix.IndexTask(t.Context(), task))
	require.NoError(t, ix.DeleteTask(t.Context(), task.ID))

	require.Len(t, f.requests, 2)
	assert.True(t, strings.HasSuffix(f.requests[0].path, "/_doc/"+task.ID.String()))
	assert.Contains(t, f.requests[0].body, "Write report")
	assert.Equal(t, http.MethodDelete, f.requests[1].method)
}
