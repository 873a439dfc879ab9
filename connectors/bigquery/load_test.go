package connbigquery

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
)

var jobIDPattern = regexp.MustCompile(`"jobId":\s*"([^"]+)"`)

// fakeJobsAPI serves an existing p.d.t table, load jobs (uploaded or from GCS)
// and a GCS bucket for staged files.
type fakeJobsAPI struct {
	srv       *httptest.Server
	failJobs  bool
	mu        sync.Mutex
	jobBodies []string
	polls     int
	staged    []string
	deleted   []string
}

func newFakeJobsAPI(t *testing.T) *fakeJobsAPI {
	t.Helper()
	f := &fakeJobsAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /projects/p/datasets/d/tables/t", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"tableReference":{"projectId":"p","datasetId":"d","tableId":"t"},
			"schema":{"fields":[{"name":"date_extraction","type":"DATE"},{"name":"table_id","type":"STRING"}]}}`)
	})
	insertJob := func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		match := jobIDPattern.FindSubmatch(body)
		require.NotNil(t, match)
		f.mu.Lock()
		f.jobBodies = append(f.jobBodies, string(body))
		f.mu.Unlock()
		reply(w, fmt.Sprintf(`{"jobReference":{"projectId":"p","jobId":%q,"location":"US"},
			"configuration":{"load":{}},"status":{"state":"RUNNING"}}`, match[1]))
	}
	mux.HandleFunc("POST /upload/bigquery/v2/projects/p/jobs", insertJob)
	mux.HandleFunc("POST /projects/p/jobs", insertJob)
	mux.HandleFunc("GET /projects/p/jobs/{job}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		f.mu.Unlock()
		status := `{"state":"DONE"}`
		if f.failJobs {
			status = `{"state":"DONE","errorResult":{"reason":"invalid","message":"JSON parsing error in row starting at position 0"}}`
		}
		reply(w, fmt.Sprintf(`{"jobReference":{"projectId":"p","jobId":%q,"location":"US"},
			"configuration":{"load":{}},"status":%s}`, r.PathValue("job"), status))
	})

	mux.HandleFunc("POST /upload/storage/v1/b/bkt/o", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.mu.Lock()
		f.staged = append(f.staged, string(body))
		f.mu.Unlock()
		reply(w, `{"bucket":"bkt","name":"staged.json","generation":"1"}`)
	})
	mux.HandleFunc("DELETE /storage/v1/b/bkt/o/{object...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("object"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (f *fakeJobsAPI) bigQueryClient(t *testing.T) *bigquery.Client {
	t.Helper()
	client, err := bigquery.NewClient(t.Context(), "p",
		option.WithEndpoint(f.srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(f.srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func (f *fakeJobsAPI) storageClient(t *testing.T) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(t.Context(),
		option.WithEndpoint(f.srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(f.srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func loadTable(t *testing.T, desc *model.Descriptor) *model.Table {
	t.Helper()
	day := civil.Date{Year: 2024, Month: time.May, Day: 17}
	table := model.NewTable(time.Now())
	table.Columns = desc.ColumnNames()
	table.Append(
		model.FlatRow{"date_extraction": day, "table_id": "a"},
		model.FlatRow{"date_extraction": day, "table_id": "b"},
	)
	return table
}

func TestAppendLoadJobs(t *testing.T) {
	fake := newFakeJobsAPI(t)
	s, err := NewSink(fake.bigQueryClient(t), WithChunkSize(1))
	require.NoError(t, err)
	defer s.Close()

	desc := testDescriptor(t)
	written, err := s.Append(t.Context(), loadTable(t, desc), desc, Destination{Project: "p", Dataset: "d", Table: "t"})
	require.NoError(t, err)
	require.Equal(t, 2, written)

	require.Len(t, fake.jobBodies, 2)
	require.GreaterOrEqual(t, fake.polls, 2)
	for i, tableID := range []string{"a", "b"} {
		body := fake.jobBodies[i]
		require.Contains(t, body, `"WRITE_APPEND"`)
		require.Contains(t, body, `"NEWLINE_DELIMITED_JSON"`)
		require.Contains(t, body, fmt.Sprintf(`{"date_extraction":"2024-05-17","table_id":%q}`, tableID))
	}
}

func TestAppendLoadJobFailure(t *testing.T) {
	fake := newFakeJobsAPI(t)
	fake.failJobs = true
	s, err := NewSink(fake.bigQueryClient(t))
	require.NoError(t, err)
	defer s.Close()

	desc := testDescriptor(t)
	written, err := s.Append(t.Context(), loadTable(t, desc), desc, Destination{Project: "p", Dataset: "d", Table: "t"})
	require.Zero(t, written)
	var transportErr *exceptions.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "load", transportErr.Operation)
	require.Equal(t, "p.d.t", transportErr.Resource)
	require.ErrorContains(t, err, "JSON parsing error")
	require.Len(t, fake.jobBodies, 1)
}

func TestAppendLoadJobsStagedInGCS(t *testing.T) {
	fake := newFakeJobsAPI(t)
	s, err := NewSink(fake.bigQueryClient(t), WithStagingBucket(fake.storageClient(t), "bkt"))
	require.NoError(t, err)
	defer s.Close()

	desc := testDescriptor(t)
	written, err := s.Append(t.Context(), loadTable(t, desc), desc, Destination{Project: "p", Dataset: "d", Table: "t"})
	require.NoError(t, err)
	require.Equal(t, 2, written)

	require.Len(t, fake.staged, 1)
	require.Contains(t, fake.staged[0], `{"date_extraction":"2024-05-17","table_id":"b"}`)
	require.Len(t, fake.jobBodies, 1)
	require.Contains(t, fake.jobBodies[0], `gs://bkt/gcp-inventory/t/`)
	require.Equal(t, []string{"gcp-inventory/t/-0.json"}, fake.deleted)
}
