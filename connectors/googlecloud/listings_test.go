package googlecloud

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/PeerDB-io/gcp-inventory/pagination"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
	"github.com/PeerDB-io/gcp-inventory/walker"
)

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

// fakeGoogleAPIs serves every REST surface from one mux; the services are told
// apart by path.
func fakeGoogleAPIs(t *testing.T) *Clients {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/projects", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "lifecycleState:ACTIVE", r.URL.Query().Get("filter"))
		switch r.URL.Query().Get("pageToken") {
		case "":
			reply(w, `{"projects":[{"projectId":"sys-abc"},{"projectId":"proj1"}],"nextPageToken":"p2"}`)
		case "p2":
			reply(w, `{"projects":[{"projectId":"proj2"}]}`)
		}
	})
	mux.HandleFunc("GET /v1/projects/{project}/services", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "state:ENABLED", r.URL.Query().Get("filter"))
		require.Equal(t, "200", r.URL.Query().Get("pageSize"))
		switch r.PathValue("project") {
		case "proj2":
			reply(w, `{"services":[{"name":"projects/2/services/bigquery.googleapis.com","config":{"name":"bigquery.googleapis.com"}}]}`)
		default:
			reply(w, `{"services":[{"name":"projects/1/services/compute.googleapis.com"}]}`)
		}
	})
	mux.HandleFunc("GET /projects/{project}/datasets", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"datasets":[{"datasetReference":{"projectId":"proj2","datasetId":"empty"}},{"datasetReference":{"projectId":"proj2","datasetId":"sales"}}]}`)
	})
	mux.HandleFunc("GET /projects/{project}/datasets/{dataset}/tables", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("dataset") {
		case "empty":
			reply(w, `{"totalItems":0}`)
		case "sales":
			if r.URL.Query().Get("pageToken") == "" {
				reply(w, `{"tables":[{"tableReference":{"projectId":"proj2","datasetId":"sales","tableId":"orders"},"type":"TABLE"}],"nextPageToken":"t2"}`)
				return
			}
			reply(w, `{"tables":[{"tableReference":{"projectId":"proj2","datasetId":"sales","tableId":"orders_v"},"type":"VIEW"}]}`)
		}
	})
	mux.HandleFunc("GET /projects/{project}/datasets/{dataset}/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("table") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			reply(w, `{"error":{"code":404,"message":"Not found: Table proj2:sales.missing"}}`)
			return
		}
		reply(w, `{"tableReference":{"projectId":"proj2","datasetId":"sales","tableId":"orders"},"type":"TABLE",
			"numRows":"42","creationTime":"1700000000000","clustering":{"fields":["region","day"]}}`)
	})
	mux.HandleFunc("GET /v1/projects/{project}/locations/{location}/lakes", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "-", r.PathValue("location"))
		reply(w, `{"lakes":[{"name":"projects/proj2/locations/us-central1/lakes/l1"}]}`)
	})
	mux.HandleFunc("GET /v1/projects/{project}/locations/{location}/lakes/{lake}/zones", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"zones":[{"name":"projects/proj2/locations/us-central1/lakes/l1/zones/raw"}]}`)
	})
	mux.HandleFunc("GET /v1/projects/{project}/locations/{location}/lakes/{lake}/zones/{zone}/assets", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"assets":[{"name":"projects/proj2/locations/us-central1/lakes/l1/zones/raw/assets/files",
			"state":"ACTIVE","resourceSpec":{"name":"projects/proj2/buckets/raw-files","type":"STORAGE_BUCKET"},
			"discoveryStatus":{"lastRunDuration":"12.5s","stats":{"dataItems":"3"}}}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	clients, err := NewClients(t.Context(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return clients
}

func TestListProjectsAndServices(t *testing.T) {
	clients := fakeGoogleAPIs(t)

	projects, err := pagination.Collect(t.Context(), clients.ListProjects("lifecycleState:ACTIVE"))
	require.NoError(t, err)
	require.Equal(t, []string{"sys-abc", "proj1", "proj2"}, projects)

	listServices := clients.ListEnabledServices(200)
	services, err := pagination.Collect(t.Context(), listServices("proj2"))
	require.NoError(t, err)
	require.Equal(t, []string{"bigquery.googleapis.com"}, services)

	services, err = pagination.Collect(t.Context(), listServices("proj1"))
	require.NoError(t, err)
	require.Equal(t, []string{"compute.googleapis.com"}, services)
}

func TestBigQueryListings(t *testing.T) {
	clients := fakeGoogleAPIs(t)
	project := &walker.Node{ID: "proj2", Type: walker.ProjectNode}

	datasets, err := pagination.Collect(t.Context(), clients.ListDatasets(project))
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	require.Equal(t, "sales", datasets[1].ID)
	require.Equal(t, DatasetNode, datasets[1].Type)

	datasets[0].Parent = project
	empty, err := pagination.Collect(t.Context(), clients.ListTables(datasets[0]))
	require.NoError(t, err)
	require.Empty(t, empty)

	datasets[1].Parent = project
	tables, err := pagination.Collect(t.Context(), clients.ListTables(datasets[1]))
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "TABLE", tables[0].Type)
	require.Equal(t, "VIEW", tables[1].Type)
	require.Equal(t, "orders_v", tables[1].ID)

	tables[0].Parent = datasets[1]
	rec, err := clients.GetTable(t.Context(), tables[0])
	require.NoError(t, err)
	numRows, ok := rec.Lookup("numRows")
	require.True(t, ok)
	require.Equal(t, "42", fmt.Sprint(numRows))
	fields, ok := rec.Lookup("clustering.fields")
	require.True(t, ok)
	require.Equal(t, []any{"region", "day"}, fields)

	missing := &walker.Node{ID: "missing", Type: "TABLE", Parent: datasets[1]}
	_, err = clients.GetTable(t.Context(), missing)
	var transportErr *exceptions.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "tables.get", transportErr.Operation)
	require.Equal(t, "proj2.sales.missing", transportErr.Resource)
}

func TestDataplexListings(t *testing.T) {
	clients := fakeGoogleAPIs(t)
	project := &walker.Node{ID: "proj2", Type: walker.ProjectNode}

	lakes, err := pagination.Collect(t.Context(), clients.ListLakes(project))
	require.NoError(t, err)
	require.Len(t, lakes, 1)

	zones, err := pagination.Collect(t.Context(), clients.ListZones(lakes[0]))
	require.NoError(t, err)
	require.Equal(t, "projects/proj2/locations/us-central1/lakes/l1/zones/raw", zones[0].ID)

	assets, err := pagination.Collect(t.Context(), clients.ListAssets(zones[0]))
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, AssetNode, assets[0].Type)

	duration, ok := assets[0].Record.Lookup("discoveryStatus.lastRunDuration")
	require.True(t, ok)
	require.Equal(t, "12.5s", duration)
	spec, ok := assets[0].Record.Lookup("resourceSpec.name")
	require.True(t, ok)
	require.Equal(t, "projects/proj2/buckets/raw-files", spec)
}

func TestListingHonorsContext(t *testing.T) {
	clients := fakeGoogleAPIs(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := pagination.Collect(ctx, clients.ListProjects("lifecycleState:ACTIVE"))
	require.ErrorIs(t, err, context.Canceled)
}
