package shared

type ContextKey string

const (
	RunIDKey   ContextKey = "run_id"
	KindKey    ContextKey = "kind"
	ProjectKey ContextKey = "project"
)

const (
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// projects created by Apps Script, AppSheet and similar carry this prefix
	DefaultReservedProjectPrefix = "sys-"

	BigQueryServiceName = "bigquery.googleapis.com"
	DataplexServiceName = "dataplex.googleapis.com"
)
