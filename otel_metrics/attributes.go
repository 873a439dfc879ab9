package otel_metrics

const (
	KindKey        = "kind"
	LevelKey       = "level"
	OperationKey   = "operation"
	DestinationKey = "destination"
	EnvironmentKey = "environment"
	StatusKey      = "status"
)
