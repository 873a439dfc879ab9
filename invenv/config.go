package invenv

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// This file contains functions to get the values of the inventory environment
// variables that are not exposed as CLI flags. Flag-backed variables are
// declared next to their flag in main.go.

// INVENTORY_ENVIRONMENT, attached to metrics and notifications
func InventoryEnvironment() string {
	return GetEnvString("INVENTORY_ENVIRONMENT", "")
}

// INVENTORY_PROJECT_FILTER, passed to projects.list
func InventoryProjectFilter() string {
	return GetEnvString("INVENTORY_PROJECT_FILTER", "lifecycleState:ACTIVE")
}

// INVENTORY_SERVICES_PAGE_SIZE
func InventoryServicesPageSize() int64 {
	return int64(getEnvInt("INVENTORY_SERVICES_PAGE_SIZE", 200))
}

// INVENTORY_ENABLEMENT_DELAY_MS, pause between services.list calls
func InventoryEnablementDelay() time.Duration {
	return time.Duration(getEnvInt("INVENTORY_ENABLEMENT_DELAY_MS", 300)) * time.Millisecond
}

// INVENTORY_LOAD_CHUNK_SIZE, rows per load job
func InventoryLoadChunkSize() int {
	return getEnvInt("INVENTORY_LOAD_CHUNK_SIZE", 1_000_000)
}

// INVENTORY_INSERT_BATCH_SIZE, rows per streaming insert request
func InventoryInsertBatchSize() int {
	return getEnvInt("INVENTORY_INSERT_BATCH_SIZE", 1024)
}

// INVENTORY_IMPERSONATION_LIFETIME_SECONDS
func InventoryImpersonationLifetime() time.Duration {
	return time.Duration(getEnvInt("INVENTORY_IMPERSONATION_LIFETIME_SECONDS", 3600)) * time.Second
}

// INVENTORY_OTEL_METRICS_ENABLED
func InventoryOtelMetricsEnabled() bool {
	return getEnvBool("INVENTORY_OTEL_METRICS_ENABLED", false)
}

// INVENTORY_OTEL_METRICS_NAMESPACE, prefixed to every metric name
func InventoryOtelMetricsNamespace() string {
	return GetEnvString("INVENTORY_OTEL_METRICS_NAMESPACE", "")
}

// OTEL_EXPORTER_OTLP_PROTOCOL, falling back to OTEL_EXPORTER_OTLP_METRICS_PROTOCOL
func InventoryOtelExporterProtocol() string {
	return GetEnvString("OTEL_EXPORTER_OTLP_PROTOCOL",
		GetEnvString("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", "http/protobuf"))
}

// INVENTORY_TIMEZONE, the IANA zone that decides the extraction date.
// Defaults to the local zone of the host.
func InventoryTimezone() (*time.Location, error) {
	name := GetEnvString("INVENTORY_TIMEZONE", "Local")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid INVENTORY_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
