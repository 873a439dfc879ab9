package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PeerDB-io/gcp-inventory/activities"
	connbigquery "github.com/PeerDB-io/gcp-inventory/connectors/bigquery"
	"github.com/PeerDB-io/gcp-inventory/connectors/googlecloud"
	"github.com/PeerDB-io/gcp-inventory/invenv"
	"github.com/PeerDB-io/gcp-inventory/otel_metrics"
	"github.com/PeerDB-io/gcp-inventory/resources"
)

const otelServiceName = "gcp-inventory"

type ExtractOptions struct {
	Kind                      string
	ImpersonateServiceAccount string
	CredentialsFile           string
	Projects                  []string
	DestinationProject        string
	DestinationDataset        string
	// empty means the kind's default table
	DestinationTable string
	SchemaFile       string
	SinkMethod       string
	// zero means the default of the sink method
	ChunkSize       int
	StagingBucket   string
	NotifyTopic     string
	EnablementDelay time.Duration
	ReservedPrefix  string
	Strict          bool
	DryRun          bool
}

func (opts *ExtractOptions) config() (*activities.ExtractConfig, error) {
	kind, err := resources.Lookup(opts.Kind)
	if err != nil {
		return nil, err
	}
	method, err := connbigquery.ParseSinkMethod(opts.SinkMethod)
	if err != nil {
		return nil, err
	}

	dest := connbigquery.Destination{
		Project: opts.DestinationProject,
		Dataset: opts.DestinationDataset,
		Table:   opts.DestinationTable,
	}
	if dest.Table == "" {
		dest.Table = kind.DefaultTable
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	return &activities.ExtractConfig{
		Kind: kind,
		Credentials: googlecloud.CredentialConfig{
			ImpersonateServiceAccount: opts.ImpersonateServiceAccount,
			CredentialsFile:           opts.CredentialsFile,
			Lifetime:                  invenv.InventoryImpersonationLifetime(),
		},
		Projects:        opts.Projects,
		Destination:     dest,
		SchemaFile:      opts.SchemaFile,
		SinkMethod:      method,
		ChunkSize:       opts.ChunkSize,
		StagingBucket:   opts.StagingBucket,
		NotifyTopic:     opts.NotifyTopic,
		EnablementDelay: opts.EnablementDelay,
		ReservedPrefix:  opts.ReservedPrefix,
		Strict:          opts.Strict,
		DryRun:          opts.DryRun,
	}, nil
}

func ExtractMain(ctx context.Context, opts *ExtractOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	otelManager, err := otel_metrics.NewOtelManager(ctx, otelServiceName)
	if err != nil {
		return fmt.Errorf("unable to create otel manager: %w", err)
	}
	defer func() {
		if err := otelManager.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Error("failed to flush metrics", slog.Any("error", err))
		}
	}()

	activity := &activities.ExtractActivity{OtelManager: otelManager}
	result, err := activity.Extract(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s extraction failed: %w", cfg.Kind.Name, err)
	}

	slog.Info("extraction finished",
		slog.String("kind", cfg.Kind.Name),
		slog.String("runID", result.RunID),
		slog.Int("projects", len(result.Projects)),
		slog.Int("extracted", result.Extracted),
		slog.Int("rejected", result.Rejected),
		slog.Int("written", result.Written))
	return nil
}
