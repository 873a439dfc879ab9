package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/PeerDB-io/gcp-inventory/cmd"
	"github.com/PeerDB-io/gcp-inventory/invenv"
	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/resources"
	"github.com/PeerDB-io/gcp-inventory/shared"
)

func main() {
	appCtx, appClose := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appClose()

	if err := invenv.LoadDotEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	slog.SetDefault(slog.New(logger.NewHandler(slog.NewJSONHandler(os.Stdout, shared.NewSlogHandlerOptions()))))

	impersonateFlag := &cli.StringFlag{
		Name:    "impersonate-service-account",
		Usage:   "Service account to impersonate for every API call",
		Sources: cli.EnvVars("INVENTORY_IMPERSONATE_SERVICE_ACCOUNT"),
	}

	credentialsFileFlag := &cli.StringFlag{
		Name:    "credentials-file",
		Usage:   "Service account key file, Application Default Credentials when unset",
		Sources: cli.EnvVars("INVENTORY_CREDENTIALS_FILE"),
	}

	projectFlag := &cli.StringSliceFlag{
		Name:    "project",
		Usage:   "Project to inventory, repeatable; every visible project when unset",
		Sources: cli.EnvVars("INVENTORY_PROJECTS"),
	}

	destinationProjectFlag := &cli.StringFlag{
		Name:     "destination-project",
		Required: true,
		Sources:  cli.EnvVars("INVENTORY_DESTINATION_PROJECT"),
	}

	destinationDatasetFlag := &cli.StringFlag{
		Name:     "destination-dataset",
		Required: true,
		Sources:  cli.EnvVars("INVENTORY_DESTINATION_DATASET"),
	}

	destinationTableFlag := &cli.StringFlag{
		Name:    "destination-table",
		Usage:   "Destination table, defaults to <kind>_analysis",
		Sources: cli.EnvVars("INVENTORY_DESTINATION_TABLE"),
	}

	schemaFileFlag := &cli.StringFlag{
		Name:    "schema-file",
		Usage:   "Schema descriptor overriding the built-in one",
		Sources: cli.EnvVars("INVENTORY_SCHEMA_FILE"),
	}

	sinkMethodFlag := &cli.StringFlag{
		Name:    "sink-method",
		Value:   "load",
		Usage:   "load (batch load jobs) or insert (streaming inserts)",
		Sources: cli.EnvVars("INVENTORY_SINK_METHOD"),
	}

	chunkSizeFlag := &cli.IntFlag{
		Name:    "chunk-size",
		Usage:   "Rows per load job or insert request",
		Sources: cli.EnvVars("INVENTORY_CHUNK_SIZE"),
	}

	stagingBucketFlag := &cli.StringFlag{
		Name:    "staging-bucket",
		Usage:   "Stage load files in this Cloud Storage bucket",
		Sources: cli.EnvVars("INVENTORY_STAGING_BUCKET"),
	}

	notifyTopicFlag := &cli.StringFlag{
		Name:    "notify-topic",
		Usage:   "Pub/Sub topic announcing finished runs",
		Sources: cli.EnvVars("INVENTORY_NOTIFY_TOPIC"),
	}

	enablementDelayFlag := &cli.DurationFlag{
		Name:    "enablement-delay",
		Value:   invenv.InventoryEnablementDelay(),
		Usage:   "Pause between service enablement checks",
		Sources: cli.EnvVars("INVENTORY_ENABLEMENT_DELAY"),
	}

	reservedPrefixFlag := &cli.StringFlag{
		Name:    "reserved-prefix",
		Value:   shared.DefaultReservedProjectPrefix,
		Usage:   "Skip projects whose id starts with this prefix",
		Sources: cli.EnvVars("INVENTORY_RESERVED_PREFIX"),
	}

	strictFlag := &cli.BoolFlag{
		Name:    "strict",
		Usage:   "Fail the run on the first value that cannot be coerced",
		Sources: cli.EnvVars("INVENTORY_STRICT"),
	}

	dryRunFlag := &cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "Extract and normalize without writing to BigQuery",
		Sources: cli.EnvVars("INVENTORY_DRY_RUN"),
	}

	extractFlags := []cli.Flag{
		impersonateFlag,
		credentialsFileFlag,
		projectFlag,
		destinationProjectFlag,
		destinationDatasetFlag,
		destinationTableFlag,
		schemaFileFlag,
		sinkMethodFlag,
		chunkSizeFlag,
		stagingBucketFlag,
		notifyTopicFlag,
		enablementDelayFlag,
		reservedPrefixFlag,
		strictFlag,
		dryRunFlag,
	}

	commands := make([]*cli.Command, 0, len(resources.All())+2)
	for _, kind := range resources.All() {
		commands = append(commands, &cli.Command{
			Name:  kind.Command,
			Usage: kind.Usage,
			Flags: extractFlags,
			Action: func(ctx context.Context, clicmd *cli.Command) error {
				return cmd.ExtractMain(ctx, &cmd.ExtractOptions{
					Kind:                      kind.Name,
					ImpersonateServiceAccount: clicmd.String("impersonate-service-account"),
					CredentialsFile:           clicmd.String("credentials-file"),
					Projects:                  clicmd.StringSlice("project"),
					DestinationProject:        clicmd.String("destination-project"),
					DestinationDataset:        clicmd.String("destination-dataset"),
					DestinationTable:          clicmd.String("destination-table"),
					SchemaFile:                clicmd.String("schema-file"),
					SinkMethod:                clicmd.String("sink-method"),
					ChunkSize:                 int(clicmd.Int("chunk-size")),
					StagingBucket:             clicmd.String("staging-bucket"),
					NotifyTopic:               clicmd.String("notify-topic"),
					EnablementDelay:           clicmd.Duration("enablement-delay"),
					ReservedPrefix:            clicmd.String("reserved-prefix"),
					Strict:                    clicmd.Bool("strict"),
					DryRun:                    clicmd.Bool("dry-run"),
				})
			},
		})
	}

	commands = append(commands,
		&cli.Command{
			Name:  "kinds",
			Usage: "List the resource kinds",
			Action: func(ctx context.Context, clicmd *cli.Command) error {
				return cmd.KindsMain(clicmd.Root().Writer)
			},
		},
		&cli.Command{
			Name:      "schema",
			Usage:     "Print the schema descriptor of a resource kind",
			ArgsUsage: "<kind>",
			Flags: []cli.Flag{
				schemaFileFlag,
				&cli.BoolFlag{
					Name:  "bigquery",
					Usage: "Print the BigQuery table schema instead",
				},
			},
			Action: func(ctx context.Context, clicmd *cli.Command) error {
				if clicmd.NArg() != 1 {
					return cli.Exit("expected exactly one resource kind", 2)
				}
				return cmd.SchemaMain(clicmd.Root().Writer, clicmd.Args().First(),
					clicmd.String("schema-file"), clicmd.Bool("bigquery"))
			},
		},
	)

	app := &cli.Command{
		Name:     "gcp-inventory",
		Usage:    "Inventory GCP resource metadata into BigQuery",
		Commands: commands,
	}

	start := time.Now()
	if err := app.Run(appCtx, os.Args); err != nil {
		slog.Error("error running app", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		appClose()
		os.Exit(1)
	}
}
