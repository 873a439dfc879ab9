// Package resources declares the resource kinds the inventory can extract.
// A kind is pure configuration: how to walk to its leaves, which API must be
// enabled in a project, and the schema descriptor of its destination table.
package resources

import (
	"context"
	"embed"
	"fmt"
	"slices"
	"strings"

	"github.com/PeerDB-io/gcp-inventory/connectors/googlecloud"
	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/shared"
	"github.com/PeerDB-io/gcp-inventory/walker"
)

//go:embed schemas/*.json
var schemas embed.FS

type Kind struct {
	Name            string
	Command         string
	Usage           string
	RequiredService string
	DefaultTable    string
	Hierarchy       func(clients *googlecloud.Clients) walker.Hierarchy
}

// SchemaJSON returns the embedded descriptor file of the kind.
func (k *Kind) SchemaJSON() ([]byte, error) {
	return schemas.ReadFile("schemas/" + k.Name + ".json")
}

func (k *Kind) Descriptor() (*model.Descriptor, error) {
	raw, err := k.SchemaJSON()
	if err != nil {
		return nil, fmt.Errorf("no descriptor for %s: %w", k.Name, err)
	}
	desc, err := model.ParseDescriptor(raw)
	if err != nil {
		return nil, fmt.Errorf("descriptor of %s: %w", k.Name, err)
	}
	return desc, nil
}

func tableOfType(typ string) func(*walker.Node) bool {
	return func(leaf *walker.Node) bool {
		return leaf.Type == typ
	}
}

func bigQueryHierarchy(keepType string) func(*googlecloud.Clients) walker.Hierarchy {
	return func(clients *googlecloud.Clients) walker.Hierarchy {
		return walker.Hierarchy{
			Levels: []walker.Level{
				{Name: "datasets", List: clients.ListDatasets},
				{Name: "tables", List: clients.ListTables},
			},
			Keep: tableOfType(keepType),
			Fetch: func(ctx context.Context, leaf *walker.Node) (model.Record, error) {
				return clients.GetTable(ctx, leaf)
			},
		}
	}
}

func dataplexHierarchy(clients *googlecloud.Clients) walker.Hierarchy {
	return walker.Hierarchy{
		Levels: []walker.Level{
			{Name: "lakes", List: clients.ListLakes},
			{Name: "zones", List: clients.ListZones},
			{Name: "assets", List: clients.ListAssets},
		},
	}
}

var kinds = []*Kind{
	{
		Name:            "bigquery_tables",
		Command:         "tables",
		Usage:           "Extract BigQuery table metadata",
		RequiredService: shared.BigQueryServiceName,
		DefaultTable:    "bigquery_tables_analysis",
		Hierarchy:       bigQueryHierarchy("TABLE"),
	},
	{
		Name:            "bigquery_views",
		Command:         "views",
		Usage:           "Extract BigQuery view metadata",
		RequiredService: shared.BigQueryServiceName,
		DefaultTable:    "bigquery_views_analysis",
		Hierarchy:       bigQueryHierarchy("VIEW"),
	},
	{
		Name:            "dataplex_assets",
		Command:         "assets",
		Usage:           "Extract Dataplex asset metadata",
		RequiredService: shared.DataplexServiceName,
		DefaultTable:    "dataplex_assets_analysis",
		Hierarchy:       dataplexHierarchy,
	},
}

func All() []*Kind {
	return slices.Clone(kinds)
}

// Lookup finds a kind by name or command.
func Lookup(name string) (*Kind, error) {
	for _, kind := range kinds {
		if kind.Name == name || kind.Command == name {
			return kind, nil
		}
	}
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, kind.Name)
	}
	return nil, fmt.Errorf("unknown resource kind %q, expected one of %s", name, strings.Join(names, ", "))
}
