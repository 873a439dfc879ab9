package googlecloud

import (
	"context"
	"path"

	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/pagination"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
	"github.com/PeerDB-io/gcp-inventory/walker"
)

const (
	DatasetNode = "dataset"
	LakeNode    = "lake"
	ZoneNode    = "zone"
	AssetNode   = "asset"
)

// ListProjects lists project ids matching filter, e.g. lifecycleState:ACTIVE.
func (c *Clients) ListProjects(filter string) pagination.ListFunc[string] {
	return func(ctx context.Context, cursor string) ([]string, string, error) {
		resp, err := c.ResourceManager.Projects.List().
			Filter(filter).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "projects.list", filter)
		}

		ids := make([]string, 0, len(resp.Projects))
		for _, project := range resp.Projects {
			ids = append(ids, project.ProjectId)
		}
		return ids, resp.NextPageToken, nil
	}
}

// ListEnabledServices returns, per project, a listing of the names of its
// enabled services such as bigquery.googleapis.com.
func (c *Clients) ListEnabledServices(pageSize int64) func(project string) pagination.ListFunc[string] {
	return func(project string) pagination.ListFunc[string] {
		return func(ctx context.Context, cursor string) ([]string, string, error) {
			resp, err := c.ServiceUsage.Services.List("projects/"+project).
				Filter("state:ENABLED").
				PageSize(pageSize).
				PageToken(cursor).
				Fields("services/name", "services/config/name", "nextPageToken").
				Context(ctx).
				Do()
			if err != nil {
				return nil, "", exceptions.NewTransportError(err, "services.list", project)
			}

			names := make([]string, 0, len(resp.Services))
			for _, service := range resp.Services {
				if service.Config != nil && service.Config.Name != "" {
					names = append(names, service.Config.Name)
				} else {
					names = append(names, path.Base(service.Name))
				}
			}
			return names, resp.NextPageToken, nil
		}
	}
}

func (c *Clients) ListDatasets(parent *walker.Node) pagination.ListFunc[*walker.Node] {
	return func(ctx context.Context, cursor string) ([]*walker.Node, string, error) {
		resp, err := c.BigQuery.Datasets.List(parent.ID).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "datasets.list", parent.ID)
		}

		nodes := make([]*walker.Node, 0, len(resp.Datasets))
		for _, dataset := range resp.Datasets {
			nodes = append(nodes, &walker.Node{ID: dataset.DatasetReference.DatasetId, Type: DatasetNode})
		}
		return nodes, resp.NextPageToken, nil
	}
}

// ListTables lists tables, views and other table types of a dataset. The node
// type is the API's type discriminator (TABLE, VIEW, EXTERNAL, ...).
func (c *Clients) ListTables(parent *walker.Node) pagination.ListFunc[*walker.Node] {
	return func(ctx context.Context, cursor string) ([]*walker.Node, string, error) {
		project := parent.Ancestor(walker.ProjectNode).ID
		resp, err := c.BigQuery.Tables.List(project, parent.ID).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "tables.list", project+"."+parent.ID)
		}

		nodes := make([]*walker.Node, 0, len(resp.Tables))
		for _, table := range resp.Tables {
			rec, err := model.DecodeRecord(table)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, &walker.Node{ID: table.TableReference.TableId, Type: table.Type, Record: rec})
		}
		return nodes, resp.NextPageToken, nil
	}
}

// GetTable fetches the full metadata of a table or view.
func (c *Clients) GetTable(ctx context.Context, leaf *walker.Node) (model.Record, error) {
	project := leaf.Ancestor(walker.ProjectNode).ID
	dataset := leaf.Ancestor(DatasetNode).ID
	table, err := c.BigQuery.Tables.Get(project, dataset, leaf.ID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, exceptions.NewTransportError(err, "tables.get", project+"."+dataset+"."+leaf.ID)
	}
	return model.DecodeRecord(table)
}

// ListLakes lists the lakes of a project in every location.
func (c *Clients) ListLakes(parent *walker.Node) pagination.ListFunc[*walker.Node] {
	return func(ctx context.Context, cursor string) ([]*walker.Node, string, error) {
		name := "projects/" + parent.ID + "/locations/-"
		resp, err := c.Dataplex.Projects.Locations.Lakes.List(name).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "lakes.list", name)
		}

		nodes := make([]*walker.Node, 0, len(resp.Lakes))
		for _, lake := range resp.Lakes {
			nodes = append(nodes, &walker.Node{ID: lake.Name, Type: LakeNode})
		}
		return nodes, resp.NextPageToken, nil
	}
}

func (c *Clients) ListZones(parent *walker.Node) pagination.ListFunc[*walker.Node] {
	return func(ctx context.Context, cursor string) ([]*walker.Node, string, error) {
		resp, err := c.Dataplex.Projects.Locations.Lakes.Zones.List(parent.ID).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "zones.list", parent.ID)
		}

		nodes := make([]*walker.Node, 0, len(resp.Zones))
		for _, zone := range resp.Zones {
			nodes = append(nodes, &walker.Node{ID: zone.Name, Type: ZoneNode})
		}
		return nodes, resp.NextPageToken, nil
	}
}

// ListAssets lists the assets of a zone. The listing already carries every
// asset attribute, so no detail fetch is needed.
func (c *Clients) ListAssets(parent *walker.Node) pagination.ListFunc[*walker.Node] {
	return func(ctx context.Context, cursor string) ([]*walker.Node, string, error) {
		resp, err := c.Dataplex.Projects.Locations.Lakes.Zones.Assets.List(parent.ID).
			PageToken(cursor).
			Context(ctx).
			Do()
		if err != nil {
			return nil, "", exceptions.NewTransportError(err, "assets.list", parent.ID)
		}

		nodes := make([]*walker.Node, 0, len(resp.Assets))
		for _, asset := range resp.Assets {
			rec, err := model.DecodeRecord(asset)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, &walker.Node{ID: asset.Name, Type: AssetNode, Record: rec})
		}
		return nodes, resp.NextPageToken, nil
	}
}
