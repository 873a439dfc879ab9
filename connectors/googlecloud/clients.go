package googlecloud

import (
	"context"
	"fmt"

	bqv2 "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/dataplex/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/serviceusage/v1"
)

// Clients bundles the REST clients used to walk an organization's resources.
type Clients struct {
	ResourceManager *cloudresourcemanager.Service
	ServiceUsage    *serviceusage.Service
	BigQuery        *bqv2.Service
	Dataplex        *dataplex.Service
}

func NewClients(ctx context.Context, opts ...option.ClientOption) (*Clients, error) {
	crm, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Resource Manager client: %w", err)
	}
	su, err := serviceusage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Usage client: %w", err)
	}
	bq, err := bqv2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	dp, err := dataplex.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Dataplex client: %w", err)
	}

	return &Clients{
		ResourceManager: crm,
		ServiceUsage:    su,
		BigQuery:        bq,
		Dataplex:        dp,
	}, nil
}
