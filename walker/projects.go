package walker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/pagination"
	"github.com/PeerDB-io/gcp-inventory/shared"
)

// ProjectFilter selects the projects a walk runs over: discovered (or given)
// projects minus reserved ones, restricted to those where the required API is
// enabled.
type ProjectFilter struct {
	listProjects    pagination.ListFunc[string]
	listServices    func(project string) pagination.ListFunc[string]
	requiredService string
	reservedPrefix  string
	limiter         *rate.Limiter
}

type FilterOption func(*ProjectFilter)

// WithReservedPrefix overrides the prefix of system projects to skip.
// An empty prefix keeps every project.
func WithReservedPrefix(prefix string) FilterOption {
	return func(f *ProjectFilter) {
		f.reservedPrefix = prefix
	}
}

// WithEnablementDelay sets the pause between enablement listing calls.
func WithEnablementDelay(delay time.Duration) FilterOption {
	return func(f *ProjectFilter) {
		f.limiter = newLimiter(delay)
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func NewProjectFilter(
	listProjects pagination.ListFunc[string],
	listServices func(project string) pagination.ListFunc[string],
	requiredService string,
	opts ...FilterOption,
) *ProjectFilter {
	f := &ProjectFilter{
		listProjects:    listProjects,
		listServices:    listServices,
		requiredService: requiredService,
		reservedPrefix:  shared.DefaultReservedProjectPrefix,
		limiter:         newLimiter(300 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Projects returns the filtered project ids, deduplicated in discovery order.
// Explicit projects replace discovery but are filtered all the same.
func (f *ProjectFilter) Projects(ctx context.Context, explicit []string) ([]string, error) {
	candidates := explicit
	if len(candidates) == 0 {
		discovered, err := pagination.Collect(ctx, f.listProjects)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		candidates = discovered
	}

	log := logger.LoggerFromCtx(ctx)
	seen := make(map[string]struct{}, len(candidates))
	var projects []string
	for _, project := range candidates {
		if _, ok := seen[project]; ok {
			continue
		}
		seen[project] = struct{}{}

		if f.reservedPrefix != "" && strings.HasPrefix(project, f.reservedPrefix) {
			log.Debug("skipping reserved project", "project", project)
			continue
		}

		enabled, err := f.Enabled(ctx, project)
		if err != nil {
			return nil, err
		}
		if !enabled {
			log.Info("required service not enabled, skipping project",
				"project", project, "service", f.requiredService)
			continue
		}
		projects = append(projects, project)
	}

	log.Info("selected projects", "candidates", len(candidates), "selected", len(projects))
	return projects, nil
}

// Enabled reports whether the required service is enabled in project. Listing
// stops at the first page that contains it.
func (f *ProjectFilter) Enabled(ctx context.Context, project string) (bool, error) {
	list := f.listServices(project)
	paced := func(ctx context.Context, cursor string) ([]string, string, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
		return list(ctx, cursor)
	}

	for service, err := range pagination.All(ctx, paced) {
		if err != nil {
			return false, fmt.Errorf("failed to list services of %s: %w", project, err)
		}
		if service == f.requiredService {
			return true, nil
		}
	}
	return false, nil
}
