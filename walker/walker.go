// Package walker walks a resource hierarchy below each project depth first and
// accumulates one flat row per retained leaf resource.
package walker

import (
	"context"
	"errors"
	"fmt"

	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/pagination"
	"github.com/PeerDB-io/gcp-inventory/shared"
)

type Walker struct {
	hierarchy Hierarchy
	onPage    func(ctx context.Context, level string, page pagination.Page)
	onFetch   func(ctx context.Context, leaf *Node)
}

type Option func(*Walker)

// WithPageHook is called for every page fetched at any level.
func WithPageHook(fn func(ctx context.Context, level string, page pagination.Page)) Option {
	return func(w *Walker) {
		w.onPage = fn
	}
}

// WithFetchHook is called after every successful detail fetch.
func WithFetchHook(fn func(ctx context.Context, leaf *Node)) Option {
	return func(w *Walker) {
		w.onFetch = fn
	}
}

func New(hierarchy Hierarchy, opts ...Option) (*Walker, error) {
	if len(hierarchy.Levels) == 0 {
		return nil, errors.New("hierarchy has no levels")
	}
	w := &Walker{hierarchy: hierarchy}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Walk appends one row per kept leaf of every project to table, in traversal
// order. The first error aborts the walk; rows appended before it stay in table.
func (w *Walker) Walk(ctx context.Context, projects []string, table *model.Table) error {
	for _, project := range projects {
		projectCtx := shared.WithProject(ctx, project)
		before := table.Len()
		logger.LoggerFromCtx(projectCtx).Info("walking project")

		root := &Node{ID: project, Type: ProjectNode}
		if err := w.walk(projectCtx, root, 0, table); err != nil {
			return fmt.Errorf("failed to walk project %s: %w", project, err)
		}

		logger.LoggerFromCtx(projectCtx).Info("finished project", "rows", table.Len()-before)
	}
	return nil
}

func (w *Walker) walk(ctx context.Context, parent *Node, depth int, table *model.Table) error {
	level := w.hierarchy.Levels[depth]
	leafLevel := depth == len(w.hierarchy.Levels)-1

	var opts []pagination.Option
	if w.onPage != nil {
		opts = append(opts, pagination.WithPageHook(func(ctx context.Context, page pagination.Page) error {
			w.onPage(ctx, level.Name, page)
			return nil
		}))
	}

	children := 0
	for child, err := range pagination.All(ctx, level.List(parent), opts...) {
		if err != nil {
			return err
		}
		children++
		child.Parent = parent

		if !leafLevel {
			if err := w.walk(ctx, child, depth+1, table); err != nil {
				return err
			}
			continue
		}

		if w.hierarchy.Keep != nil && !w.hierarchy.Keep(child) {
			continue
		}
		rec, err := w.detail(ctx, child)
		if err != nil {
			return err
		}
		table.Append(model.Flatten(rec))
	}

	if children == 0 {
		logger.LoggerFromCtx(ctx).Info("no resources found, skipping",
			"level", level.Name, "parent", parent.ID)
	}
	return nil
}

func (w *Walker) detail(ctx context.Context, leaf *Node) (model.Record, error) {
	if w.hierarchy.Fetch == nil {
		return leaf.Record, nil
	}
	rec, err := w.hierarchy.Fetch(ctx, leaf)
	if err != nil {
		return nil, err
	}
	if w.onFetch != nil {
		w.onFetch(ctx, leaf)
	}
	return rec, nil
}
