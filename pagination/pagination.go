// Package pagination drives cursor-based listing calls to completion.
//
// A listing call receives the cursor returned by the previous page and returns
// the page's items together with the next cursor. The empty string is both the
// initial cursor and the end-of-sequence marker, matching the nextPageToken
// convention of the Google REST APIs.
package pagination

import (
	"context"
	"iter"
)

type ListFunc[T any] func(ctx context.Context, cursor string) ([]T, string, error)

type Page struct {
	Number int
	Items  int
	Cursor string
}

type config struct {
	onPage func(context.Context, Page) error
}

type Option func(*config)

// WithPageHook registers fn to run after every page is fetched and before its
// items are yielded. An error returned by fn ends the sequence.
func WithPageHook(fn func(context.Context, Page) error) Option {
	return func(c *config) {
		c.onPage = fn
	}
}

// All returns a lazy sequence over every item of every page, in page order.
// A transport error is yielded once with a zero item and ends the sequence.
func All[T any](ctx context.Context, list ListFunc[T], opts ...Option) iter.Seq2[T, error] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(T, error) bool) {
		var zero T
		cursor := ""
		for number := 1; ; number++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			items, next, err := list(ctx, cursor)
			if err != nil {
				yield(zero, err)
				return
			}

			if cfg.onPage != nil {
				if err := cfg.onPage(ctx, Page{Number: number, Items: len(items), Cursor: next}); err != nil {
					yield(zero, err)
					return
				}
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if next == "" {
				return
			}
			cursor = next
		}
	}
}

// Collect drains All into a slice.
func Collect[T any](ctx context.Context, list ListFunc[T], opts ...Option) ([]T, error) {
	var items []T
	for item, err := range All(ctx, list, opts...) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
