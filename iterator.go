package falcon

import (
	"context"
	"errors"
	"iter"
)

// ErrEmptyIterator is returned by First when the iterator yields no items.
var ErrEmptyIterator = errors.New("iterator is empty")

// QueryFunc matches every paged operation, e.g. client.Hosts.Query.
type QueryFunc func(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

// Pages returns an iterator over successive pages of an offset paged
// query. It starts at params["offset"] and stops after the page that
// reaches meta.pagination.total, or at the first empty page.
func Pages(ctx context.Context, query QueryFunc, params Params, opts ...RequestOption) iter.Seq2[*Envelope, error] {
	return func(yield func(*Envelope, error) bool) {
		p := params.clone()
		offset, _ := p["offset"].(int)

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			p["offset"] = offset
			env, err := query(ctx, p, opts...)
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(env, nil) {
				return
			}

			offset += len(env.Resources)
			if len(env.Resources) == 0 || env.Meta.Pagination == nil || offset >= env.Meta.Pagination.Total {
				return
			}
		}
	}
}

// QueryIDs returns an iterator over every ID an ID query returns, fetching
// pages lazily as you iterate.
func QueryIDs(ctx context.Context, query QueryFunc, params Params, opts ...RequestOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for page, err := range Pages(ctx, query, params, opts...) {
			if err != nil {
				yield("", err)
				return
			}

			ids, err := page.IDs()
			if err != nil {
				yield("", err)
				return
			}

			for _, id := range ids {
				if !yield(id, nil) {
					return
				}
			}
		}
	}
}

// Collect gathers all items from an iterator into a slice.
// It stops on the first error and returns all items collected so far along with the error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, item)
	}
	return result, nil
}

// First returns the first item from an iterator, or an error if the iterator is empty or fails.
func First[T any](seq iter.Seq2[T, error]) (T, error) {
	for item, err := range seq {
		return item, err
	}
	var zero T
	return zero, ErrEmptyIterator
}

// Take returns an iterator that yields at most n items from the source iterator.
func Take[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for item, err := range seq {
			if !yield(item, err) || err != nil {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}
