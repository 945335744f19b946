package portal

import (
	"context"
	"errors"
	"fmt"
)

// MaxPageSize is the largest page the portal returns.
const MaxPageSize = 100

// Result keys used by the list endpoints.
const (
	ResultsKey     = "results"
	UsersKey       = "users"
	InvitationsKey = "invitations"
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems = errors.New("no more items")
)

// Page is one slice of a paged result set. NextStart is the 1-based start
// index of the following page; zero or negative means there is none.
type Page[T any] struct {
	Results   []T `json:"results"`
	Num       int `json:"num"`
	NextStart int `json:"nextStart"`
	Total     int `json:"total"`
}

// PageFunc fetches the page of num results starting at start.
type PageFunc[T any] func(ctx context.Context, start, num int) (*Page[T], error)

// Aggregate collects pages from fetch until maxResults have been reported
// or the server signals the last page. Each request asks for at most
// MaxPageSize results. The last page is returned whole, so the result may
// hold up to one page more than maxResults.
func Aggregate[T any](ctx context.Context, fetch PageFunc[T], maxResults int) ([]T, error) {
	var (
		results []T
		count   int
		start   = 1
	)

	for {
		page, err := fetch(ctx, start, min(maxResults-count, MaxPageSize))
		if err != nil {
			return nil, err
		}

		if page == nil {
			return results, nil
		}

		results = append(results, page.Results...)
		count += page.Num
		start = page.NextStart

		if count >= maxResults || start <= 0 {
			return results, nil
		}
	}
}

type pageEnvelope struct {
	Num       int `json:"num"`
	NextStart int `json:"nextStart"`
	Total     int `json:"total"`
}

// DecodePage reads a paged response whose results are stored under key.
func DecodePage(body Object, key string) (*Page[Object], error) {
	if body == nil {
		return nil, ErrEmptyResponse
	}

	var envelope pageEnvelope

	err := body.Decode(&envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	return &Page[Object]{
		Results:   body.GetObjects(key),
		Num:       envelope.Num,
		NextStart: envelope.NextStart,
		Total:     envelope.Total,
	}, nil
}

// PaginationIterator walks a paged result set one result at a time,
// fetching pages lazily with the same stop rules as Aggregate.
type PaginationIterator[T any] struct {
	ctx        context.Context //nolint:containedctx // iterator holds the caller's context between Next calls
	fetch      PageFunc[T]
	maxResults int
	buffer     []T
	count      int
	start      int
	done       bool
	err        error
}

// NewPaginationIterator creates an iterator over fetch.
func NewPaginationIterator[T any](ctx context.Context, fetch PageFunc[T], maxResults int) *PaginationIterator[T] {
	return &PaginationIterator[T]{
		ctx:        ctx,
		fetch:      fetch,
		maxResults: maxResults,
		start:      1,
	}
}

// HasNext reports whether another result is available, fetching the next
// page when the current one is exhausted.
func (it *PaginationIterator[T]) HasNext() bool {
	for len(it.buffer) == 0 {
		if it.done || it.err != nil {
			return false
		}

		it.fetchPage()
	}

	return true
}

// Next returns the next result.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	if !it.HasNext() {
		if it.err != nil {
			return zero, it.err
		}

		return zero, ErrNoMoreItems
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]

	return item, nil
}

// Err returns the error that stopped the iteration, if any.
func (it *PaginationIterator[T]) Err() error {
	return it.err
}

// All drains the iterator.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var results []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}

		results = append(results, item)
	}

	if it.err != nil {
		return nil, it.err
	}

	return results, nil
}

func (it *PaginationIterator[T]) fetchPage() {
	page, err := it.fetch(it.ctx, it.start, min(it.maxResults-it.count, MaxPageSize))
	if err != nil {
		it.err = err

		return
	}

	if page == nil {
		it.done = true

		return
	}

	it.buffer = append(it.buffer, page.Results...)
	it.count += page.Num
	it.start = page.NextStart

	if it.count >= it.maxResults || it.start <= 0 {
		it.done = true
	}
}
