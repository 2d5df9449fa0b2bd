package viewmodel

import (
	"context"
	"fmt"

	"committeeDashboard/internal/dataservice"
)

// Fetcher produces view records. Every call re-runs the full read.
type Fetcher[R any] interface {
	Fetch(ctx context.Context) ([]R, error)
}

// Decoder converts a flattened row into a record.
type Decoder[R any] func(dataservice.Row) (R, error)

// QueryFetcher reads a Spec from the data service. The spec is built
// anew on every Fetch, so bounds relative to the current time move with it.
type QueryFetcher[R any] struct {
	svc    dataservice.Service
	build  func() Spec
	decode Decoder[R]
}

// NewFetcher builds a fetcher for a fixed spec.
func NewFetcher[R any](svc dataservice.Service, spec Spec, decode Decoder[R]) *QueryFetcher[R] {
	return NewFetcherFunc(svc, func() Spec { return spec }, decode)
}

// NewFetcherFunc builds a fetcher whose spec is produced by build at each
// Fetch. build must return the same Name, Entity and expansions each time.
func NewFetcherFunc[R any](svc dataservice.Service, build func() Spec, decode Decoder[R]) *QueryFetcher[R] {
	return &QueryFetcher[R]{svc: svc, build: build, decode: decode}
}

// Spec returns the spec the next Fetch would read.
func (f *QueryFetcher[R]) Spec() Spec { return f.build() }

// Fetch selects, flattens and decodes every row in order.
func (f *QueryFetcher[R]) Fetch(ctx context.Context) ([]R, error) {
	return f.fetch(ctx, f.build())
}

func (f *QueryFetcher[R]) fetch(ctx context.Context, spec Spec) ([]R, error) {
	rows, err := f.svc.Select(ctx, spec.Query())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", spec.Name, err)
	}
	records := make([]R, 0, len(rows))
	for _, row := range rows {
		rec, err := f.decode(Flatten(row, spec.Expansions))
		if err != nil {
			return nil, fmt.Errorf("fetch %s: decode: %w", spec.Name, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// FetchOne returns the single record of a by-id spec, or a not-found error.
func FetchOne[R any](ctx context.Context, f Fetcher[R]) (R, error) {
	var zero R
	records, err := f.Fetch(ctx)
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, dataservice.Wrap(dataservice.KindNotFound, "record not found", nil)
	}
	return records[0], nil
}
