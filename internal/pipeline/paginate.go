package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// Page is one offset page of a paginated list endpoint.
type Page[T any] struct {
	Results []T
	Total   int
}

// FetchAllPages walks an offset-paginated endpoint. The first page
// decides: zero results (or firstPageOnly, the tenant debug flag)
// short-circuits; otherwise pages are fetched strictly sequentially at
// increasing offsets until offset >= total, appending results in page
// order. The upstream offset semantics require sequential fetching.
func FetchAllPages[T any](ctx context.Context, limit int, firstPageOnly bool, logger zerolog.Logger, fetch func(ctx context.Context, limit, offset int) (Page[T], error)) ([]T, error) {
	first, err := fetch(ctx, limit, 0)
	if err != nil {
		return nil, err
	}

	results := append([]T(nil), first.Results...)
	if len(first.Results) == 0 || firstPageOnly {
		return results, nil
	}

	total := first.Total
	totalPages := (total + limit - 1) / limit

	pageIndex := 2
	for offset := limit; offset < total; offset += limit {
		page, err := fetch(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		results = append(results, page.Results...)
		logger.Info().Int("page", pageIndex).Int("total_pages", totalPages).
			Int("fetched", len(results)).Int("total", total).Msg("page fetched")
		pageIndex++
	}

	return results, nil
}
