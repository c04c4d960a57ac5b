// Package catalog provides read-only access to a tenant's product
// catalog and token store in Postgres. One pool per tenant, created at
// bootstrap and reused for the run's lifetime.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"tacosync/internal/config"
	"tacosync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore connects and pings the tenant database.
func NewStore(ctx context.Context, cfg config.PostgresConfig, logger zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "catalog").Logger(),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// AccessToken runs the tenant's configured token query and returns the
// token from the first row. An empty result is an error: the pipeline
// cannot run without credentials.
func (s *Store) AccessToken(ctx context.Context, query string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx, query).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errors.New("token query returned no rows")
	}
	if err != nil {
		return "", fmt.Errorf("token query: %w", err)
	}
	if token == "" {
		return "", errors.New("token query returned an empty token")
	}
	return token, nil
}

// SearchProducts runs a whitelist-column search, capped at 1000 rows
// per page.
func (s *Store) SearchProducts(ctx context.Context, opts SearchOptions) ([]models.Product, error) {
	sql, args := buildSearchQuery(opts)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.CodigoSKU, &p.Descricao, &p.Preco,
			&p.PrecoDeCusto, &p.TipoDoProduto, &p.Situacao, &p.GtinEan); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// ProductBySKU looks up a single catalog row by exact SKU. Returns
// (nil, nil) when no row matches.
func (s *Store) ProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	products, err := s.SearchProducts(ctx, SearchOptions{
		Filters: map[string]any{"codigo_sku": ExactSKU(sku)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// AllProducts fetches the entire catalog in pages of 1000, excluding
// composite/parent rows which are never synced.
func (s *Store) AllProducts(ctx context.Context) ([]models.Product, error) {
	const pageSize = 1000

	var all []models.Product
	for offset := 0; ; offset += pageSize {
		page, err := s.SearchProducts(ctx, SearchOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			if p.TipoDoProduto == models.ProductTypeParent {
				continue
			}
			all = append(all, p)
		}
		if len(page) < pageSize {
			break
		}
	}

	s.logger.Debug().Int("count", len(all)).Msg("catalog scan complete")
	return all, nil
}
