package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tacosync/internal/models"

	"github.com/rs/zerolog"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AggregateSKUs folds resolved items into one entry per distinct
// non-empty SKU, summing cost and attributed sales amount, then
// computes tacos = round2(cost / amount * 100). Either sum being zero
// yields tacos 0. Output preserves first-seen SKU order.
func AggregateSKUs(items []models.ResolvedItem) []models.SkuAggregate {
	type sums struct {
		cost   float64
		amount float64
	}

	var order []string
	bySKU := make(map[string]*sums)

	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		s, ok := bySKU[item.SKU]
		if !ok {
			s = &sums{}
			bySKU[item.SKU] = s
			order = append(order, item.SKU)
		}
		s.cost += item.Cost
		s.amount += item.TotalAmount + item.OrganicUnitsAmount
	}

	aggregates := make([]models.SkuAggregate, 0, len(order))
	for _, sku := range order {
		s := bySKU[sku]
		tacos := 0.0
		if s.cost != 0 && s.amount != 0 {
			tacos = round2(s.cost / s.amount * 100)
		}
		aggregates = append(aggregates, models.SkuAggregate{SKU: sku, Tacos: tacos})
	}
	return aggregates
}

// CatalogLookup resolves a SKU to its catalog row; nil row means the
// SKU is absent from the catalog.
type CatalogLookup func(ctx context.Context, sku string) (*models.Product, error)

// MergeCosts joins aggregates with catalog cost data and the tenant's
// exception sheets. SKUs absent from the catalog are dropped (they
// cannot be pushed without a codigo_sku); a zero cost basis is kept
// but logged. Cost exceptions multiply the basis by (1 + pct/100)
// with the pre-multiplier value retained; tax exceptions fully replace
// the tenant default.
func MergeCosts(ctx context.Context, aggregates []models.SkuAggregate, lookup CatalogLookup,
	costExceptions map[string]float64, taxExceptions map[string]models.TaxException,
	defaultTax string, logger zerolog.Logger) ([]models.PricedRecord, error) {

	records := make([]models.PricedRecord, 0, len(aggregates))
	for _, agg := range aggregates {
		product, err := lookup(ctx, agg.SKU)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup %s: %w", agg.SKU, err)
		}
		if product == nil {
			logger.Warn().Str("sku", agg.SKU).Msg("sku not found in catalog, skipping")
			continue
		}

		basis, ok := product.CostBasis()
		if !ok {
			logger.Warn().Str("sku", agg.SKU).Msg("catalog row has no cost basis")
		}

		original := basis
		if pct, found := costExceptions[strings.TrimSpace(agg.SKU)]; found {
			basis = round2(basis * (1 + pct/100))
		}

		tax := defaultTax
		if exc, found := taxExceptions[strings.TrimSpace(agg.SKU)]; found {
			tax = fmt.Sprintf("%.2f", exc.Total())
		}

		records = append(records, models.PricedRecord{
			SKU:                  agg.SKU,
			CodigoSKU:            product.CodigoSKU,
			Produto:              product.Descricao,
			TaxSheet:             tax,
			Tacos:                agg.Tacos,
			PrecoDeCusto:         basis,
			PrecoDeCustoOriginal: original,
		})
	}
	return records, nil
}

// Backfill appends one default record per catalog product whose SKU
// has no ad-derived record, so every catalog SKU is considered for
// sync even with zero ad spend. Catalog rows sharing a SKU all get
// appended; the dedup pass then drops the ambiguous code entirely.
func Backfill(records []models.PricedRecord, products []models.Product, defaultTax string) []models.PricedRecord {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[strings.TrimSpace(r.CodigoSKU)] = true
	}

	out := records
	for _, p := range products {
		sku := strings.TrimSpace(p.CodigoSKU)
		if sku == "" || seen[sku] {
			continue
		}
		basis, _ := p.CostBasis()
		out = append(out, models.PricedRecord{
			SKU:                  sku,
			CodigoSKU:            p.CodigoSKU,
			Produto:              p.Descricao,
			TaxSheet:             defaultTax,
			Tacos:                0,
			PrecoDeCusto:         basis,
			PrecoDeCustoOriginal: basis,
		})
	}
	return out
}

// Dedupe enforces one record per codigo_sku. Empty SKUs and
// composite/variant codes (containing the separator) are excluded
// outright; any SKU occurring more than once is dropped entirely,
// never merged.
func Dedupe(records []models.PricedRecord) []models.PricedRecord {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		sku := strings.TrimSpace(r.CodigoSKU)
		if sku == "" || strings.Contains(sku, models.SKUSeparator) {
			continue
		}
		counts[sku]++
	}

	out := make([]models.PricedRecord, 0, len(records))
	for _, r := range records {
		sku := strings.TrimSpace(r.CodigoSKU)
		if counts[sku] == 1 {
			out = append(out, r)
		}
	}
	return out
}
