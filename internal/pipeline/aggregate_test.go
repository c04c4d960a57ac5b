package pipeline

import (
	"context"
	"testing"
	"time"

	"tacosync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSKUsSumsDuplicates(t *testing.T) {
	items := []models.ResolvedItem{
		{SKU: "X", Cost: 10, TotalAmount: 80, OrganicUnitsAmount: 20},
		{SKU: "X", Cost: 10, TotalAmount: 90, OrganicUnitsAmount: 10},
	}

	aggregates := AggregateSKUs(items)
	require.Len(t, aggregates, 1)
	// cost 20 / amount 200 * 100
	assert.Equal(t, models.SkuAggregate{SKU: "X", Tacos: 10.00}, aggregates[0])
}

func TestAggregateSKUsZeroDivisionGuard(t *testing.T) {
	items := []models.ResolvedItem{
		{SKU: "X", Cost: 42, TotalAmount: 0, OrganicUnitsAmount: 0},
		{SKU: "Y", Cost: 0, TotalAmount: 100, OrganicUnitsAmount: 0},
	}

	aggregates := AggregateSKUs(items)
	require.Len(t, aggregates, 2)
	assert.Equal(t, 0.0, aggregates[0].Tacos)
	assert.Equal(t, 0.0, aggregates[1].Tacos)
}

func TestAggregateSKUsSkipsEmptySKU(t *testing.T) {
	items := []models.ResolvedItem{
		{SKU: "", Cost: 10, TotalAmount: 100},
		{SKU: "A", Cost: 5, TotalAmount: 50},
	}

	aggregates := AggregateSKUs(items)
	require.Len(t, aggregates, 1)
	assert.Equal(t, "A", aggregates[0].SKU)
}

func TestAggregateSKUsRounding(t *testing.T) {
	items := []models.ResolvedItem{
		{SKU: "R", Cost: 1, TotalAmount: 3},
	}
	aggregates := AggregateSKUs(items)
	assert.Equal(t, 33.33, aggregates[0].Tacos)
}

func mapLookup(products map[string]models.Product) CatalogLookup {
	return func(ctx context.Context, sku string) (*models.Product, error) {
		if p, ok := products[sku]; ok {
			return &p, nil
		}
		return nil, nil
	}
}

func TestMergeCostsBasisAndFallback(t *testing.T) {
	products := map[string]models.Product{
		"A": {CodigoSKU: "A", Descricao: "prod a", PrecoDeCusto: 40, Preco: 100},
		"B": {CodigoSKU: "B", Descricao: "prod b", PrecoDeCusto: 0, Preco: 75},
	}
	aggregates := []models.SkuAggregate{{SKU: "A", Tacos: 5}, {SKU: "B", Tacos: 7}}

	records, err := MergeCosts(context.Background(), aggregates, mapLookup(products),
		nil, nil, "8,5%", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 40.0, records[0].PrecoDeCusto)
	assert.Equal(t, 75.0, records[1].PrecoDeCusto, "zero cost basis falls back to list price")
	assert.Equal(t, "8,5%", records[0].TaxSheet)
}

func TestMergeCostsSkipsUnknownSKU(t *testing.T) {
	aggregates := []models.SkuAggregate{{SKU: "GHOST", Tacos: 5}}

	records, err := MergeCosts(context.Background(), aggregates, mapLookup(nil),
		nil, nil, "8", zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMergeCostsCostException(t *testing.T) {
	products := map[string]models.Product{
		"A": {CodigoSKU: "A", Descricao: "prod a", PrecoDeCusto: 100},
	}
	aggregates := []models.SkuAggregate{{SKU: "A", Tacos: 5}}
	costExceptions := map[string]float64{"A": 10}

	records, err := MergeCosts(context.Background(), aggregates, mapLookup(products),
		costExceptions, nil, "8", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 110.0, records[0].PrecoDeCusto)
	assert.Equal(t, 100.0, records[0].PrecoDeCustoOriginal, "pre-multiplier value retained")
}

func TestMergeCostsTaxExceptionReplacesDefault(t *testing.T) {
	products := map[string]models.Product{
		"A": {CodigoSKU: "A", PrecoDeCusto: 10},
	}
	aggregates := []models.SkuAggregate{{SKU: "A", Tacos: 5}}
	taxExceptions := map[string]models.TaxException{
		"A": {NewTaxSheet: 5, ICMS: 1, Fixo: 1, PIS: 0.65, Cofins: 3},
	}

	records, err := MergeCosts(context.Background(), aggregates, mapLookup(products),
		nil, taxExceptions, "8,5%", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.65", records[0].TaxSheet, "override replaces, never adds to, the default")
}

func TestBackfillAddsMissingCatalogSKUs(t *testing.T) {
	records := []models.PricedRecord{{SKU: "A", CodigoSKU: "A", Tacos: 12}}
	products := []models.Product{
		{CodigoSKU: "A", Descricao: "already there", Preco: 10},
		{CodigoSKU: "NEW", Descricao: "no ad spend", PrecoDeCusto: 33},
		{CodigoSKU: "", Descricao: "no sku"},
	}

	out := Backfill(records, products, "8")
	require.Len(t, out, 2)
	backfilled := out[1]
	assert.Equal(t, "NEW", backfilled.CodigoSKU)
	assert.Equal(t, 0.0, backfilled.Tacos)
	assert.Equal(t, "8", backfilled.TaxSheet)
	assert.Equal(t, 33.0, backfilled.PrecoDeCusto)
}

func TestDedupe(t *testing.T) {
	records := []models.PricedRecord{
		{CodigoSKU: "A"},
		{CodigoSKU: "A "},
		{CodigoSKU: "B/V1"},
		{CodigoSKU: "C"},
		{CodigoSKU: ""},
	}

	out := Dedupe(records)
	require.Len(t, out, 1)
	assert.Equal(t, "C", out[0].CodigoSKU, "duplicates, composite codes and empties all dropped")
}

func TestDedupeIdempotent(t *testing.T) {
	records := []models.PricedRecord{{CodigoSKU: "C"}, {CodigoSKU: "D"}}
	once := Dedupe(records)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestFinalTax(t *testing.T) {
	record := models.PricedRecord{CodigoSKU: "A", Tacos: 10.5, TaxSheet: "8,5%"}
	tax, err := FinalTax(record)
	require.NoError(t, err)
	assert.Equal(t, "19.00", tax)

	_, err = FinalTax(models.PricedRecord{CodigoSKU: "B", TaxSheet: "not a number"})
	assert.Error(t, err)
}

func TestDateWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	from, to := dateWindow(now, 30)
	assert.Equal(t, "2026-03-09", to, "date_to is yesterday")
	assert.Equal(t, "2026-02-07", from, "date_from reaches back days+1")
}
