package models

// Attribute id carrying the seller SKU on marketplace items.
const SellerSKUAttribute = "SELLER_SKU"

// ProductTypeParent marks composite/parent catalog rows that must never
// be synced directly.
const ProductTypeParent = "V"

// SKUSeparator appears inside composite/variant SKU codes, which are
// ineligible for price sync.
const SKUSeparator = "/"

// Push result statuses accepted from the pricing-sync service.
const (
	PushStatusUpdated = "Atualizado"
	PushStatusAdded   = "Adicionado"
)

// Company is the static configuration of one tenant. Immutable after
// bootstrap.
type Company struct {
	Name string `yaml:"name"`

	// Main tax sheet: the first cell of Range holds the tenant default
	// tax percentage.
	SheetID string `yaml:"sheet_id"`
	Range   string `yaml:"range"`

	// Optional exception sheets. Empty id disables the feature.
	CostExceptionSheetID string `yaml:"cost_exception_sheet_id"`
	CostExceptionRange   string `yaml:"cost_exception_range"`
	TaxExceptionSheetID  string `yaml:"tax_exception_sheet_id"`
	TaxExceptionRange    string `yaml:"tax_exception_range"`

	// Lookback window for advertising metrics.
	DateRangeDays int `yaml:"date_range_days"`

	// SQL run against the tenant database to fetch the current access
	// tokens (ads API and pricing-sync API respectively). Each must
	// return an access_token column.
	TokenQueryAds  string `yaml:"token_query_ads"`
	TokenQuerySync string `yaml:"token_query_sync"`

	// Debug limits ad listing to the first page.
	Debug bool `yaml:"debug"`
}

// AdMetrics is the metric subset the pipeline consumes from a product
// ad line.
type AdMetrics struct {
	Cost               float64 `json:"cost"`
	TotalAmount        float64 `json:"total_amount"`
	OrganicUnitsAmount float64 `json:"organic_units_amount"`
}

// RawAdItem is one advertised item as returned by the ads metrics
// endpoint for a (tenant, date range) pair.
type RawAdItem struct {
	ItemID  string    `json:"item_id"`
	Metrics AdMetrics `json:"metrics"`
}

// ResolvedItem is a RawAdItem joined with item metadata. An empty SKU
// means the seller-SKU attribute was absent; such items are dropped
// before aggregation.
type ResolvedItem struct {
	ID                 string
	Title              string
	FamilyName         string
	SKU                string
	Cost               float64
	TotalAmount        float64
	OrganicUnitsAmount float64
}

// SkuAggregate carries the advertising-cost-to-sales ratio for one
// distinct SKU, as a two-decimal percentage.
type SkuAggregate struct {
	SKU   string
	Tacos float64
}

// PricedRecord is the unit pushed to the pricing-sync service, keyed by
// CodigoSKU.
type PricedRecord struct {
	SKU                  string
	CodigoSKU            string
	Produto              string
	TaxSheet             string
	Tacos                float64
	PrecoDeCusto         float64
	PrecoDeCustoOriginal float64
}

// Product is the catalog row subset the pipeline reads.
type Product struct {
	ID            int64
	CodigoSKU     string
	Descricao     string
	Preco         float64
	PrecoDeCusto  float64
	TipoDoProduto string
	Situacao      string
	GtinEan       string
}

// CostBasis returns the per-unit cost used for sync: preco_de_custo
// when non-zero, otherwise the list price. The bool reports whether
// any non-zero basis exists.
func (p Product) CostBasis() (float64, bool) {
	if p.PrecoDeCusto != 0 {
		return p.PrecoDeCusto, true
	}
	if p.Preco != 0 {
		return p.Preco, true
	}
	return 0, false
}

// TaxException is one row of a tenant's tax-exception sheet. All fields
// are percentages; the applied tax fully replaces the tenant default.
type TaxException struct {
	NewTaxSheet float64
	ICMS        float64
	Fixo        float64
	PIS         float64
	Cofins      float64
}

// Total sums the exception components.
func (t TaxException) Total() float64 {
	return t.NewTaxSheet + t.ICMS + t.Fixo + t.PIS + t.Cofins
}
