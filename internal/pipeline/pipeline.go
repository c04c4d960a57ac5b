// Package pipeline implements the per-tenant batch run: list
// advertising metrics, resolve item SKUs, aggregate, merge catalog
// cost and spreadsheet tax data, and push one (cost, tax) pair per SKU
// to the pricing-sync service.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tacosync/internal/catalog"
	"tacosync/internal/config"
	"tacosync/internal/google"
	"tacosync/internal/meli"
	"tacosync/internal/metrics"
	"tacosync/internal/metu"
	"tacosync/internal/models"

	"github.com/rs/zerolog"
)

// advertiserProductID selects the product-ads program when listing
// advertisers.
const advertiserProductID = "PADS"

// PushRejectedError reports pricing-sync results outside the accepted
// status set. A business rejection, not a transport failure.
type PushRejectedError struct {
	Company  string
	Rejected []metu.PushResult
}

func (e *PushRejectedError) Error() string {
	skus := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		skus = append(skus, fmt.Sprintf("%s (%s)", r.SKU, r.Status))
	}
	return fmt.Sprintf("company %s: %d push results rejected: %s",
		e.Company, len(e.Rejected), strings.Join(skus, ", "))
}

// Tenant is the per-company runtime context: config plus the catalog
// pool, API clients and spreadsheet-derived data mounted once at
// bootstrap and passed by reference through the run.
type Tenant struct {
	Company        models.Company
	Catalog        *catalog.Store
	Ads            *meli.Client
	Sync           *metu.Client
	AdvertiserID   int64
	DefaultTax     string
	CostExceptions map[string]float64
	TaxExceptions  map[string]models.TaxException
}

// Runner sequences the pipeline over all configured tenants, strictly
// one at a time. The first unrecoverable failure terminates the whole
// run; tenants not yet processed are never attempted.
type Runner struct {
	cfg     *config.Config
	sheets  *google.SheetsService
	logger  zerolog.Logger
	tenants []*Tenant

	now func() time.Time
}

func NewRunner(cfg *config.Config, sheets *google.SheetsService, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		sheets: sheets,
		logger: logger.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}
}

// MountTenants resolves tokens, advertiser ids and spreadsheet data
// for every company. Any failure here is fatal: a tenant without
// credentials or an advertiser cannot be synced.
func (r *Runner) MountTenants(ctx context.Context, stores map[string]*catalog.Store) error {
	for _, company := range r.cfg.Companies {
		tenant, err := r.mountTenant(ctx, company, stores[company.Name])
		if err != nil {
			return fmt.Errorf("mount company %s: %w", company.Name, err)
		}
		r.tenants = append(r.tenants, tenant)
	}
	return nil
}

func (r *Runner) mountTenant(ctx context.Context, cc config.CompanyConfig, store *catalog.Store) (*Tenant, error) {
	if store == nil {
		return nil, fmt.Errorf("no catalog store for company")
	}
	logger := r.logger.With().Str("company", cc.Name).Logger()

	adsToken, err := store.AccessToken(ctx, cc.TokenQueryAds)
	if err != nil {
		return nil, fmt.Errorf("ads access token: %w", err)
	}
	syncToken, err := store.AccessToken(ctx, cc.TokenQuerySync)
	if err != nil {
		return nil, fmt.Errorf("sync access token: %w", err)
	}
	logger.Info().Msg("access tokens retrieved")

	refresh := func(ctx context.Context) (string, error) {
		return store.AccessToken(ctx, cc.TokenQueryAds)
	}
	ads := meli.NewClient(adsToken, refresh, logger)
	ads.UseRateLimit(r.cfg.Pipeline.AdsRPS, 1)

	syncClient := metu.NewClient(syncToken, logger)
	syncClient.UseRateLimit(r.cfg.Pipeline.SyncRPS, 1)

	advertisers, err := ads.Advertisers(ctx, advertiserProductID)
	if err != nil {
		return nil, fmt.Errorf("list advertisers: %w", err)
	}
	if len(advertisers) == 0 {
		return nil, fmt.Errorf("no advertiser found")
	}
	// A tenant has exactly one advertising account; the first entry is
	// authoritative.
	advertiserID := advertisers[0].AdvertiserID

	defaultTax, err := r.readDefaultTax(ctx, cc.Company)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("default_tax", defaultTax).Int64("advertiser_id", advertiserID).Msg("tenant mounted")

	costExceptions, taxExceptions, err := r.readExceptions(ctx, cc.Company)
	if err != nil {
		return nil, err
	}

	return &Tenant{
		Company:        cc.Company,
		Catalog:        store,
		Ads:            ads,
		Sync:           syncClient,
		AdvertiserID:   advertiserID,
		DefaultTax:     defaultTax,
		CostExceptions: costExceptions,
		TaxExceptions:  taxExceptions,
	}, nil
}

// readDefaultTax fetches the tenant's single spreadsheet-derived tax
// percentage: the first cell of the configured range.
func (r *Runner) readDefaultTax(ctx context.Context, company models.Company) (string, error) {
	rows, err := r.sheets.ReadRange(ctx, company.SheetID, company.Range)
	if err != nil {
		return "", fmt.Errorf("read tax sheet: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 || strings.TrimSpace(rows[0][0]) == "" {
		return "", fmt.Errorf("tax sheet range %s is empty", company.Range)
	}
	return strings.TrimSpace(rows[0][0]), nil
}

func (r *Runner) readExceptions(ctx context.Context, company models.Company) (map[string]float64, map[string]models.TaxException, error) {
	costExceptions := map[string]float64{}
	if company.CostExceptionSheetID != "" {
		rows, err := r.sheets.ReadRange(ctx, company.CostExceptionSheetID, company.CostExceptionRange)
		if err != nil {
			return nil, nil, fmt.Errorf("read cost exceptions: %w", err)
		}
		costExceptions = ParseCostExceptions(rows)
	}

	taxExceptions := map[string]models.TaxException{}
	if company.TaxExceptionSheetID != "" {
		rows, err := r.sheets.ReadRange(ctx, company.TaxExceptionSheetID, company.TaxExceptionRange)
		if err != nil {
			return nil, nil, fmt.Errorf("read tax exceptions: %w", err)
		}
		taxExceptions = ParseTaxExceptions(rows)
	}

	return costExceptions, taxExceptions, nil
}

// Run executes the pipeline for every mounted tenant in order.
func (r *Runner) Run(ctx context.Context) error {
	for _, tenant := range r.tenants {
		if err := r.runTenant(ctx, tenant); err != nil {
			return fmt.Errorf("company %s: %w", tenant.Company.Name, err)
		}
	}
	return nil
}

func (r *Runner) runTenant(ctx context.Context, tenant *Tenant) error {
	logger := r.logger.With().Str("company", tenant.Company.Name).Logger()
	dateFrom, dateTo := dateWindow(r.now(), tenant.Company.DateRangeDays)
	logger.Info().Str("date_from", dateFrom).Str("date_to", dateTo).Msg("starting tenant run")

	raw, err := FetchAllPages(ctx, r.cfg.Pipeline.AdsPageSize, tenant.Company.Debug, logger,
		func(ctx context.Context, limit, offset int) (Page[models.RawAdItem], error) {
			page, err := tenant.Ads.ProductAdsPage(ctx, tenant.AdvertiserID, dateFrom, dateTo, limit, offset)
			if err != nil {
				return Page[models.RawAdItem]{}, err
			}
			return Page[models.RawAdItem]{Results: page.Results, Total: page.Paging.Total}, nil
		})
	if err != nil {
		return fmt.Errorf("list product ads: %w", err)
	}
	logger.Info().Int("ads", len(raw)).Msg("product ads listed")

	resolved, err := RunChunks(ctx, raw, r.chunkOptions("resolve", r.cfg.Pipeline.ResolveChunkSize, true, logger),
		func(ctx context.Context, item models.RawAdItem) (models.ResolvedItem, error) {
			return resolveItem(ctx, tenant.Ads, item)
		})
	if err != nil {
		return fmt.Errorf("resolve skus: %w", err)
	}

	withSKU := resolved[:0:0]
	for _, item := range resolved {
		if item.SKU != "" {
			withSKU = append(withSKU, item)
		}
	}
	logger.Info().Int("resolved", len(resolved)).Int("with_sku", len(withSKU)).Msg("skus resolved")

	aggregates := AggregateSKUs(withSKU)

	records, err := MergeCosts(ctx, aggregates, tenant.Catalog.ProductBySKU,
		tenant.CostExceptions, tenant.TaxExceptions, tenant.DefaultTax, logger)
	if err != nil {
		return err
	}

	products, err := tenant.Catalog.AllProducts(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	records = Dedupe(Backfill(records, products, tenant.DefaultTax))

	// Final safety pass before anything leaves the process.
	records = Dedupe(records)
	logger.Info().Int("records", len(records)).Msg("records ready for push")

	results, err := RunChunks(ctx, records, r.chunkOptions("push", r.cfg.Pipeline.PushChunkSize, false, logger),
		func(ctx context.Context, record models.PricedRecord) (metu.PushResult, error) {
			return pushRecord(ctx, tenant.Sync, record)
		})
	if err != nil {
		return fmt.Errorf("push records: %w", err)
	}

	var rejected []metu.PushResult
	for _, result := range results {
		metrics.IncPush(result.Status)
		if !result.OK() {
			rejected = append(rejected, result)
		}
	}
	if len(rejected) > 0 {
		return &PushRejectedError{Company: tenant.Company.Name, Rejected: rejected}
	}

	if r.cfg.Exports.Path != "" {
		path, err := WriteReport(r.cfg.Exports.Path, tenant.Company.Name, records, results)
		if err != nil {
			logger.Error().Err(err).Msg("report export failed")
		} else {
			logger.Info().Str("path", path).Msg("report exported")
		}
	}

	logger.Info().Int("pushed", len(results)).Msg("tenant run complete")
	return nil
}

func (r *Runner) chunkOptions(stage string, size int, skipNotFound bool, logger zerolog.Logger) ChunkOptions {
	return ChunkOptions{
		Size:         size,
		MaxRetries:   r.cfg.Pipeline.ChunkMaxRetries,
		RetryDelay:   time.Duration(r.cfg.Pipeline.ChunkRetryDelayMs) * time.Millisecond,
		ChunkDelay:   time.Duration(r.cfg.Pipeline.ChunkDelayMs) * time.Millisecond,
		SkipNotFound: skipNotFound,
		Stage:        stage,
		Logger:       logger,
	}
}

// resolveItem joins one raw ad line with its item metadata. A missing
// seller-SKU attribute yields an empty SKU, filtered before
// aggregation; a 404 propagates as *request.NotFoundError for the
// chunk engine to drop.
func resolveItem(ctx context.Context, ads *meli.Client, item models.RawAdItem) (models.ResolvedItem, error) {
	info, err := ads.Item(ctx, item.ItemID)
	if err != nil {
		return models.ResolvedItem{}, err
	}

	sku, _ := info.SellerSKU()
	return models.ResolvedItem{
		ID:                 info.ID,
		Title:              info.Title,
		FamilyName:         info.FamilyName,
		SKU:                sku,
		Cost:               item.Metrics.Cost,
		TotalAmount:        item.Metrics.TotalAmount,
		OrganicUnitsAmount: item.Metrics.OrganicUnitsAmount,
	}, nil
}

// pushRecord computes the final tax percentage (tacos plus the sheet
// tax) and pushes the record.
func pushRecord(ctx context.Context, client *metu.Client, record models.PricedRecord) (metu.PushResult, error) {
	tax, err := FinalTax(record)
	if err != nil {
		return metu.PushResult{}, err
	}
	result, err := client.UpdateCostTax(ctx, record.CodigoSKU, record.PrecoDeCusto, tax)
	if err != nil {
		return metu.PushResult{}, err
	}
	return *result, nil
}

// FinalTax renders the pushed tax percentage: tacos plus the record's
// tax sheet value, two decimals.
func FinalTax(record models.PricedRecord) (string, error) {
	sheet, err := ParsePercent(record.TaxSheet)
	if err != nil {
		return "", fmt.Errorf("sku %s: %w", record.CodigoSKU, err)
	}
	return fmt.Sprintf("%.2f", record.Tacos+sheet), nil
}

// dateWindow computes the metrics window: date_to is yesterday,
// date_from reaches back days+1 from today.
func dateWindow(now time.Time, days int) (dateFrom, dateTo string) {
	to := now.AddDate(0, 0, -1)
	from := now.AddDate(0, 0, -(days + 1))
	return from.Format("2006-01-02"), to.Format("2006-01-02")
}
