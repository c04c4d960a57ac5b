package meli

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"tacosync/internal/models"
	"tacosync/internal/request"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.mercadolibre.com"

// metricsCSV is the full metric set requested from the product-ads
// endpoint; the pipeline only consumes cost, total_amount and
// organic_units_amount but the API bills the call the same either way.
const metricsCSV = "clicks,prints,ctr,cost,cpc,acos,organic_units_quantity," +
	"organic_units_amount,organic_items_quantity,direct_items_quantity," +
	"indirect_items_quantity,advertising_items_quantity,cvr,roas,sov," +
	"direct_units_quantity,indirect_units_quantity,units_quantity," +
	"direct_amount,indirect_amount,total_amount"

// Advertiser is one advertising account visible to the token.
type Advertiser struct {
	AdvertiserID int64  `json:"advertiser_id"`
	SiteID       string `json:"site_id"`
	Name         string `json:"advertiser_name"`
}

// AdsPage is one offset page of product-ad metrics.
type AdsPage struct {
	Results []models.RawAdItem `json:"results"`
	Paging  struct {
		Total int `json:"total"`
	} `json:"paging"`
}

// ItemInfo is the item-metadata subset needed for SKU resolution.
type ItemInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FamilyName string `json:"family_name"`
	Attributes []struct {
		ID        string `json:"id"`
		ValueName string `json:"value_name"`
	} `json:"attributes"`
}

// SellerSKU extracts the seller-SKU attribute. ok is false when the
// attribute is absent or empty.
func (i ItemInfo) SellerSKU() (string, bool) {
	for _, attr := range i.Attributes {
		if attr.ID == models.SellerSKUAttribute && attr.ValueName != "" {
			return attr.ValueName, true
		}
	}
	return "", false
}

// Client talks to the marketplace ads API with one tenant's token.
type Client struct {
	rc      *request.Client
	token   string
	refresh request.TokenFunc
}

// NewClient builds a tenant-scoped ads client. refresh may be nil,
// which disables auth rotation.
func NewClient(token string, refresh request.TokenFunc, logger zerolog.Logger) *Client {
	return &Client{
		rc:      request.NewClient("meli", defaultBaseURL, logger),
		token:   token,
		refresh: refresh,
	}
}

// UseRateLimit throttles outbound calls to rps.
func (c *Client) UseRateLimit(rps float64, burst int) {
	c.rc.UseRateLimit(rps, burst)
}

// Advertisers lists advertising accounts for a product id (e.g.
// "PADS"). A tenant is expected to have exactly one.
func (c *Client) Advertisers(ctx context.Context, productID string) ([]Advertiser, error) {
	var payload struct {
		Advertisers []Advertiser `json:"advertisers"`
	}
	err := c.rc.Do(ctx, request.Request{
		Method:  http.MethodGet,
		Path:    "/advertising/advertisers",
		Token:   c.token,
		Refresh: c.refresh,
		Query:   url.Values{"product_id": {productID}},
		Header:  http.Header{"Api-Version": {"1"}},
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Advertisers, nil
}

// ProductAdsPage fetches one offset page of ad metrics for the date
// window (dates formatted YYYY-MM-DD).
func (c *Client) ProductAdsPage(ctx context.Context, advertiserID int64, dateFrom, dateTo string, limit, offset int) (*AdsPage, error) {
	query := url.Values{
		"date_from":       {dateFrom},
		"date_to":         {dateTo},
		"limit":           {strconv.Itoa(limit)},
		"offset":          {strconv.Itoa(offset)},
		"metrics":         {metricsCSV},
		"metrics_summary": {"true"},
	}

	var page AdsPage
	err := c.rc.Do(ctx, request.Request{
		Method:  http.MethodGet,
		Path:    "/advertising/advertisers/" + strconv.FormatInt(advertiserID, 10) + "/product_ads/items",
		Token:   c.token,
		Refresh: c.refresh,
		Query:   query,
		Header:  http.Header{"Api-Version": {"2"}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Item fetches item metadata by marketplace item id. A missing item
// surfaces as *request.NotFoundError.
func (c *Client) Item(ctx context.Context, itemID string) (*ItemInfo, error) {
	var info ItemInfo
	err := c.rc.Do(ctx, request.Request{
		Method:  http.MethodGet,
		Path:    "/items/" + itemID,
		Token:   c.token,
		Refresh: c.refresh,
		Header:  http.Header{"Api-Version": {"2"}},
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
