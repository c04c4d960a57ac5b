package metu

import (
	"context"
	"net/http"

	"tacosync/internal/models"
	"tacosync/internal/request"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://app.mercadoturbo.com.br"

// PushResult is the pricing-sync response for one SKU. Any status
// other than Atualizado/Adicionado is a business rejection, not a
// transport error.
type PushResult struct {
	SKU    string `json:"-"`
	Status string `json:"status"`
}

// OK reports whether the service accepted the record.
func (r PushResult) OK() bool {
	return r.Status == models.PushStatusUpdated || r.Status == models.PushStatusAdded
}

// Client pushes (cost, tax) pairs to the pricing-sync service with one
// tenant's token. The service authenticates via an "Authentication"
// header rather than the standard one.
type Client struct {
	rc    *request.Client
	token string
}

func NewClient(token string, logger zerolog.Logger) *Client {
	rc := request.NewClient("metu", defaultBaseURL, logger)
	rc.UseAuthHeader("Authentication")
	return &Client{rc: rc, token: token}
}

// UseRateLimit throttles outbound calls to rps.
func (c *Client) UseRateLimit(rps float64, burst int) {
	c.rc.UseRateLimit(rps, burst)
}

// UpdateCostTax pushes one SKU's cost basis and tax percentage.
func (c *Client) UpdateCostTax(ctx context.Context, sku string, cost float64, tax string) (*PushResult, error) {
	body := struct {
		Custo   float64 `json:"custo"`
		Imposto string  `json:"imposto"`
	}{Custo: cost, Imposto: tax}

	var result PushResult
	err := c.rc.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/rest/produtos/sku/" + sku,
		Token:  c.token,
		Body:   body,
		Header: http.Header{"Api-Version": {"2"}},
	}, &result)
	if err != nil {
		return nil, err
	}
	result.SKU = sku
	return &result, nil
}
