package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"brew-planner/internal/infrastructure/config"
	"brew-planner/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client 外部單價服務
type Client struct {
	config *config.PricingConfig
	client *resty.Client
}

// NewClient 創建單價服務客戶端
func NewClient(cfg *config.PricingConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}

	return &Client{
		config: cfg,
		client: client,
	}
}

type priceEntry struct {
	IngredientID string `json:"ingredientId"`
	UnitPrice    string `json:"unitPrice"`
}

// UnitPrices 查詢原料單價（每公斤、每公升或每個）
func (c *Client) UnitPrices(ctx context.Context, ingredientIDs []string) (map[string]decimal.Decimal, error) {
	if len(ingredientIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ingredients", strings.Join(ingredientIDs, ",")).
		Get("/prices")
	if err != nil {
		return nil, common.ErrPricingUnavailable.Wrap(fmt.Errorf("failed to send request to pricing service: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, common.ErrPricingUnavailable.Wrap(fmt.Errorf("pricing service returned %d: %s", resp.StatusCode(), resp.String()))
	}

	// 解析回應
	var result struct {
		Prices []priceEntry `json:"prices"`
	}
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse pricing response: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(result.Prices))
	for _, p := range result.Prices {
		d, err := decimal.NewFromString(p.UnitPrice)
		if err != nil {
			common.LogWarn("略過無效單價", zap.String("ingredient", p.IngredientID), zap.String("price", p.UnitPrice))
			continue
		}
		prices[p.IngredientID] = d
	}
	return prices, nil
}
