// internal/services/gateway_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/docmarket/backend/internal/config"
)

// GatewayClient calls the gateway's transaction listing API. The short
// client timeout keeps a slow gateway from hanging local status checks.
type GatewayClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) *GatewayClient {
	return &GatewayClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type gatewayListResponse struct {
	Status   int `json:"status"`
	Messages struct {
		Transactions []struct {
			ID       flexString      `json:"id"`
			Content  string          `json:"transaction_content"`
			AmountIn decimal.Decimal `json:"amount_in"`
		} `json:"transactions"`
	} `json:"messages"`
}

func (c *GatewayClient) ListTransactions(ctx context.Context, limit int) ([]GatewayTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/transactions/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build listing request: %w", err)
	}

	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway listing returned status %d", resp.StatusCode)
	}

	var body gatewayListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode gateway listing: %w", err)
	}
	if body.Status != http.StatusOK {
		return nil, fmt.Errorf("gateway listing returned application status %d", body.Status)
	}

	transactions := make([]GatewayTransaction, 0, len(body.Messages.Transactions))
	for _, entry := range body.Messages.Transactions {
		transactions = append(transactions, GatewayTransaction{
			ID:       string(entry.ID),
			Content:  entry.Content,
			AmountIn: entry.AmountIn,
		})
	}

	return transactions, nil
}
