// internal/services/gateway_client_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmarket/backend/internal/config"
)

func TestGatewayClientListTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/userapi/transactions/list", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer list-api-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": 200,
			"messages": {
				"transactions": [
					{"id": 92704, "transaction_content": "CK den DHAAAA1111", "amount_in": "50000.00"},
					{"id": "92705", "transaction_content": "khac", "amount_in": 120000}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{
		APIBaseURL: server.URL + "/userapi",
		APIKey:     "list-api-key",
	})

	entries, err := client.ListTransactions(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "92704", entries[0].ID)
	assert.Equal(t, "CK den DHAAAA1111", entries[0].Content)
	assert.True(t, entries[0].AmountIn.Equal(decimal.NewFromInt(50000)))

	assert.Equal(t, "92705", entries[1].ID)
	assert.True(t, entries[1].AmountIn.Equal(decimal.NewFromInt(120000)))
}

func TestGatewayClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{APIBaseURL: server.URL, APIKey: "k"})

	_, err := client.ListTransactions(context.Background(), 20)
	assert.Error(t, err)
}

func TestGatewayClientApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 401, "messages": {}}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{APIBaseURL: server.URL, APIKey: "bad"})

	_, err := client.ListTransactions(context.Background(), 20)
	assert.Error(t, err)
}
