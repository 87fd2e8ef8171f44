package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gate-service/config"
	"gate-service/internal/status"
)

func oracleConfig(rpcURL string) *config.Config {
	return &config.Config{
		SolanaRPCURL:   rpcURL,
		OracleTimeout:  2 * time.Second,
		OracleCacheTTL: 30 * time.Second,
	}
}

func tokenAccountsResponse(amounts ...string) map[string]any {
	value := make([]map[string]any, 0, len(amounts))
	for _, amount := range amounts {
		value = append(value, map[string]any{
			"account": map[string]any{
				"data": map[string]any{
					"parsed": map[string]any{
						"info": map[string]any{
							"tokenAmount": map[string]any{"amount": amount},
						},
					},
				},
			},
		})
	}
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  map[string]any{"value": value},
	}
}

func TestSolanaOracle_WalletOwnsAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenAccountsByOwner", req.Method)
		assert.Equal(t, "wallet-1", req.Params[0])

		json.NewEncoder(w).Encode(tokenAccountsResponse("1"))
	}))
	defer server.Close()

	oracle := NewSolanaOracle(oracleConfig(server.URL), nil, nil)

	owns, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestSolanaOracle_WalletDoesNotOwnAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenAccountsResponse())
	}))
	defer server.Close()

	oracle := NewSolanaOracle(oracleConfig(server.URL), nil, nil)

	owns, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestSolanaOracle_ZeroBalanceDoesNotOwn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenAccountsResponse("0"))
	}))
	defer server.Close()

	oracle := NewSolanaOracle(oracleConfig(server.URL), nil, nil)

	owns, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestSolanaOracle_RPCErrorIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32005, "message": "node is behind"},
		})
	}))
	defer server.Close()

	oracle := NewSolanaOracle(oracleConfig(server.URL), nil, nil)

	_, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	assert.ErrorIs(t, err, status.ErrLedgerUnreachable)
}

func TestSolanaOracle_ServerErrorIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	oracle := NewSolanaOracle(oracleConfig(server.URL), nil, nil)

	_, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	assert.ErrorIs(t, err, status.ErrLedgerUnreachable)
}

func TestSolanaOracle_TimeoutIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(tokenAccountsResponse("1"))
	}))
	defer server.Close()

	cfg := oracleConfig(server.URL)
	cfg.OracleTimeout = 50 * time.Millisecond
	oracle := NewSolanaOracle(cfg, nil, nil)

	_, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	assert.ErrorIs(t, err, status.ErrLedgerUnreachable)
}

func TestSolanaOracle_CacheHitSkipsRPC(t *testing.T) {
	db, mock := redismock.NewClientMock()

	key := fmt.Sprintf("oracle:owns:%s:%s", "wallet-1", "mint-1")
	mock.ExpectGet(key).SetVal("1")

	// No HTTP server at all: a cache hit must not reach the ledger.
	oracle := NewSolanaOracle(oracleConfig("http://127.0.0.1:1"), db, nil)

	owns, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	require.NoError(t, err)
	assert.True(t, owns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSolanaOracle_CacheMissStoresResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenAccountsResponse())
	}))
	defer server.Close()

	db, mock := redismock.NewClientMock()

	cfg := oracleConfig(server.URL)
	key := fmt.Sprintf("oracle:owns:%s:%s", "wallet-1", "mint-1")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "0", cfg.OracleCacheTTL).SetVal("OK")

	oracle := NewSolanaOracle(cfg, db, nil)

	owns, err := oracle.OwnsAsset(context.Background(), "wallet-1", "mint-1")
	require.NoError(t, err)
	assert.False(t, owns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
