package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"gate-service/config"
	"gate-service/internal/status"
	"gate-service/monitoring"
	"gate-service/utils"
)

// OwnershipOracle answers "does this wallet currently hold this asset".
// Implementations are idempotent reads and safe to retry; an error means
// the ledger could not be consulted, never a definitive negative.
type OwnershipOracle interface {
	OwnsAsset(ctx context.Context, walletPubkey, assetRef string) (bool, error)
}

// SolanaOracle resolves ownership through the Solana JSON-RPC endpoint.
// Results are cached in Redis with a short TTL and calls run behind a
// circuit breaker; timeouts, network failures and an open circuit all map
// to status.ErrLedgerUnreachable.
type SolanaOracle struct {
	rpcURL   string
	timeout  time.Duration
	cacheTTL time.Duration

	hc      *http.Client
	breaker *utils.CircuitBreaker
	redis   *redis.Client
	monitor *monitoring.Monitor
}

func NewSolanaOracle(cfg *config.Config, redisClient *redis.Client, monitor *monitoring.Monitor) *SolanaOracle {
	return &SolanaOracle{
		rpcURL:   cfg.SolanaRPCURL,
		timeout:  cfg.OracleTimeout,
		cacheTTL: cfg.OracleCacheTTL,
		hc: &http.Client{
			Timeout: cfg.OracleTimeout,
		},
		breaker: utils.NewCircuitBreaker("solana-oracle"),
		redis:   redisClient,
		monitor: monitor,
	}
}

func (o *SolanaOracle) OwnsAsset(ctx context.Context, walletPubkey, assetRef string) (bool, error) {
	cacheKey := fmt.Sprintf("oracle:owns:%s:%s", walletPubkey, assetRef)

	if o.redis != nil {
		if cached, err := o.redis.Get(ctx, cacheKey).Result(); err == nil {
			o.monitor.TrackOracleLookup("cache_hit", 0)
			return cached == "1", nil
		}
	}

	started := time.Now()
	result, err := o.breaker.Execute(ctx, func() (any, error) {
		return o.ownsAssetRPC(ctx, walletPubkey, assetRef)
	})
	if err != nil {
		o.monitor.TrackOracleLookup("error", time.Since(started))
		log.Printf("ownership oracle lookup failed: %v", err)
		return false, status.ErrLedgerUnreachable
	}
	o.monitor.TrackOracleLookup("success", time.Since(started))

	owns := result.(bool)

	if o.redis != nil {
		cached := "0"
		if owns {
			cached = "1"
		}
		// Best-effort cache, a failed SET is not worth failing the check.
		if err := o.redis.Set(ctx, cacheKey, cached, o.cacheTTL).Err(); err != nil {
			log.Printf("ownership oracle cache set failed: %v", err)
		}
	}

	return owns, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ownsAssetRPC performs a getTokenAccountsByOwner call filtered by mint.
// The wallet owns the asset when any returned token account holds a
// positive amount.
func (o *SolanaOracle) ownsAssetRPC(ctx context.Context, walletPubkey, assetRef string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			walletPubkey,
			map[string]any{"mint": assetRef},
			map[string]any{"encoding": "jsonParsed", "commitment": "confirmed"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.rpcURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ledger rpc returned status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, err
	}
	if decoded.Error != nil {
		return false, fmt.Errorf("ledger rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	for _, entry := range decoded.Result.Value {
		amount := entry.Account.Data.Parsed.Info.TokenAmount.Amount
		if amount != "" && amount != "0" {
			return true, nil
		}
	}

	return false, nil
}
