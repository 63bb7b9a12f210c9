package forecast

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Request mirrors the advisory service contract. SalesHistory holds the
// quantity sold per day, most recent day last.
type Request struct {
	ItemName     string  `json:"ingredientName"`
	CurrentStock int64   `json:"currentStockLevel"`
	StockUnit    string  `json:"stockUnit"`
	MinStock     int64   `json:"minimumStockLevel"`
	SalesHistory []int64 `json:"historicalSalesData"`
}

type Result struct {
	ReorderNeeded     bool   `json:"reorderNeeded"`
	EstimatedDaysLeft *int   `json:"estimatedDaysUntilOutOfStock,omitempty"`
	RecommendedQty    *int64 `json:"recommendedReorderQuantity,omitempty"`
	Reasoning         string `json:"reasoning"`
}

// Advisor produces a restock recommendation. Results are advisory only
// and never mutate stock or register state.
type Advisor interface {
	Forecast(ctx context.Context, req Request) (Result, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, value *Result, ttl time.Duration) error
}

type NoopCache struct{}

func (NoopCache) Get(_ context.Context, _ string) (*Result, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(_ context.Context, _ string, _ *Result, _ time.Duration) error {
	return nil
}

// Cached wraps an Advisor with a read-through cache keyed on the full
// request, so repeated dashboard polls do not hammer the advisory service.
type Cached struct {
	inner Advisor
	cache Cache
	ttl   time.Duration
}

func NewCached(inner Advisor, cacheStore Cache, ttl time.Duration) *Cached {
	if cacheStore == nil {
		cacheStore = NoopCache{}
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cached{inner: inner, cache: cacheStore, ttl: ttl}
}

func (c *Cached) Forecast(ctx context.Context, req Request) (Result, error) {
	key := buildCacheKey(req)
	if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	}

	result, err := c.inner.Forecast(ctx, req)
	if err != nil {
		return Result{}, err
	}
	_ = c.cache.Set(ctx, key, &result, c.ttl)
	return result, nil
}

func buildCacheKey(req Request) string {
	parts := make([]string, 0, len(req.SalesHistory)+4)
	parts = append(parts, req.ItemName, req.StockUnit)
	parts = append(parts, fmt.Sprintf("s:%d", req.CurrentStock))
	parts = append(parts, fmt.Sprintf("m:%d", req.MinStock))
	for _, qty := range req.SalesHistory {
		parts = append(parts, fmt.Sprintf("%d", qty))
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "pos:forecast:" + hex.EncodeToString(hash[:])
}
