package insight

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"haiwei-pos/backend/internal/cache"
	"haiwei-pos/backend/internal/domain"
)

const (
	FallbackNoCredential = "尚未設定 API 金鑰，無法產生分析報告。"
	FallbackUnavailable  = "分析服務暫時無法使用。"
	FallbackEmpty        = "無法產生分析報告。"
)

// Engine never fails: every summarizer problem degrades to a fixed message.
type Engine struct {
	summarizer Summarizer
	cache      cache.InsightCache
	cacheTTL   time.Duration
}

func NewEngine(summarizer Summarizer, cacheStore cache.InsightCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopInsightCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Engine{summarizer: summarizer, cache: cacheStore, cacheTTL: cacheTTL}
}

func (e *Engine) Generate(ctx context.Context, orders []domain.Order, products []domain.Product) domain.InsightResponse {
	if e.summarizer == nil {
		return domain.InsightResponse{Text: FallbackNoCredential}
	}

	summary := BuildSummary(orders, products)
	key := cacheKey(summary)
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return domain.InsightResponse{Text: cached, Cached: true}
	}

	text, err := e.summarizer.Summarize(ctx, BuildPrompt(summary))
	if err != nil {
		log.Printf("[insight] WARN: summarizer failed: %v", err)
		if errors.Is(err, ErrMissingCredential) {
			return domain.InsightResponse{Text: FallbackNoCredential}
		}
		return domain.InsightResponse{Text: FallbackUnavailable}
	}
	if text == "" {
		return domain.InsightResponse{Text: FallbackEmpty}
	}

	if err := e.cache.Set(ctx, key, text, e.cacheTTL); err != nil {
		log.Printf("[insight] WARN: cache set failed: %v", err)
	}
	return domain.InsightResponse{Text: text}
}

func cacheKey(summary string) string {
	hash := sha1.Sum([]byte(summary))
	return "pos:insight:" + hex.EncodeToString(hash[:])
}
