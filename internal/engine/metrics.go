package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	MetadataRequests   atomic.Int64
	MetadataFallbacks  atomic.Int64
	TranscriptRequests atomic.Int64
	TranscriptFallback atomic.Int64
	TranscriptSentinel atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	SummaryHits        atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	Deliveries         atomic.Int64
	DeliveryErrors     atomic.Int64
}

var metricKeys = []string{
	"metadata_requests", "metadata_fallbacks",
	"transcript_requests", "transcript_fallbacks", "transcript_sentinels",
	"cache_hits", "cache_misses", "summary_hits",
	"llm_calls", "llm_errors",
	"deliveries", "delivery_errors",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"metadata_requests":    metrics.MetadataRequests.Load(),
		"metadata_fallbacks":   metrics.MetadataFallbacks.Load(),
		"transcript_requests":  metrics.TranscriptRequests.Load(),
		"transcript_fallbacks": metrics.TranscriptFallback.Load(),
		"transcript_sentinels": metrics.TranscriptSentinel.Load(),
		"cache_hits":           metrics.CacheHits.Load(),
		"cache_misses":         metrics.CacheMisses.Load(),
		"summary_hits":         metrics.SummaryHits.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"deliveries":           metrics.Deliveries.Load(),
		"delivery_errors":      metrics.DeliveryErrors.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// LogMetrics writes the counters at debug level, one attribute per counter.
func LogMetrics() {
	m := GetMetrics()
	attrs := make([]any, 0, len(metricKeys))
	for _, k := range metricKeys {
		attrs = append(attrs, slog.Int64(k, m[k]))
	}
	slog.Debug("run metrics", attrs...)
}

// Incrementors for sub-packages.
func IncrMetadataRequest()    { metrics.MetadataRequests.Add(1) }
func IncrMetadataFallback()   { metrics.MetadataFallbacks.Add(1) }
func IncrTranscriptRequest()  { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptFallback() { metrics.TranscriptFallback.Add(1) }
func IncrTranscriptSentinel() { metrics.TranscriptSentinel.Add(1) }
func IncrDelivery()           { metrics.Deliveries.Add(1) }
func IncrDeliveryError()      { metrics.DeliveryErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 30*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
