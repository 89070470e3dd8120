package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for engine operations. Without an installed
// MeterProvider the instruments are no-ops.
var meter = otel.Meter("rewind.engine")

var (
	commitsTotal    metric.Int64Counter
	undosTotal      metric.Int64Counter
	redosTotal      metric.Int64Counter
	mergesTotal     metric.Int64Counter
	evictionsTotal  metric.Int64Counter
	operationsTotal metric.Int64Counter
	misuseTotal     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		counters := []struct {
			dst  *metric.Int64Counter
			name string
			desc string
		}{
			{&commitsTotal, "rewind_commits_total", "Total number of committed actions"},
			{&undosTotal, "rewind_undos_total", "Total number of successful undo steps"},
			{&redosTotal, "rewind_redos_total", "Total number of successful redo steps"},
			{&mergesTotal, "rewind_merges_total", "Total number of commits folded into their predecessor"},
			{&evictionsTotal, "rewind_evictions_total", "Total number of actions evicted past max steps"},
			{&operationsTotal, "rewind_operations_total", "Total number of executed operations by outcome"},
			{&misuseTotal, "rewind_misuse_total", "Total number of rejected engine calls by code"},
		}
		for _, c := range counters {
			counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
			if err != nil {
				metricsErr = err
				return
			}
			*c.dst = counter
		}
	})
	return metricsErr
}

func recordOperation(outcome Outcome) {
	if err := initMetrics(); err != nil {
		return
	}
	operationsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
	))
}

// recordCommit records a commit and what the push did to history.
func recordCommit(res pushResult) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	commitsTotal.Add(ctx, 1)
	if res.merged {
		mergesTotal.Add(ctx, 1)
	}
	if res.evicted > 0 {
		evictionsTotal.Add(ctx, int64(res.evicted))
	}
}

func recordStep(dir Direction) {
	if err := initMetrics(); err != nil {
		return
	}
	if dir == DirUndo {
		undosTotal.Add(context.Background(), 1)
	} else {
		redosTotal.Add(context.Background(), 1)
	}
}

func recordMisuse(code ErrorCode) {
	if err := initMetrics(); err != nil {
		return
	}
	misuseTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("code", string(code)),
	))
}
