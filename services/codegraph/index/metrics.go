// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("codegraph.index")
	meter  = otel.Meter("codegraph.index")
)

var (
	buildDuration  metric.Float64Histogram
	buildTotal     metric.Int64Counter
	buildFunctions metric.Int64Histogram
	buildFailures  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildDuration, err = meter.Float64Histogram(
			"codegraph_build_duration_seconds",
			metric.WithDescription("Duration of project builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"codegraph_build_total",
			metric.WithDescription("Total build requests by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildFunctions, err = meter.Int64Histogram(
			"codegraph_build_functions",
			metric.WithDescription("Functions per built generation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildFailures, err = meter.Int64Counter(
			"codegraph_build_file_failures_total",
			metric.WithDescription("Files that failed extraction during builds"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordBuild records one build request. outcome is "built", "cache_hit",
// "restored" or "error".
func recordBuild(ctx context.Context, outcome string, duration time.Duration, functions, failures int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	buildTotal.Add(ctx, 1, attrs)
	buildDuration.Record(ctx, duration.Seconds(), attrs)
	if outcome == "built" {
		buildFunctions.Record(ctx, int64(functions))
		buildFailures.Add(ctx, int64(failures))
	}
}
