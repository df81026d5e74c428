package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// feedCacheTotal counts rendered-feed cache lookups by result.
	feedCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hebdates_feed_cache_total",
		Help: "Rendered feed cache lookups by result",
	}, []string{"result"})

	// feedGenerationsTotal counts feed generations by outcome.
	feedGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hebdates_feed_generations_total",
		Help: "Feed generations by outcome",
	}, []string{"outcome"})

	feedGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hebdates_feed_generation_duration_seconds",
		Help:    "Feed generation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})
)
