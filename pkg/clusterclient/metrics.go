// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package clusterclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_cluster_client_calls_total",
			Help: "Total number of cluster client calls",
		},
		[]string{"verb", "outcome"}, // outcome: success, failure, not_found
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollout_cluster_client_attempt_duration_seconds",
			Help:    "Time taken by a single cluster client attempt",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30},
		},
		[]string{"verb"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_cluster_client_retries_total",
			Help: "Total number of retried cluster client attempts",
		},
		[]string{"verb"},
	)
)
