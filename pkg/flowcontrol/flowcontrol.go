// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package flowcontrol detects whether the API server applies API Priority
// and Fairness, in which case the REST cluster client does not need to
// throttle on its own.
package flowcontrol

import (
	"context"
	"fmt"
	"net/http"
	"time"

	flowcontrolapi "k8s.io/api/flowcontrol/v1beta2"
	"k8s.io/client-go/rest"
)

const pingPath = "/livez/ping"

// IsEnabled returns true if the server at config answered a ping with the
// flow schema header, meaning server-side throttling is active.
func IsEnabled(ctx context.Context, config *rest.Config) (bool, error) {
	httpClient, err := rest.HTTPClientFor(config)
	if err != nil {
		return false, fmt.Errorf("creating http client: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.Host+pingPath, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating ping request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("pinging %s: %w", pingPath, err)
	}
	defer resp.Body.Close()

	return resp.Header.Get(flowcontrolapi.ResponseHeaderMatchedFlowSchemaUID) != "", nil
}

// DisableClientThrottling returns a copy of config without client-side
// rate limiting when the server throttles on its own. Failing to detect
// the server behavior leaves config untouched.
func DisableClientThrottling(ctx context.Context, config *rest.Config, timeout time.Duration) (*rest.Config, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	enabled, err := IsEnabled(ctx, config)
	if err != nil || !enabled {
		return config, false
	}
	config = rest.CopyConfig(config)
	config.QPS = -1
	config.Burst = -1
	return config, true
}
