// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	opts, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, DefaultRunOptions(), opts)
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("ROLLOUT_CONCURRENCY", "3")

	v := NewViper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, AddFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--attempts=2", "--poll-interval=500ms"}))

	opts, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 2, opts.Attempts)
	assert.Equal(t, 500*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 3, opts.Concurrency)
	assert.Equal(t, 15*time.Second, opts.Timeout)
}

func TestValidate(t *testing.T) {
	testCases := map[string]struct {
		mutate    func(o *RunOptions)
		expectErr string
	}{
		"defaults are valid": {
			mutate: func(*RunOptions) {},
		},
		"zero attempts": {
			mutate:    func(o *RunOptions) { o.Attempts = 0 },
			expectErr: "attempts must be at least 1, got 0",
		},
		"negative timeout": {
			mutate:    func(o *RunOptions) { o.Timeout = -time.Second },
			expectErr: "timeout must be positive, got -1s",
		},
		"zero poll interval": {
			mutate:    func(o *RunOptions) { o.PollInterval = 0 },
			expectErr: "poll-interval must be positive, got 0s",
		},
		"zero concurrency": {
			mutate:    func(o *RunOptions) { o.Concurrency = 0 },
			expectErr: "concurrency must be at least 1, got 0",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			opts := DefaultRunOptions()
			tc.mutate(&opts)
			err := opts.Validate()
			if tc.expectErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.expectErr)
		})
	}
}

func TestNewTaskConfigDefaultsLogger(t *testing.T) {
	tc := NewTaskConfig("kind-test", "web", logr.Logger{})
	assert.NotNil(t, tc.Logger.GetSink())
	assert.Equal(t, "kind-test", tc.Context)
	assert.Equal(t, "web", tc.Namespace)
}
