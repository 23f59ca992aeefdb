// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the read-only settings shared by the cluster
// client, discovery and the rollout monitor for a single run.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// EnvPrefix is the prefix for environment variables overriding RunOptions,
// e.g. ROLLOUT_ATTEMPTS or ROLLOUT_POLL_INTERVAL.
const EnvPrefix = "ROLLOUT"

// TaskConfig identifies the cluster and namespace a run targets. It is
// passed down by reference and never mutated after construction.
type TaskConfig struct {
	Context    string
	Namespace  string
	Kubeconfig string
	Logger     logr.Logger
}

// NewTaskConfig returns a TaskConfig. A zero logger is replaced by the
// klog backed logger.
func NewTaskConfig(kubeContext, namespace string, logger logr.Logger) *TaskConfig {
	if logger.GetSink() == nil {
		logger = klog.Background()
	}
	return &TaskConfig{
		Context:   kubeContext,
		Namespace: namespace,
		Logger:    logger,
	}
}

// RunOptions are the retry, timeout and polling budgets of a run.
type RunOptions struct {
	// Attempts is how many times the cluster client tries a call.
	Attempts int `mapstructure:"attempts"`

	// Timeout bounds a single cluster client attempt.
	Timeout time.Duration `mapstructure:"timeout"`

	// PollInterval is the delay between two supervisor sync ticks.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// GlobalTimeout is the deadline of the whole rollout.
	GlobalTimeout time.Duration `mapstructure:"global_timeout"`

	// PodTimeout is how long a pod may stay unready before it is
	// reported as timed out.
	PodTimeout time.Duration `mapstructure:"pod_timeout"`

	// Concurrency bounds the number of pods synced in parallel.
	Concurrency int `mapstructure:"concurrency"`

	// QPS and Burst rate limit the kubectl client.
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// DefaultRunOptions returns the budgets used when nothing is configured.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Attempts:      5,
		Timeout:       15 * time.Second,
		PollInterval:  3 * time.Second,
		GlobalTimeout: 20 * time.Minute,
		PodTimeout:    10 * time.Minute,
		Concurrency:   10,
		QPS:           20,
		Burst:         40,
	}
}

// Validate checks that the options can drive a run.
func (o RunOptions) Validate() error {
	if o.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", o.Attempts)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive, got %s", o.PollInterval)
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	return nil
}

// NewViper returns a viper instance with the defaults of DefaultRunOptions
// registered and environment overrides enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultRunOptions()
	v.SetDefault("attempts", d.Attempts)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("global_timeout", d.GlobalTimeout)
	v.SetDefault("pod_timeout", d.PodTimeout)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("qps", d.QPS)
	v.SetDefault("burst", d.Burst)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the RunOptions flags on flags and binds them to v.
// Flag names use dashes; the config keys use underscores.
func AddFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	d := DefaultRunOptions()
	flags.Int("attempts", d.Attempts, "Number of attempts for every cluster call.")
	flags.Duration("timeout", d.Timeout, "Timeout of a single cluster call attempt.")
	flags.Duration("poll-interval", d.PollInterval, "Delay between two status polls.")
	flags.Duration("global-timeout", d.GlobalTimeout, "Deadline for the whole rollout.")
	flags.Duration("pod-timeout", d.PodTimeout, "Time a pod may stay unready before it is reported as timed out.")
	flags.Int("concurrency", d.Concurrency, "Number of pods synced in parallel.")
	flags.Float64("qps", d.QPS, "Maximum kubectl calls per second.")
	flags.Int("burst", d.Burst, "Maximum burst of kubectl calls.")

	for _, name := range []string{"attempts", "timeout", "poll-interval", "global-timeout",
		"pod-timeout", "concurrency", "qps", "burst"} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads the RunOptions from v and validates them.
func Load(v *viper.Viper) (RunOptions, error) {
	var opts RunOptions
	if err := v.Unmarshal(&opts); err != nil {
		return RunOptions{}, fmt.Errorf("decoding run options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return RunOptions{}, err
	}
	return opts, nil
}
