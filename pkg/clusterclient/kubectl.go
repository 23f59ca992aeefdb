// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package clusterclient

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	"sigs.k8s.io/rollout-utils/pkg/config"
)

// runFunc executes the kubectl binary with args and returns its output.
type runFunc func(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)

// Kubectl is a Client that shells out to the kubectl binary.
type Kubectl struct {
	Binary         string
	Context        string
	Namespace      string
	Kubeconfig     string
	DefaultTimeout time.Duration
	Retry          RetryPolicy

	logger  logr.Logger
	limiter *rate.Limiter
	run     runFunc
}

var _ Client = &Kubectl{}

// NewKubectl returns a kubectl backed Client for the cluster and namespace
// of task, using the budgets in opts.
func NewKubectl(task *config.TaskConfig, opts config.RunOptions) *Kubectl {
	limit := rate.Inf
	if opts.QPS > 0 {
		limit = rate.Limit(opts.QPS)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Kubectl{
		Binary:         "kubectl",
		Context:        task.Context,
		Namespace:      task.Namespace,
		Kubeconfig:     task.Kubeconfig,
		DefaultTimeout: opts.Timeout,
		Retry:          DefaultRetryPolicy(),
		logger:         task.Logger,
		limiter:        rate.NewLimiter(limit, burst),
		run:            execKubectl,
	}
}

func (k *Kubectl) Get(ctx context.Context, target string, opts GetOptions) ([]byte, error) {
	args := []string{"get"}
	if opts.Raw {
		args = append(args, "--raw")
	}
	args = append(args, target)
	if opts.Output != "" {
		args = append(args, "--output="+opts.Output)
	}
	if opts.Selector != "" {
		args = append(args, "--selector="+opts.Selector)
	}
	if opts.FieldSelector != "" {
		args = append(args, "--field-selector="+opts.FieldSelector)
	}
	timeout := k.timeout(opts.Timeout)
	args = append(args, k.globalArgs(opts.Namespaced, timeout)...)
	return k.runWithRetries(ctx, "get", target, args, opts.Attempts, timeout)
}

func (k *Kubectl) Logs(ctx context.Context, target string, opts LogOptions) ([]byte, error) {
	args := []string{"logs", target}
	if opts.Container != "" {
		args = append(args, "--container="+opts.Container)
	}
	if !opts.SinceTime.IsZero() {
		args = append(args, "--since-time="+opts.SinceTime.UTC().Format(time.RFC3339))
	}
	if opts.TailLines > 0 {
		args = append(args, fmt.Sprintf("--tail=%d", opts.TailLines))
	}
	timeout := k.timeout(opts.Timeout)
	args = append(args, k.globalArgs(true, timeout)...)
	return k.runWithRetries(ctx, "logs", target, args, opts.Attempts, timeout)
}

func (k *Kubectl) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return k.DefaultTimeout
}

func (k *Kubectl) globalArgs(namespaced bool, timeout time.Duration) []string {
	var args []string
	if k.Context != "" {
		args = append(args, "--context="+k.Context)
	}
	if k.Kubeconfig != "" {
		args = append(args, "--kubeconfig="+k.Kubeconfig)
	}
	if namespaced && k.Namespace != "" {
		args = append(args, "--namespace="+k.Namespace)
	}
	if timeout > 0 {
		args = append(args, "--request-timeout="+timeout.String())
	}
	return args
}

func (k *Kubectl) runWithRetries(ctx context.Context, verb, target string, args []string,
	attempts int, timeout time.Duration) ([]byte, error) {
	return withRetries(ctx, k.logger, verb, target, attempts, timeout, k.Retry,
		func(attemptCtx context.Context) ([]byte, error) {
			if k.limiter != nil {
				if err := k.limiter.Wait(attemptCtx); err != nil {
					return nil, &CommandError{Verb: verb, Target: target, Err: err}
				}
			}
			k.logger.V(5).Info("Running kubectl", "args", strings.Join(args, " "))
			stdout, stderr, err := k.run(attemptCtx, k.Binary, args)
			if err != nil {
				return nil, &CommandError{
					Verb:     verb,
					Target:   target,
					Stderr:   string(stderr),
					NotFound: isNotFoundText(string(stderr)),
					Err:      err,
				}
			}
			return stdout, nil
		})
}

// isNotFoundText recognizes the kubectl rendering of a 404 from the API server.
func isNotFoundText(stderr string) bool {
	return strings.Contains(stderr, "(NotFound)")
}

func execKubectl(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
