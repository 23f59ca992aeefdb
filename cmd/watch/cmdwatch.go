// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/cmd/flagutils"
	"sigs.k8s.io/rollout-utils/pkg/config"
	"sigs.k8s.io/rollout-utils/pkg/podset"
	"sigs.k8s.io/rollout-utils/pkg/printers"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

// Target is a workload named on the command line as KIND/NAME.
type Target struct {
	Controller podset.Controller
	Name       string
}

// ParseTargets parses KIND/NAME arguments. Kinds are matched case
// insensitively against the supported pod owning controllers.
func ParseTargets(args []string) ([]Target, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one KIND/NAME argument is required")
	}
	seen := make(map[string]bool, len(args))
	targets := make([]Target, 0, len(args))
	for _, arg := range args {
		kind, name, found := strings.Cut(arg, "/")
		if !found || kind == "" || name == "" {
			return nil, fmt.Errorf("invalid argument %q, expected KIND/NAME", arg)
		}
		controller, ok := controllerFor(kind)
		if !ok {
			return nil, fmt.Errorf("unsupported kind %q, must be one of ReplicaSet, DaemonSet, StatefulSet", kind)
		}
		key := controller.Kind() + "/" + name
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, Target{Controller: controller, Name: name})
	}
	return targets, nil
}

func controllerFor(kind string) (podset.Controller, bool) {
	for _, k := range []string{"ReplicaSet", "DaemonSet", "StatefulSet"} {
		if strings.EqualFold(kind, k) {
			return podset.ControllerForKind(k)
		}
	}
	return nil, false
}

// Runner holds the parameters of the watch command.
type Runner struct {
	factory   *flagutils.Factory
	ioStreams genericiooptions.IOStreams
	Command   *cobra.Command
}

// GetRunner returns the Runner of the watch command.
func GetRunner(f *flagutils.Factory, ioStreams genericiooptions.IOStreams) *Runner {
	r := &Runner{factory: f, ioStreams: ioStreams}
	r.Command = &cobra.Command{
		Use:   "watch KIND/NAME...",
		Short: "Wait for pod owning workloads to become stable",
		Long: "Poll ReplicaSets, DaemonSets and StatefulSets until every one of them is " +
			"stable, failed or timed out, and print events and logs of those that did not succeed.",
		Example: "  rollout watch replicaset/web-5f9c daemonset/agent --global-timeout=10m",
		RunE:    r.runE,
	}
	return r
}

// Command returns the watch command.
func Command(f *flagutils.Factory, ioStreams genericiooptions.IOStreams) *cobra.Command {
	return GetRunner(f, ioStreams).Command
}

func (r *Runner) runE(cmd *cobra.Command, args []string) error {
	if err := r.factory.ValidateOutput(); err != nil {
		return err
	}
	targets, err := ParseTargets(args)
	if err != nil {
		return err
	}
	task, err := r.factory.TaskConfig()
	if err != nil {
		return err
	}
	opts, err := r.factory.RunOptions()
	if err != nil {
		return err
	}
	c, err := r.factory.Client(cmd.Context(), task, opts)
	if err != nil {
		return err
	}

	supervisors, err := NewSupervisors(task, opts, targets, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.GlobalTimeout)
	defer cancel()

	monitor := rollout.NewMonitor(c, task.Logger)
	ch := monitor.Run(ctx, supervisors, rollout.Options{PollInterval: opts.PollInterval})

	p := printers.GetPrinter(r.factory.Output, r.ioStreams, r.factory.Color)
	summary, err := p.PrintRollout(ch)
	if err != nil {
		return err
	}
	return summary.Err()
}

// NewSupervisors returns one supervisor per target, all sharing the
// rollout start time.
func NewSupervisors(task *config.TaskConfig, opts config.RunOptions, targets []Target, startedAt time.Time) ([]rollout.Supervisor, error) {
	supervisors := make([]rollout.Supervisor, 0, len(targets))
	for _, t := range targets {
		s, err := podset.NewSupervisor(task, t.Controller, t.Name, podset.Options{
			DeployStartedAt: startedAt,
			Timeout:         opts.GlobalTimeout,
			PodTimeout:      opts.PodTimeout,
			Concurrency:     opts.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", t.Controller.Kind(), t.Name, err)
		}
		supervisors = append(supervisors, s)
	}
	return supervisors, nil
}
