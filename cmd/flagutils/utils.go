// Copyright 2021 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package flagutils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/config"
	"sigs.k8s.io/rollout-utils/pkg/flowcontrol"
	"sigs.k8s.io/rollout-utils/pkg/printers"
)

const (
	OutputFlag  = "output"
	ColorFlag   = "color"
	KubectlFlag = "kubectl"

	// flowControlProbeTimeout bounds the server-side throttling probe.
	flowControlProbeTimeout = 5 * time.Second
)

// Factory builds the per-run configuration and cluster client from the
// flags shared by every command.
type Factory struct {
	ConfigFlags *genericclioptions.ConfigFlags
	Viper       *viper.Viper
	Logger      logr.Logger

	UseKubectl bool
	Output     string
	Color      bool
}

// NewFactory returns a Factory reading kube flags from configFlags.
func NewFactory(configFlags *genericclioptions.ConfigFlags) *Factory {
	return &Factory{
		ConfigFlags: configFlags,
		Viper:       config.NewViper(),
		Logger:      klog.Background(),
		Output:      printers.DefaultPrinter(),
	}
}

// AddFlags registers the run options and output flags on flags.
func (f *Factory) AddFlags(flags *pflag.FlagSet) error {
	flags.BoolVar(&f.UseKubectl, KubectlFlag, false,
		"Shell out to kubectl instead of calling the API server directly.")
	flags.StringVar(&f.Output, OutputFlag, printers.DefaultPrinter(),
		fmt.Sprintf("Output format, must be one of %v.", printers.SupportedPrinters()))
	flags.BoolVar(&f.Color, ColorFlag, true, "Colorize table output.")
	return config.AddFlags(f.Viper, flags)
}

// ValidateOutput checks the value of the output flag.
func (f *Factory) ValidateOutput() error {
	if !printers.ValidatePrinterType(f.Output) {
		return fmt.Errorf("unknown output type %q, must be one of %v", f.Output, printers.SupportedPrinters())
	}
	return nil
}

// TaskConfig returns the cluster and namespace selected by the kube flags.
func (f *Factory) TaskConfig() (*config.TaskConfig, error) {
	namespace, _, err := f.ConfigFlags.ToRawKubeConfigLoader().Namespace()
	if err != nil {
		return nil, fmt.Errorf("resolving namespace: %w", err)
	}
	kubeContext := ""
	if f.ConfigFlags.Context != nil {
		kubeContext = *f.ConfigFlags.Context
	}
	task := config.NewTaskConfig(kubeContext, namespace, f.Logger)
	if f.ConfigFlags.KubeConfig != nil {
		task.Kubeconfig = *f.ConfigFlags.KubeConfig
	}
	return task, nil
}

// RunOptions returns the validated run options from flags, environment
// and defaults.
func (f *Factory) RunOptions() (config.RunOptions, error) {
	return config.Load(f.Viper)
}

// Client returns the cluster client selected by the kubectl flag.
func (f *Factory) Client(ctx context.Context, task *config.TaskConfig, opts config.RunOptions) (clusterclient.Client, error) {
	if f.UseKubectl {
		return clusterclient.NewKubectl(task, opts), nil
	}
	restConfig, err := f.ConfigFlags.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	restConfig.QPS = float32(opts.QPS)
	restConfig.Burst = opts.Burst
	restConfig, disabled := flowcontrol.DisableClientThrottling(ctx, restConfig, flowControlProbeTimeout)
	if disabled {
		task.Logger.V(3).Info("Client-side throttling disabled")
	}
	return clusterclient.NewREST(restConfig, task, opts)
}
