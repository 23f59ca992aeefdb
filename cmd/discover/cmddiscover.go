// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/cmd/flagutils"
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/printers"
)

// Runner holds the parameters of the discovery commands.
type Runner struct {
	factory   *flagutils.Factory
	ioStreams genericiooptions.IOStreams

	clusterScoped bool
}

// Commands returns the discover, prunable and crds commands.
func Commands(f *flagutils.Factory, ioStreams genericiooptions.IOStreams) []*cobra.Command {
	r := &Runner{factory: f, ioStreams: ioStreams}

	discover := &cobra.Command{
		Use:   "discover",
		Short: "List the resource types served by the cluster",
		Args:  cobra.NoArgs,
		RunE:  r.runDiscover,
	}
	prunable := &cobra.Command{
		Use:   "prunable",
		Short: "List the resource types that can be pruned",
		Args:  cobra.NoArgs,
		RunE:  r.runPrunable,
	}
	crds := &cobra.Command{
		Use:   "crds",
		Short: "List the custom resource definitions installed in the cluster",
		Args:  cobra.NoArgs,
		RunE:  r.runCRDs,
	}
	for _, c := range []*cobra.Command{discover, prunable} {
		c.Flags().BoolVar(&r.clusterScoped, "cluster-scoped", false,
			"List cluster scoped types instead of namespaced ones.")
	}
	return []*cobra.Command{discover, prunable, crds}
}

func (r *Runner) newDiscovery(cmd *cobra.Command) (*discovery.ClusterResourceDiscovery, error) {
	if err := r.factory.ValidateOutput(); err != nil {
		return nil, err
	}
	task, err := r.factory.TaskConfig()
	if err != nil {
		return nil, err
	}
	opts, err := r.factory.RunOptions()
	if err != nil {
		return nil, err
	}
	c, err := r.factory.Client(cmd.Context(), task, opts)
	if err != nil {
		return nil, err
	}
	return discovery.NewClusterResourceDiscovery(task, c), nil
}

func (r *Runner) runDiscover(cmd *cobra.Command, _ []string) error {
	d, err := r.newDiscovery(cmd)
	if err != nil {
		return err
	}
	types, err := d.Resources(cmd.Context(), !r.clusterScoped)
	if err != nil {
		return err
	}
	gvks, err := d.GVKStringsFor(cmd.Context(), types)
	if err != nil {
		return err
	}
	p := printers.GetPrinter(r.factory.Output, r.ioStreams, r.factory.Color)
	return p.PrintResourceTypes(types, gvks)
}

func (r *Runner) runPrunable(cmd *cobra.Command, _ []string) error {
	d, err := r.newDiscovery(cmd)
	if err != nil {
		return err
	}
	types, err := d.PrunableResourceTypes(cmd.Context(), !r.clusterScoped)
	if err != nil {
		return err
	}
	p := printers.GetPrinter(r.factory.Output, r.ioStreams, r.factory.Color)
	return p.PrintResourceTypes(types, nil)
}

func (r *Runner) runCRDs(cmd *cobra.Command, _ []string) error {
	d, err := r.newDiscovery(cmd)
	if err != nil {
		return err
	}
	crds, err := d.CRDs(cmd.Context())
	if err != nil {
		return err
	}
	p := printers.GetPrinter(r.factory.Output, r.ioStreams, r.factory.Color)
	return p.PrintCRDs(crds)
}
