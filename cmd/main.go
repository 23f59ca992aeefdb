// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/component-base/cli"
	"k8s.io/klog/v2"
	"sigs.k8s.io/rollout-utils/cmd/discover"
	"sigs.k8s.io/rollout-utils/cmd/flagutils"
	"sigs.k8s.io/rollout-utils/cmd/watch"
	cmderrors "sigs.k8s.io/rollout-utils/pkg/errors"

	// This is here rather than in the libraries because of
	// https://github.com/kubernetes-sigs/kustomize/issues/2060
	_ "k8s.io/client-go/plugin/pkg/client/auth"
)

func main() {
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Inspect cluster capabilities and watch workload rollouts",
		Long:  "Inspect cluster capabilities and watch workload rollouts",
		// We silence error reporting from Cobra here since we want to improve
		// the error messages coming from the commands.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	kubeConfigFlags := genericclioptions.NewConfigFlags(true).WithDeprecatedPasswordFlag()
	kubeConfigFlags.AddFlags(flags)
	klog.InitFlags(nil)
	flags.AddGoFlagSet(flag.CommandLine)

	f := flagutils.NewFactory(kubeConfigFlags)
	if err := f.AddFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ioStreams := genericiooptions.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}

	cmd.AddCommand(discover.Commands(f, ioStreams)...)
	cmd.AddCommand(watch.Command(f, ioStreams))

	if err := cli.RunNoErrOutput(cmd); err != nil {
		cmderrors.CheckErr(ioStreams.ErrOut, err, "rollout")
	}
}
