// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package printers

import (
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/pkg/printers/json"
	"sigs.k8s.io/rollout-utils/pkg/printers/printer"
	"sigs.k8s.io/rollout-utils/pkg/printers/table"
)

const (
	TablePrinter = "table"
	JSONPrinter  = "json"
)

func GetPrinter(printerType string, ioStreams genericiooptions.IOStreams, colorize bool) printer.Printer {
	switch printerType { //nolint:gocritic
	case JSONPrinter:
		return json.NewPrinter(ioStreams)
	default:
		return table.NewPrinter(ioStreams, colorize)
	}
}

func SupportedPrinters() []string {
	return []string{TablePrinter, JSONPrinter}
}

func DefaultPrinter() string {
	return TablePrinter
}

func ValidatePrinterType(printerType string) bool {
	for _, p := range SupportedPrinters() {
		if printerType == p {
			return true
		}
	}
	return false
}
