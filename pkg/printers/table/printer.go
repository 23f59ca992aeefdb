// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package table

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/podset"
	"sigs.k8s.io/rollout-utils/pkg/printers/printer"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

var colorPerStatus = map[podset.Status]*color.Color{
	podset.StatusUnknown:     color.New(color.FgYellow, color.Italic),
	podset.StatusSyncing:     color.New(color.FgHiBlack),
	podset.StatusProgressing: color.New(color.FgHiCyan, color.Italic),
	podset.StatusStable:      color.New(color.FgHiGreen),
	podset.StatusFailed:      color.New(color.FgHiRed),
	podset.StatusTimedOut:    color.New(color.FgRed),
}

var (
	colorError   = color.New(color.FgHiRed)
	colorHeading = color.New(color.FgHiMagenta, color.Bold)
)

// NewPrinter returns a Printer writing aligned tables to the output
// stream of ioStreams.
func NewPrinter(ioStreams genericiooptions.IOStreams, colorize bool) printer.Printer {
	return &Printer{IOStreams: ioStreams, colorize: colorize}
}

type Printer struct {
	IOStreams genericiooptions.IOStreams
	colorize  bool
}

func (p *Printer) PrintResourceTypes(types []discovery.ResourceType, gvks []string) error {
	rows := make([][]string, 0, len(types))
	for i, rt := range types {
		gvk := ""
		if i < len(gvks) {
			gvk = gvks[i]
		}
		rows = append(rows, []string{
			rt.Name,
			rt.GroupOrCore(),
			rt.Version,
			rt.Kind,
			strconv.FormatBool(rt.Namespaced),
			gvk,
		})
	}
	printTable(p.IOStreams.Out, []string{"name", "group", "version", "kind", "namespaced", "gvk"}, rows)
	return nil
}

func (p *Printer) PrintCRDs(crds []*discovery.CustomResourceDefinition) error {
	rows := make([][]string, 0, len(crds))
	for _, crd := range crds {
		scope := "Cluster"
		if crd.Namespaced() {
			scope = "Namespaced"
		}
		rows = append(rows, []string{
			crd.Name(),
			crd.Kind(),
			strings.Join(crd.ServedVersions(), ","),
			scope,
			strconv.FormatBool(crd.Prunable()),
			strconv.FormatBool(crd.Predeployed()),
		})
	}
	printTable(p.IOStreams.Out, []string{"name", "kind", "versions", "scope", "prunable", "predeployed"}, rows)
	return nil
}

func (p *Printer) PrintRollout(ch <-chan rollout.Event) (*rollout.Summary, error) {
	var printErr error
	summary := rollout.Collect(ch, rollout.ObserverFunc(func(e rollout.Event) {
		if printErr != nil {
			return
		}
		printErr = p.printEvent(e)
	}))
	if printErr != nil {
		return summary, printErr
	}
	if summary == nil {
		return nil, fmt.Errorf("rollout ended without a summary")
	}
	rows := make([][]string, 0, len(summary.Results()))
	for _, r := range summary.Results() {
		rows = append(rows, []string{r.ID, p.status(r.Status), firstLine(r.Message)})
	}
	printTable(p.IOStreams.Out, []string{"object", "status", "message"}, rows)
	return summary, nil
}

func (p *Printer) printEvent(e rollout.Event) error {
	out := p.IOStreams.Out
	switch e.Type {
	case rollout.ResourceUpdateEvent:
		_, err := fmt.Fprintf(out, "%s is %s\n", e.ID, p.status(e.Status))
		return err
	case rollout.ErrorEvent:
		_, err := fmt.Fprintf(p.IOStreams.ErrOut, "%s %s: %v\n", p.sprint(colorError, "error"), e.ID, e.Error)
		return err
	case rollout.DiagnosticsEvent:
		return p.printDiagnostics(out, e)
	}
	return nil
}

func (p *Printer) printDiagnostics(out io.Writer, e rollout.Event) error {
	if _, err := fmt.Fprintf(out, "%s\n", p.sprint(colorHeading, fmt.Sprintf("%s: %s", e.ID, e.Status))); err != nil {
		return err
	}
	for _, id := range e.Events.IDs() {
		if _, err := fmt.Fprintf(out, "Events (common success events excluded) for %s:\n", id); err != nil {
			return err
		}
		for _, line := range e.Events[id] {
			if _, err := fmt.Fprintf(out, "  [%s]\t%s\n", id, line); err != nil {
				return err
			}
		}
	}
	if e.Logs != nil {
		return e.Logs.Print(out)
	}
	return nil
}

func (p *Printer) status(s podset.Status) string {
	if c, found := colorPerStatus[s]; found {
		return p.sprint(c, s.String())
	}
	return s.String()
}

func (p *Printer) sprint(c *color.Color, s string) string {
	if !p.colorize {
		return s
	}
	return c.Sprint(s)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
