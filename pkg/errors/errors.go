// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/template"

	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

const (
	DefaultErrorExitCode = 1
	TimeoutErrorExitCode = 3
)

var errorMsgForType map[reflect.Type]string
var statusCodeForType map[reflect.Type]int

//nolint:gochecknoinits
func init() {
	errorMsgForType = make(map[reflect.Type]string)
	errorMsgForType[reflect.TypeOf(discovery.FatalKubeAPIError{})] = `
{{.err.Error}}

The cluster API could not be reached. Check that the current context of
your kubeconfig is valid, or run "{{.cmdNameBase}}" with --context.
`

	errorMsgForType[reflect.TypeOf(rollout.FailureError{})] = `
{{printf "%d" (len .err.Failed)}} out of {{printf "%d" .err.Total}} workloads failed to roll out:

{{- range .err.Failed}}
{{printf "%s %s" .ID .Status}}
{{- end}}
`

	errorMsgForType[reflect.TypeOf(rollout.TimeoutError{})] = `
{{printf "%d" (len .err.TimedOut)}} out of {{printf "%d" .err.Total}} workloads did not become stable in time:

{{- range .err.TimedOut}}
{{printf "%s %s" .ID .Status}}
{{- end}}
`

	statusCodeForType = make(map[reflect.Type]int)
	statusCodeForType[reflect.TypeOf(rollout.TimeoutError{})] = TimeoutErrorExitCode
}

// CheckErr looks up the appropriate error message and exit status for known
// errors. It will print the information to the provided io.Writer. If we
// don't know the error, it delegates to the error handling in cmdutil.
func CheckErr(w io.Writer, err error, cmdNameBase string) {
	errText, found := textForError(err, cmdNameBase)
	if found {
		exitStatus := findErrExitCode(err)
		if len(errText) > 0 {
			if !strings.HasSuffix(errText, "\n") {
				errText += "\n"
			}
			fmt.Fprint(w, errText)
		}
		os.Exit(exitStatus)
	}

	cmdutil.CheckErr(err)
}

// textForError renders the message template registered for the type of
// the error.
func textForError(baseErr error, cmdNameBase string) (string, bool) {
	errType, found := findErrType(baseErr)
	if !found {
		return "", false
	}
	tmplText, found := errorMsgForType[errType]
	if !found {
		return "", false
	}

	tmpl, err := template.New("errMsg").Parse(tmplText)
	if err != nil {
		return "", false
	}
	var b bytes.Buffer
	err = tmpl.Execute(&b, map[string]interface{}{
		"cmdNameBase": cmdNameBase,
		"err":         baseErr,
	})
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(b.String()), true
}

// findErrType returns the type of the error, dereferencing pointers.
func findErrType(err error) (reflect.Type, bool) {
	switch reflect.ValueOf(err).Kind() {
	case reflect.Ptr:
		return reflect.ValueOf(err).Elem().Type(), true
	case reflect.Struct:
		return reflect.TypeOf(err), true
	default:
		return nil, false
	}
}

func findErrExitCode(err error) int {
	errType, found := findErrType(err)
	if !found {
		return DefaultErrorExitCode
	}
	if exitStatus, found := statusCodeForType[errType]; found {
		return exitStatus
	}
	return DefaultErrorExitCode
}
