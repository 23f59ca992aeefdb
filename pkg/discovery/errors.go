// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"errors"
	"fmt"

	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
)

// FatalKubeAPIError is returned when a listing that discovery cannot do
// without fails. No partial capability map is returned alongside it.
type FatalKubeAPIError struct {
	What string
	Err  error
}

func (e *FatalKubeAPIError) Error() string {
	return fmt.Sprintf("Error retrieving %s: %s", e.What, clusterclient.ErrorText(e.Err))
}

func (e *FatalKubeAPIError) Unwrap() error {
	return e.Err
}

// IsFatalKubeAPIError returns true if err is, or wraps, a FatalKubeAPIError.
func IsFatalKubeAPIError(err error) bool {
	var fatal *FatalKubeAPIError
	return errors.As(err, &fatal)
}
