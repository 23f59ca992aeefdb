// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

import "strings"

// UnionMessages joins the distinct non-empty messages with newlines,
// keeping the order of first appearance.
func UnionMessages(messages []string) string {
	seen := make(map[string]bool, len(messages))
	var union []string
	for _, m := range messages {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		union = append(union, m)
	}
	return strings.Join(union, "\n")
}

// MostUsefulPod returns the pod whose events tell the most about the
// rollout: the first failed pod, else the first timed out pod, else the
// first pod. It returns nil for an empty set.
func MostUsefulPod(pods []*Pod) *Pod {
	for _, p := range pods {
		if p.Failed() {
			return p
		}
	}
	for _, p := range pods {
		if p.TimedOut() {
			return p
		}
	}
	if len(pods) > 0 {
		return pods[0]
	}
	return nil
}
