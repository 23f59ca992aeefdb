// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CoreGroup is the reserved name of the legacy, unqualified API group.
const CoreGroup = "core"

// versionOverrides pins kinds that are not served by the latest version
// of their group on older servers.
var versionOverrides = map[string]string{
	"CronJob":          "v1beta1",
	"VolumeAttachment": "v1beta1",
	"CSIDriver":        "v1beta1",
	"Lease":            "v1beta1",
	"CSINode":          "v1beta1",
}

var versionRegex = regexp.MustCompile(`^v(?P<major>\d+)(?P<pre>alpha|beta)?(?P<minor>\d+)?$`)

// GVKString returns "group/version/kind" for rt with the core group
// spelled out, e.g. "core/v1/Pod" or "apps/v1/Deployment".
//
// Newer servers report the served group/version with every type, in
// which case it is used as is. Otherwise the version is inferred from
// apiVersions, the versions served per group: the latest stable version
// wins unless the kind is pinned in the override table.
func GVKString(apiVersions map[string][]string, rt ResourceType) string {
	apiVersion := rt.APIVersion
	if apiVersion == "" {
		group := rt.APIGroup
		version := versionForKind(apiVersions[group], rt.Kind)
		if group == "" {
			group = CoreGroup
		}
		if version == "" {
			return group + "/" + rt.Kind
		}
		apiVersion = group + "/" + version
	}
	if !strings.Contains(apiVersion, "/") {
		apiVersion = CoreGroup + "/" + apiVersion
	}
	return apiVersion + "/" + rt.Kind
}

// versionForKind returns the version kind should be addressed with,
// given the versions its group serves.
func versionForKind(versions []string, kind string) string {
	if override, found := versionOverrides[kind]; found {
		return override
	}
	if len(versions) == 0 {
		return ""
	}
	sorted := append([]string(nil), versions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareVersions(sorted[i], sorted[j]) < 0
	})
	return sorted[len(sorted)-1]
}

type versionKey struct {
	major int
	pre   int
	minor int
	valid bool
}

func parseVersion(v string) versionKey {
	match := versionRegex.FindStringSubmatch(v)
	if match == nil {
		return versionKey{}
	}
	key := versionKey{valid: true, pre: 2}
	key.major, _ = strconv.Atoi(match[versionRegex.SubexpIndex("major")])
	switch match[versionRegex.SubexpIndex("pre")] {
	case "alpha":
		key.pre = 0
	case "beta":
		key.pre = 1
	}
	if minor := match[versionRegex.SubexpIndex("minor")]; minor != "" {
		key.minor, _ = strconv.Atoi(minor)
	}
	return key
}

// compareVersions orders versions by major number, then stability
// (alpha < beta < GA), then minor number. Versions that do not follow
// the Kubernetes scheme sort first.
func compareVersions(a, b string) int {
	ka, kb := parseVersion(a), parseVersion(b)
	switch {
	case ka.valid != kb.valid:
		if ka.valid {
			return 1
		}
		return -1
	case ka.major != kb.major:
		return ka.major - kb.major
	case ka.pre != kb.pre:
		return ka.pre - kb.pre
	default:
		return ka.minor - kb.minor
	}
}
