// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package discovery walks the API server's path catalog to build the set
// of resource types served by a cluster, the subset of those that is
// safe to prune, and the CustomResourceDefinitions installed in it.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/config"
)

// discoveryAttempts is the attempt budget of every discovery call.
const discoveryAttempts = 5

// pruneDenyList holds the kinds that are never pruned, even when the
// server allows deleting them.
var pruneDenyList = map[string]bool{
	"Namespace":          true,
	"Node":               true,
	"ControllerRevision": true,
}

// apiPathRegex splits a legacy (/api/<version>) or grouped
// (/apis/<group>/<version>) path into its group and version.
var apiPathRegex = regexp.MustCompile(`^/apis?/(?P<group>[^/]*)/?(?P<version>v\d+[a-z0-9]*)$`)

// ResourceType is a single kind served by the cluster.
type ResourceType struct {
	// APIGroup is empty for the core group.
	APIGroup string
	Version  string
	Kind     string
	// Name is the plural resource name, e.g. "deployments".
	Name       string
	Verbs      []string
	Namespaced bool
	// APIVersion is the group/version the type was served under
	// ("apps/v1", "v1"). When empty, GVKString infers it.
	APIVersion string
}

// GroupOrCore returns the API group, with the reserved name "core" for
// the legacy group.
func (r ResourceType) GroupOrCore() string {
	if r.APIGroup == "" {
		return CoreGroup
	}
	return r.APIGroup
}

// ClusterResourceDiscovery discovers the capabilities of one cluster.
//
// Every result is computed on first use and cached in the instance: a
// successful computation happens at most once per instance and per
// argument, failed computations are not cached. Constructing a new
// instance is the only way to invalidate the cache.
type ClusterResourceDiscovery struct {
	task   *config.TaskConfig
	client clusterclient.Client
	logger logr.Logger

	// mu serializes computations so that concurrent callers wait for
	// the first one instead of issuing their own remote calls.
	mu          sync.Mutex
	apiPaths    []string
	resources   map[bool][]ResourceType
	apiVersions map[string][]string
	crds        []*CustomResourceDefinition
	crdsLoaded  bool
}

// NewClusterResourceDiscovery returns a discovery for the cluster of task
// that issues its calls through c.
func NewClusterResourceDiscovery(task *config.TaskConfig, c clusterclient.Client) *ClusterResourceDiscovery {
	return &ClusterResourceDiscovery{
		task:      task,
		client:    c,
		logger:    task.Logger.WithName("discovery"),
		resources: make(map[bool][]ResourceType),
	}
}

// Resources returns the resource types served by the cluster whose scope
// matches namespaced, deduplicated by kind. When the same kind is served
// by several groups or versions, the first one listed by the server wins.
// Failing to list a single API path only drops the types of that path.
func (d *ClusterResourceDiscovery) Resources(ctx context.Context, namespaced bool) ([]ResourceType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cached, found := d.resources[namespaced]; found {
		return cached, nil
	}

	paths, err := d.fetchAPIPaths(ctx)
	if err != nil {
		return nil, err
	}

	var all []ResourceType
	for _, path := range paths {
		list := d.fetchAPIPath(ctx, path)
		for _, r := range list.APIResources {
			rt, ok := resourceType(path, namespaced, r)
			if !ok {
				continue
			}
			all = append(all, rt)
		}
	}

	deduped := uniqByKind(all)
	d.logger.V(2).Info("Discovered resource types", "namespaced", namespaced, "count", len(deduped))
	d.resources[namespaced] = deduped
	return deduped, nil
}

// PrunableResources returns the "group/version/kind" strings of the
// resource types that can be pruned: exactly one delete verb and a kind
// outside of the deny list. The group segment is omitted for the core
// group, e.g. "v1/Pod" and "apps/v1/Deployment".
func (d *ClusterResourceDiscovery) PrunableResources(ctx context.Context, namespaced bool) ([]string, error) {
	types, err := d.PrunableResourceTypes(ctx, namespaced)
	if err != nil {
		return nil, err
	}
	var prunable []string
	for _, rt := range types {
		prunable = append(prunable, prunableString(rt))
	}
	return prunable, nil
}

// PrunableResourceTypes is PrunableResources without the formatting.
func (d *ClusterResourceDiscovery) PrunableResourceTypes(ctx context.Context, namespaced bool) ([]ResourceType, error) {
	types, err := d.Resources(ctx, namespaced)
	if err != nil {
		return nil, err
	}
	var prunable []ResourceType
	for _, rt := range types {
		if isPrunable(rt) {
			prunable = append(prunable, rt)
		}
	}
	return prunable, nil
}

// APIVersions returns the versions served per API group, keyed by group
// name with the core group under "". It is derived from the root path
// listing.
func (d *ClusterResourceDiscovery) APIVersions(ctx context.Context) (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.apiVersions != nil {
		return d.apiVersions, nil
	}
	paths, err := d.fetchAPIPaths(ctx)
	if err != nil {
		return nil, err
	}
	versions := make(map[string][]string)
	for _, path := range paths {
		group, version, ok := parseAPIPath(path)
		if !ok {
			continue
		}
		versions[group] = append(versions[group], version)
	}
	d.apiVersions = versions
	return versions, nil
}

// GVKStrings returns the "group/version/kind" strings of the prunable
// types using the "core" name for the legacy group, as accepted by
// kubectl's prune allow list.
func (d *ClusterResourceDiscovery) GVKStrings(ctx context.Context, namespaced bool) ([]string, error) {
	types, err := d.PrunableResourceTypes(ctx, namespaced)
	if err != nil {
		return nil, err
	}
	return d.GVKStringsFor(ctx, types)
}

// GVKStringsFor returns the GVK string of every type, index aligned with
// types.
func (d *ClusterResourceDiscovery) GVKStringsFor(ctx context.Context, types []ResourceType) ([]string, error) {
	versions, err := d.APIVersions(ctx)
	if err != nil {
		return nil, err
	}
	gvks := make([]string, 0, len(types))
	for _, rt := range types {
		gvks = append(gvks, GVKString(versions, rt))
	}
	return gvks, nil
}

// fetchAPIPaths returns the API paths of the root listing. The caller
// must hold mu.
func (d *ClusterResourceDiscovery) fetchAPIPaths(ctx context.Context) ([]string, error) {
	if d.apiPaths != nil {
		return d.apiPaths, nil
	}
	raw, err := d.client.Get(ctx, "/", clusterclient.GetOptions{Raw: true, Attempts: discoveryAttempts})
	if err != nil {
		return nil, &FatalKubeAPIError{What: "raw path /", Err: err}
	}
	var root metav1.RootPaths
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &FatalKubeAPIError{What: "raw path /", Err: fmt.Errorf("decoding path listing: %w", err)}
	}

	paths := []string{}
	for _, path := range root.Paths {
		if strings.HasPrefix(path, "/api") {
			paths = append(paths, path)
		}
	}
	d.apiPaths = paths
	return paths, nil
}

// fetchAPIPath returns the resource listing of path. Failures are logged
// and reported as an empty listing.
func (d *ClusterResourceDiscovery) fetchAPIPath(ctx context.Context, path string) metav1.APIResourceList {
	var list metav1.APIResourceList
	raw, err := d.client.Get(ctx, path, clusterclient.GetOptions{Raw: true, Attempts: discoveryAttempts})
	if err != nil {
		d.logger.Error(err, "Error retrieving api path, skipping it", "path", path)
		return list
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		d.logger.Error(err, "Error decoding api path, skipping it", "path", path)
		return metav1.APIResourceList{}
	}
	return list
}

func resourceType(path string, namespaced bool, r metav1.APIResource) (ResourceType, bool) {
	if r.Namespaced != namespaced {
		return ResourceType{}, false
	}
	// sub-resources such as deployments/scale
	if strings.Contains(r.Name, "/") {
		return ResourceType{}, false
	}
	group, version, ok := parseAPIPath(path)
	if !ok {
		return ResourceType{}, false
	}
	apiVersion := version
	if group != "" {
		apiVersion = group + "/" + version
	}
	return ResourceType{
		APIGroup:   group,
		Version:    version,
		Kind:       r.Kind,
		Name:       r.Name,
		Verbs:      append([]string(nil), r.Verbs...),
		Namespaced: r.Namespaced,
		APIVersion: apiVersion,
	}, true
}

// parseAPIPath returns the group and version encoded in path. The group
// is empty for the legacy /api root.
func parseAPIPath(path string) (group, version string, ok bool) {
	match := apiPathRegex.FindStringSubmatch(path)
	if match == nil {
		return "", "", false
	}
	return match[apiPathRegex.SubexpIndex("group")], match[apiPathRegex.SubexpIndex("version")], true
}

func uniqByKind(types []ResourceType) []ResourceType {
	seen := make(map[string]bool, len(types))
	deduped := []ResourceType{}
	for _, rt := range types {
		if seen[rt.Kind] {
			continue
		}
		seen[rt.Kind] = true
		deduped = append(deduped, rt)
	}
	return deduped
}

func isPrunable(rt ResourceType) bool {
	if pruneDenyList[rt.Kind] {
		return false
	}
	deletes := 0
	for _, verb := range rt.Verbs {
		if verb == "delete" {
			deletes++
		}
	}
	return deletes == 1
}

func prunableString(rt ResourceType) string {
	if rt.APIGroup == "" {
		return rt.Version + "/" + rt.Kind
	}
	return rt.APIGroup + "/" + rt.Version + "/" + rt.Kind
}
