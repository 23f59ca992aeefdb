// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package fake

import (
	"context"
	"fmt"
	"sync"

	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
)

// Response is a scripted reply for a single call.
type Response struct {
	Payload []byte
	Err     error
}

// Call records a call made against the fake Client.
type Call struct {
	Verb   string
	Target string
	Get    clusterclient.GetOptions
	Logs   clusterclient.LogOptions
}

// Client is a scripted clusterclient.Client. Responses are looked up by
// the key returned from GetKey or LogsKey. When several responses are
// registered for a key they are returned in order and the last one is
// repeated. Calls without a scripted response fail with a not found error.
type Client struct {
	mu        sync.Mutex
	responses map[string][]Response
	served    map[string]int
	calls     []Call
}

var _ clusterclient.Client = &Client{}

func NewClient() *Client {
	return &Client{
		responses: make(map[string][]Response),
		served:    make(map[string]int),
	}
}

// GetKey returns the lookup key for a Get call.
func GetKey(target string, opts clusterclient.GetOptions) string {
	key := "get " + target
	if opts.Selector != "" {
		key += " -l " + opts.Selector
	}
	if opts.FieldSelector != "" {
		key += " --field-selector " + opts.FieldSelector
	}
	return key
}

// LogsKey returns the lookup key for a Logs call.
func LogsKey(target, container string) string {
	return "logs " + target + " -c " + container
}

// On registers responses for key.
func (c *Client) On(key string, responses ...Response) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[key] = append(c.responses[key], responses...)
	return c
}

// OnGet registers a payload for a Get call.
func (c *Client) OnGet(target string, opts clusterclient.GetOptions, payload string) *Client {
	return c.On(GetKey(target, opts), Response{Payload: []byte(payload)})
}

// OnGetError registers a failure for a Get call.
func (c *Client) OnGetError(target string, opts clusterclient.GetOptions, stderr string) *Client {
	return c.On(GetKey(target, opts), Response{Err: &clusterclient.CommandError{
		Verb:   "get",
		Target: target,
		Stderr: stderr,
		Err:    fmt.Errorf("exit status 1"),
	}})
}

func (c *Client) Get(_ context.Context, target string, opts clusterclient.GetOptions) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Verb: "get", Target: target, Get: opts})
	return c.next(GetKey(target, opts), "get", target)
}

func (c *Client) Logs(_ context.Context, target string, opts clusterclient.LogOptions) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Verb: "logs", Target: target, Logs: opts})
	return c.next(LogsKey(target, opts.Container), "logs", target)
}

func (c *Client) next(key, verb, target string) ([]byte, error) {
	i := c.served[key]
	c.served[key]++
	responses, found := c.responses[key]
	if !found || len(responses) == 0 {
		return nil, &clusterclient.CommandError{
			Verb:     verb,
			Target:   target,
			Stderr:   fmt.Sprintf("Error from server (NotFound): no scripted response for %q", key),
			NotFound: true,
		}
	}
	if i >= len(responses) {
		i = len(responses) - 1
	}
	return responses[i].Payload, responses[i].Err
}

// Calls returns all calls made so far.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount returns how many calls were made for key.
func (c *Client) CallCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served[key]
}
