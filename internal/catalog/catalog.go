// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog tracks server connectivity and the set of locally
// available models, including the current selection.
//
// Connectivity is advisory state: a probe never surfaces an error to the
// caller, it only flips the observable connected flag. Probes are
// single-flight; a probe already running suppresses a concurrent duplicate.
package catalog

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
)

// ErrNoModels indicates the server answered but has no models installed.
// Distinct from a transport failure so the caller can message it
// differently (an install hint, not a connection error).
var ErrNoModels = errors.New("no models available on the server")

// =============================================================================
// CATALOG
// =============================================================================

// Catalog owns connectivity and model-selection state. Safe for concurrent
// use; reads return snapshots.
type Catalog struct {
	client *ollama.Client
	logger *zap.Logger

	mu        sync.Mutex
	probing   bool
	connected bool
	models    []model.ModelDescriptor
	selected  string
}

// New creates a catalog backed by the given client.
func New(client *ollama.Client, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		client: client,
		logger: logger,
	}
}

// =============================================================================
// CONNECTIVITY PROBE
// =============================================================================

// Probe checks whether the server is reachable and updates the connected
// flag. Never returns an error: connectivity is advisory. If a probe is
// already in flight the duplicate is suppressed and the last known state
// is returned.
func (c *Catalog) Probe(ctx context.Context) bool {
	c.mu.Lock()
	if c.probing {
		connected := c.connected
		c.mu.Unlock()
		return connected
	}
	c.probing = true
	c.mu.Unlock()

	err := c.client.CheckRunning(ctx)

	c.mu.Lock()
	c.probing = false
	c.connected = err == nil
	connected := c.connected
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("connectivity probe failed", zap.Error(err))
	}
	return connected
}

// Connected returns the last observed connectivity state.
func (c *Catalog) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// Refresh fetches the model list from the server. On success, if nothing
// is selected yet, the first returned model becomes selected. An empty
// list returns ErrNoModels.
func (c *Catalog) Refresh(ctx context.Context) ([]model.ModelDescriptor, error) {
	infos, err := c.client.ListModels(ctx)
	if err != nil {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		return nil, err
	}

	descriptors := make([]model.ModelDescriptor, 0, len(infos))
	for _, info := range infos {
		descriptors = append(descriptors, model.ModelDescriptor{
			Name:       info.Name,
			Size:       info.Size,
			ModifiedAt: info.ModifiedAt,
		})
	}

	c.mu.Lock()
	c.connected = true
	c.models = descriptors
	if c.selected == "" && len(descriptors) > 0 {
		c.selected = descriptors[0].Name
		c.logger.Info("default model selected", zap.String("model", c.selected))
	}
	c.mu.Unlock()

	if len(descriptors) == 0 {
		return nil, ErrNoModels
	}
	return descriptors, nil
}

// Models returns a snapshot of the known model list.
func (c *Catalog) Models() []model.ModelDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

// Select sets the current model by full name.
func (c *Catalog) Select(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = name
}

// Selected returns the currently selected model name, or "" when none.
func (c *Catalog) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}
