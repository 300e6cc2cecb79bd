// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"sort"
	"sync"
)

// Catalog holds the learning-resource inventory indexed by concept.
// It is read-mostly: lookups are lock-free against the active snapshot and
// updates swap the whole snapshot.
type Catalog struct {
	mu         sync.RWMutex
	byConcept  map[string][]Resource
	byResource map[string]Resource
}

// NewCatalog builds a catalog from a resource list.
func NewCatalog(resources []Resource) *Catalog {
	c := &Catalog{}
	c.Replace(resources)
	return c
}

// Replace swaps in a new resource inventory.
func (c *Catalog) Replace(resources []Resource) {
	byConcept := make(map[string][]Resource)
	byResource := make(map[string]Resource, len(resources))
	for _, r := range resources {
		byConcept[r.ConceptID] = append(byConcept[r.ConceptID], r)
		byResource[r.ID] = r
	}
	// Deterministic per-concept order
	for id := range byConcept {
		rs := byConcept[id]
		sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	}

	c.mu.Lock()
	c.byConcept = byConcept
	c.byResource = byResource
	c.mu.Unlock()
}

// ForConcept returns the resources teaching the given concept.
func (c *Catalog) ForConcept(conceptID string) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byConcept[conceptID]
}

// Resource returns a resource by id.
func (c *Catalog) Resource(id string) (Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byResource[id]
	return r, ok
}

// Len returns the number of resources in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byResource)
}
