//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides in-memory checkpoint storage for graph
// execution. Suitable for tests and ephemeral runs, not for durability.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-graph-go/graph"
)

// record is one stored checkpoint with its writes.
type record struct {
	tuple  *graph.CheckpointTuple
	writes []graph.PendingWrite
}

// lineage holds every checkpoint of one lineage, keyed by namespace then
// checkpoint ID.
type lineage struct {
	namespaces map[string]map[string]*record
}

// Saver is an in-memory implementation of graph.CheckpointSaver.
type Saver struct {
	mu            sync.RWMutex
	lineages      map[string]*lineage
	maxPerLineage int
}

var _ graph.CheckpointSaver = (*Saver)(nil)

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{
		lineages:      make(map[string]*lineage),
		maxPerLineage: graph.DefaultMaxCheckpointsPerLineage,
	}
}

// WithMaxCheckpointsPerLineage caps the number of retained checkpoints per
// lineage and namespace; the oldest are evicted first.
func (s *Saver) WithMaxCheckpointsPerLineage(limit int) *Saver {
	if limit > 0 {
		s.maxPerLineage = limit
	}
	return s
}

// Get retrieves a checkpoint by configuration.
func (s *Saver) Get(ctx context.Context, config map[string]any) (*graph.Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, config)
	if err != nil || tuple == nil {
		return nil, err
	}
	return tuple.Checkpoint, nil
}

// GetTuple retrieves a checkpoint tuple by configuration. Without a
// checkpoint ID the latest checkpoint of the lineage is returned; an empty
// namespace searches across all namespaces.
func (s *Saver) GetTuple(ctx context.Context, config map[string]any) (*graph.CheckpointTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lineageID := graph.GetLineageID(config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	ln, ok := s.lineages[lineageID]
	if !ok {
		return nil, nil
	}
	checkpointID := graph.GetCheckpointID(config)
	if checkpointID == "" {
		rec := ln.latest(graph.GetNamespace(config))
		if rec == nil {
			return nil, nil
		}
		return rec.result(), nil
	}
	rec := ln.byID(graph.GetNamespace(config), checkpointID)
	if rec == nil {
		return nil, nil
	}
	return rec.result(), nil
}

// List retrieves checkpoints matching criteria, newest first.
func (s *Saver) List(ctx context.Context, config map[string]any, filter *graph.CheckpointFilter) ([]*graph.CheckpointTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lineageID := graph.GetLineageID(config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	ln, ok := s.lineages[lineageID]
	if !ok {
		return nil, nil
	}

	namespace := graph.GetNamespace(config)
	var records []*record
	for ns, checkpoints := range ln.namespaces {
		if namespace != "" && ns != namespace {
			continue
		}
		for _, rec := range checkpoints {
			if passesFilter(rec, ln, filter) {
				records = append(records, rec)
			}
		}
	}
	// Checkpoint IDs are UUIDv7, so ID order is creation order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].tuple.Checkpoint.ID > records[j].tuple.Checkpoint.ID
	})
	if filter != nil && filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	results := make([]*graph.CheckpointTuple, len(records))
	for i, rec := range records {
		results[i] = rec.result()
	}
	return results, nil
}

// Put stores a checkpoint and returns the config addressing it.
func (s *Saver) Put(ctx context.Context, req graph.PutRequest) (map[string]any, error) {
	return s.store(req.Config, req.Checkpoint, req.Metadata, nil)
}

// PutWrites stores mid-step writes linked to an existing checkpoint.
func (s *Saver) PutWrites(ctx context.Context, req graph.PutWritesRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineageID := graph.GetLineageID(req.Config)
	checkpointID := graph.GetCheckpointID(req.Config)
	if lineageID == "" || checkpointID == "" {
		return graph.ErrLineageIDAndCheckpointIDRequired
	}
	ln, ok := s.lineages[lineageID]
	if !ok {
		return graph.ErrCheckpointNotFound
	}
	rec := ln.byID(graph.GetNamespace(req.Config), checkpointID)
	if rec == nil {
		return graph.ErrCheckpointNotFound
	}
	rec.writes = append([]graph.PendingWrite(nil), req.Writes...)
	return nil
}

// PutFull stores a checkpoint together with its pending writes.
func (s *Saver) PutFull(ctx context.Context, req graph.PutFullRequest) (map[string]any, error) {
	return s.store(req.Config, req.Checkpoint, req.Metadata, req.PendingWrites)
}

// DeleteLineage removes all checkpoints for a lineage.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lineages, lineageID)
	return nil
}

// Close releases all stored data.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineages = make(map[string]*lineage)
	return nil
}

func (s *Saver) store(config map[string]any, checkpoint *graph.Checkpoint,
	metadata *graph.CheckpointMetadata, writes []graph.PendingWrite) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineageID := graph.GetLineageID(config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	if checkpoint == nil {
		return nil, graph.ErrCheckpointNotFound
	}
	namespace := graph.GetNamespace(config)
	ln, ok := s.lineages[lineageID]
	if !ok {
		ln = &lineage{namespaces: make(map[string]map[string]*record)}
		s.lineages[lineageID] = ln
	}
	checkpoints, ok := ln.namespaces[namespace]
	if !ok {
		checkpoints = make(map[string]*record)
		ln.namespaces[namespace] = checkpoints
	}

	stored := graph.CreateCheckpointConfig(lineageID, checkpoint.ID, namespace)
	rec := &record{
		tuple: &graph.CheckpointTuple{
			Config:     stored,
			Checkpoint: checkpoint.Copy(),
			Metadata:   metadata,
		},
	}
	if parentID := checkpoint.ParentCheckpointID; parentID != "" {
		rec.tuple.ParentConfig = graph.CreateCheckpointConfig(lineageID, parentID, ln.namespaceOf(parentID))
	}
	if len(writes) > 0 {
		rec.writes = append([]graph.PendingWrite(nil), writes...)
	}
	checkpoints[checkpoint.ID] = rec
	s.evict(checkpoints)
	return stored, nil
}

// evict drops the oldest checkpoints above the retention limit.
func (s *Saver) evict(checkpoints map[string]*record) {
	if len(checkpoints) <= s.maxPerLineage {
		return
	}
	ids := make([]string, 0, len(checkpoints))
	for id := range checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids[:len(ids)-s.maxPerLineage] {
		delete(checkpoints, id)
	}
}

func (l *lineage) latest(namespace string) *record {
	var best *record
	for ns, checkpoints := range l.namespaces {
		if namespace != "" && ns != namespace {
			continue
		}
		for _, rec := range checkpoints {
			if best == nil || rec.tuple.Checkpoint.ID > best.tuple.Checkpoint.ID {
				best = rec
			}
		}
	}
	return best
}

func (l *lineage) byID(namespace, checkpointID string) *record {
	if namespace != "" {
		if checkpoints, ok := l.namespaces[namespace]; ok {
			return checkpoints[checkpointID]
		}
		return nil
	}
	for _, checkpoints := range l.namespaces {
		if rec, ok := checkpoints[checkpointID]; ok {
			return rec
		}
	}
	return nil
}

func (l *lineage) namespaceOf(checkpointID string) string {
	for ns, checkpoints := range l.namespaces {
		if _, ok := checkpoints[checkpointID]; ok {
			return ns
		}
	}
	return ""
}

// result builds a caller-owned tuple so stored state cannot be mutated.
func (r *record) result() *graph.CheckpointTuple {
	tuple := &graph.CheckpointTuple{
		Config:       r.tuple.Config,
		Checkpoint:   r.tuple.Checkpoint.Copy(),
		Metadata:     r.tuple.Metadata,
		ParentConfig: r.tuple.ParentConfig,
	}
	if len(r.writes) > 0 {
		tuple.PendingWrites = append([]graph.PendingWrite(nil), r.writes...)
	}
	return tuple
}

func passesFilter(rec *record, ln *lineage, filter *graph.CheckpointFilter) bool {
	if filter == nil {
		return true
	}
	if beforeID := graph.GetCheckpointID(filter.Before); beforeID != "" {
		if rec.tuple.Checkpoint.ID >= beforeID {
			return false
		}
	}
	if len(filter.Metadata) > 0 {
		if rec.tuple.Metadata == nil || rec.tuple.Metadata.Extra == nil {
			return false
		}
		for key, value := range filter.Metadata {
			if rec.tuple.Metadata.Extra[key] != value {
				return false
			}
		}
	}
	return true
}
