//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"sync"

	"github.com/google/uuid"
)

// Task is one planned unit of node execution within a step. Tasks are
// created by the planner, executed concurrently, and their buffered writes
// are handed to the commit step in task order.
type Task struct {
	// ID uniquely identifies the task within the run.
	ID string
	// NodeID is the node this task executes.
	NodeID string
	// Input is the state assembled from channel reads, or from a send
	// payload for dynamically routed tasks.
	Input State
	// IsSend marks tasks created from pending sends.
	IsSend bool
	// Triggers lists the channels whose advance fired this task.
	Triggers []string
	// sendIndex is the task's position in the pending-send queue, used to
	// match persisted writes when a send task is replayed after a restart.
	sendIndex int

	mu     sync.Mutex
	writes []PendingWrite
}

func newTask(nodeID string, input State) *Task {
	return &Task{
		ID:     uuid.New().String(),
		NodeID: nodeID,
		Input:  input,
	}
}

// appendWrite buffers a write. Buffered writes stay invisible to every
// channel until the step commits.
func (t *Task) appendWrite(channelName string, value any, sequence int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, PendingWrite{
		TaskID:   t.ID,
		Channel:  channelName,
		Value:    value,
		Sequence: sequence,
	})
}

// Writes returns a copy of the buffered writes in append order.
func (t *Task) Writes() []PendingWrite {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]PendingWrite(nil), t.writes...)
}

// setWrites replaces the buffered writes, used when replaying persisted
// writes after a restart.
func (t *Task) setWrites(writes []PendingWrite) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append([]PendingWrite(nil), writes...)
}
