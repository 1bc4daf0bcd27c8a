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
	"time"

	"github.com/google/uuid"
)

// StreamMode selects which projection of a committed step is emitted.
type StreamMode string

// Stream modes.
const (
	// StreamModeValues emits the full folded state after each commit.
	StreamModeValues StreamMode = "values"
	// StreamModeUpdates emits the per-node state deltas of each commit.
	StreamModeUpdates StreamMode = "updates"
	// StreamModeDebug emits step-level scheduling and commit details.
	StreamModeDebug StreamMode = "debug"
)

// EventType classifies execution events.
type EventType string

// Event types.
const (
	EventTypeValues    EventType = "values"
	EventTypeUpdates   EventType = "updates"
	EventTypeDebug     EventType = "debug"
	EventTypeInterrupt EventType = "interrupt"
	EventTypeError     EventType = "error"
	EventTypeDone      EventType = "done"
)

// Event is one item of the execution stream. Events describe committed
// state only: nothing is emitted for a step that fails before commit.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// Type classifies the event.
	Type EventType `json:"type"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
	// Step is the committed step number, -1 for the input seed.
	Step int `json:"step"`
	// NodeID is set on updates events.
	NodeID string `json:"node_id,omitempty"`
	// State is the folded state, set on values and done events.
	State State `json:"state,omitempty"`
	// Update is the node's state delta, set on updates events.
	Update State `json:"update,omitempty"`
	// UpdatedChannels lists channels changed by the commit, set on debug
	// events.
	UpdatedChannels []string `json:"updated_channels,omitempty"`
	// ScheduledNodes lists the nodes that ran in the step, set on debug
	// events.
	ScheduledNodes []string `json:"scheduled_nodes,omitempty"`
	// CheckpointID is the checkpoint committed by the step.
	CheckpointID string `json:"checkpoint_id,omitempty"`
	// Interrupt carries interrupt details on interrupt events.
	Interrupt *InterruptError `json:"interrupt,omitempty"`
	// Err carries the failure on error events.
	Err error `json:"-"`
}

func newEvent(eventType EventType, step int) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Step:      step,
	}
}

// taskUpdate extracts the state delta a task wrote to schema field
// channels, preserving write order for reduced fields.
func taskUpdate(schema *StateSchema, task *Task) State {
	fields := make(map[string]bool)
	for _, name := range schema.FieldNames() {
		fields[name] = true
	}
	update := make(State)
	for _, write := range task.Writes() {
		if !fields[write.Channel] {
			continue
		}
		if _, ok := update[write.Channel]; ok {
			update = schema.ApplyUpdate(update, State{write.Channel: write.Value})
			continue
		}
		update[write.Channel] = write.Value
	}
	return update
}
