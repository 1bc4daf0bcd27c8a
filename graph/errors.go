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
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-graph-go/graph/internal/channel"
)

// ErrEmptyChannel is returned when a channel is read before any write, or
// when a barrier channel is not yet satisfied. The planner treats it as
// recoverable and skips the affected node.
var ErrEmptyChannel = channel.ErrEmpty

// InvalidUpdateError reports writes that violate a channel's per-step
// contract. It is fatal to the step it occurs in.
type InvalidUpdateError = channel.InvalidUpdateError

// Errors.
var (
	ErrLineageIDRequired                = errors.New("lineage_id is required")
	ErrLineageIDAndCheckpointIDRequired = errors.New("lineage_id and checkpoint_id are required")
	ErrCheckpointNotFound               = errors.New("checkpoint not found")
)

// NodeError wraps an error raised by a node's function, identifying the node
// and the step that produced it.
type NodeError struct {
	NodeID string
	Step   int
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed at step %d: %v", e.NodeID, e.Step, e.Err)
}

// Unwrap supports errors.Is and errors.As.
func (e *NodeError) Unwrap() error { return e.Err }

// StepAbortedError reports a step that was abandoned before commit because
// the step timeout elapsed or the run was cancelled. Writes buffered by the
// step's tasks are discarded; the last committed checkpoint is unchanged.
type StepAbortedError struct {
	Step  int
	Cause error
}

// Error implements the error interface.
func (e *StepAbortedError) Error() string {
	return fmt.Sprintf("step %d aborted before commit: %v", e.Step, e.Cause)
}

// Unwrap supports errors.Is and errors.As.
func (e *StepAbortedError) Unwrap() error { return e.Cause }

// LimitExceededError reports that the configured step limit was reached
// before the run became terminal. It is distinct from a generic failure so
// callers can branch on "ran out of budget" vs "crashed".
type LimitExceededError struct {
	Limit int
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("maximum execution steps (%d) exceeded", e.Limit)
}
