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
)

// InterruptError pauses graph execution so a caller can inspect state and
// resume later with a value. Node functions raise it through Interrupt;
// the engine fills in task attribution, persists the run, and surfaces the
// error to the caller.
type InterruptError struct {
	// Value is the prompt payload shown to the caller.
	Value any
	// Key addresses the resume value on the next invocation.
	Key string
	// NodeID is the node that interrupted.
	NodeID string
	// TaskID is the task that interrupted.
	TaskID string
	// Step is the step during which the interrupt occurred.
	Step int
}

// Error implements the error interface.
func (e *InterruptError) Error() string {
	return fmt.Sprintf("graph execution interrupted: %v", e.Value)
}

// IsInterruptError checks whether an error is (or wraps) an interrupt.
func IsInterruptError(err error) (*InterruptError, bool) {
	var interruptErr *InterruptError
	if errors.As(err, &interruptErr) {
		return interruptErr, true
	}
	return nil, false
}

// NewInterruptError creates an interrupt with a prompt value. Most callers
// should use Interrupt instead, which also consumes resume values.
func NewInterruptError(key string, value any) *InterruptError {
	return &InterruptError{Key: key, Value: value}
}
