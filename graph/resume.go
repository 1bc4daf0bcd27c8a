//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "sync"

// resumeStore holds a run's resume values and tracks which interrupt keys
// already consumed theirs. A single instance is shared by reference across
// all task inputs of a run, so consumption is guarded by a mutex: sibling
// tasks of one step may resume concurrently from pool goroutines.
type resumeStore struct {
	mu     sync.Mutex
	values map[string]any
	used   map[string]bool
}

func newResumeStore(values map[string]any) *resumeStore {
	return &resumeStore{values: values, used: make(map[string]bool)}
}

// take consumes the resume value for key, at most once per key.
func (r *resumeStore) take(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values[key]
	if !ok || r.used[key] {
		return nil, false
	}
	r.used[key] = true
	return value, true
}

// peek returns the resume value for key without consuming it.
func (r *resumeStore) peek(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values[key]
	return value, ok
}

// Interrupt pauses execution at the call site until a resume value for key
// is supplied. On the first pass it raises an InterruptError carrying the
// prompt; on a resumed pass it returns the stored resume value instead.
// Each resume value is consumed exactly once per key.
//
// Usage inside a node function:
//
//	answer, err := graph.Interrupt(state, "approval", "approve this plan?")
//	if err != nil {
//	    return nil, err
//	}
func Interrupt(state State, key string, prompt any) (any, error) {
	if store, ok := state[StateKeyResumeMap].(*resumeStore); ok {
		if value, ok := store.take(key); ok {
			return value, nil
		}
	}
	return nil, NewInterruptError(key, prompt)
}

// ResumeValue returns the typed resume value for key without consuming it,
// reporting whether one is present.
func ResumeValue[T any](state State, key string) (T, bool) {
	var zero T
	store, ok := state[StateKeyResumeMap].(*resumeStore)
	if !ok {
		return zero, false
	}
	raw, ok := store.peek(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, ok
}
