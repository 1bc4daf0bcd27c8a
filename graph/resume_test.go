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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resumeState(values map[string]any) State {
	return State{StateKeyResumeMap: newResumeStore(values)}
}

func TestInterrupt_RaisesWithoutResumeValue(t *testing.T) {
	state := State{}
	_, err := Interrupt(state, "approval", "continue?")
	interruptErr, ok := IsInterruptError(err)
	require.True(t, ok)
	assert.Equal(t, "approval", interruptErr.Key)
	assert.Equal(t, "continue?", interruptErr.Value)
}

func TestInterrupt_ConsumesResumeValueOnce(t *testing.T) {
	state := resumeState(map[string]any{"approval": "yes"})

	value, err := Interrupt(state, "approval", "continue?")
	require.NoError(t, err)
	assert.Equal(t, "yes", value)

	// The same key interrupts again once its value is spent.
	_, err = Interrupt(state, "approval", "continue?")
	_, ok := IsInterruptError(err)
	assert.True(t, ok)
}

func TestInterrupt_DistinctKeysAreIndependent(t *testing.T) {
	state := resumeState(map[string]any{"first": 1, "second": 2})

	value, err := Interrupt(state, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	value, err = Interrupt(state, "second", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestInterrupt_ConcurrentConsumersAreSafe(t *testing.T) {
	// The store is shared by reference between sibling task inputs, so
	// concurrent consumption of distinct keys must be safe and consumption
	// of the same key must succeed exactly once.
	const workers = 8
	values := make(map[string]any, workers)
	for i := 0; i < workers; i++ {
		values[fmt.Sprintf("key-%d", i)] = i
	}
	values["shared"] = "once"
	store := newResumeStore(values)

	states := make([]State, workers)
	for i := range states {
		// Each sibling gets its own input map holding the same store.
		states[i] = State{StateKeyResumeMap: store}
	}

	var wg sync.WaitGroup
	var sharedWins atomic.Int64
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := Interrupt(states[i], fmt.Sprintf("key-%d", i), nil)
			if err != nil {
				errs[i] = err
				return
			}
			if value != i {
				errs[i] = fmt.Errorf("key-%d resumed with %v", i, value)
			}
			if _, err := Interrupt(states[i], "shared", nil); err == nil {
				sharedWins.Add(1)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int64(1), sharedWins.Load(), "shared key consumed exactly once")
}

func TestResumeValue_TypedLookup(t *testing.T) {
	state := resumeState(map[string]any{"approval": "yes"})

	value, ok := ResumeValue[string](state, "approval")
	assert.True(t, ok)
	assert.Equal(t, "yes", value)

	_, ok = ResumeValue[int](state, "approval")
	assert.False(t, ok, "type mismatch must not match")

	_, ok = ResumeValue[string](state, "missing")
	assert.False(t, ok)
}

func TestIsInterruptError_UnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("task failed: %w", NewInterruptError("k", "v"))
	interruptErr, ok := IsInterruptError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "k", interruptErr.Key)

	_, ok = IsInterruptError(errors.New("plain"))
	assert.False(t, ok)
}
