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
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSchema_ApplyUpdateUsesReducers(t *testing.T) {
	schema := NewStateSchema().
		AddField("count", StateField{Reducer: SumIntReducer, Default: func() any { return int64(0) }}).
		AddField("name", StateField{})

	state := State{"count": int64(5), "name": "old"}
	result := schema.ApplyUpdate(state, State{"count": 3, "name": "new"})

	assert.Equal(t, int64(8), result["count"])
	assert.Equal(t, "new", result["name"])
	// The original state is untouched.
	assert.Equal(t, int64(5), state["count"])
}

func TestStateSchema_ApplyUpdateSeedsDefault(t *testing.T) {
	schema := NewStateSchema().
		AddField("count", StateField{Reducer: SumIntReducer, Default: func() any { return int64(10) }})
	result := schema.ApplyUpdate(State{}, State{"count": 1})
	assert.Equal(t, int64(11), result["count"])
}

func TestStateSchema_Validate(t *testing.T) {
	schema := NewStateSchema().
		AddField("name", StateField{Type: reflect.TypeOf(""), Required: true})

	require.NoError(t, schema.Validate(State{"name": "ok"}))
	require.Error(t, schema.Validate(State{}))
	require.Error(t, schema.Validate(State{"name": 42}))
}

func TestAppendReducer(t *testing.T) {
	assert.Equal(t, []any{1}, AppendReducer(nil, 1))
	assert.Equal(t, []any{1, 2, 3}, AppendReducer([]any{1}, []any{2, 3}))
}

func TestStringSliceReducer(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StringSliceReducer([]string{"a"}, []string{"b"}))
	assert.Equal(t, []string{"x"}, StringSliceReducer(nil, []string{"x"}))
}

func TestMergeReducer(t *testing.T) {
	existing := map[string]any{"a": 1, "b": 1}
	update := map[string]any{"b": 2, "c": 3}
	merged := MergeReducer(existing, update)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, merged)
	// Existing map is not mutated.
	assert.Equal(t, 1, existing["b"])
}

func TestSumIntReducer_NumericForms(t *testing.T) {
	assert.Equal(t, int64(3), SumIntReducer(1, 2))
	assert.Equal(t, int64(3), SumIntReducer(int64(1), float64(2)))
	assert.Equal(t, int64(3), SumIntReducer(nil, json.Number("3")))
	assert.Equal(t, int64(0), SumIntReducer("not-a-number", nil))
}

func TestState_Clone(t *testing.T) {
	state := State{"a": 1}
	clone := state.Clone()
	clone["a"] = 2
	assert.Equal(t, 1, state["a"])
}
