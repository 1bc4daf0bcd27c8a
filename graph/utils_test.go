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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepCopyAny_IsolatesNestedContainers(t *testing.T) {
	original := map[string]any{
		"nested": map[string]any{"k": "v"},
		"list":   []any{1, []any{2}},
		"bytes":  []byte{1, 2},
	}
	copied := deepCopyAny(original).(map[string]any)

	copied["nested"].(map[string]any)["k"] = "mutated"
	copied["list"].([]any)[1].([]any)[0] = 99
	copied["bytes"].([]byte)[0] = 9

	assert.Equal(t, "v", original["nested"].(map[string]any)["k"])
	assert.Equal(t, 2, original["list"].([]any)[1].([]any)[0])
	assert.Equal(t, byte(1), original["bytes"].([]byte)[0])
}

func TestDeepCopyAny_PreservesScalarTypes(t *testing.T) {
	assert.Equal(t, int64(7), deepCopyAny(int64(7)))
	assert.Equal(t, "s", deepCopyAny("s"))
	assert.Equal(t, 1.5, deepCopyAny(1.5))
	assert.Nil(t, deepCopyAny(nil))

	state := deepCopyAny(State{"k": int64(1)})
	require.IsType(t, State{}, state)
	assert.Equal(t, int64(1), state.(State)["k"])
}

func TestDeepCopyAny_HandlesCyclicMaps(t *testing.T) {
	original := map[string]any{}
	original["self"] = original

	copied := deepCopyAny(original).(map[string]any)
	inner, ok := copied["self"].(map[string]any)
	require.True(t, ok)
	// The copy closes its own cycle instead of pointing at the original.
	inner["extra"] = 1
	_, ok = original["extra"]
	assert.False(t, ok)
}

func TestSortedStateKeys(t *testing.T) {
	keys := sortedStateKeys(State{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
