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

func TestNewCheckpoint_IDsAreTimeSortable(t *testing.T) {
	first := NewCheckpoint(nil, nil, nil)
	second := NewCheckpoint(nil, nil, nil)
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	assert.Less(t, first.ID, second.ID)
}

func TestCheckpoint_MaxChannelVersion(t *testing.T) {
	ckpt := NewCheckpoint(nil, map[string]int64{"a": 3, "b": 7, "c": 1}, nil)
	assert.Equal(t, int64(7), ckpt.MaxChannelVersion())

	empty := NewCheckpoint(nil, nil, nil)
	assert.Zero(t, empty.MaxChannelVersion())
}

func TestCheckpoint_SeenVersionAndMarkSeen(t *testing.T) {
	ckpt := NewCheckpoint(nil, nil, nil)
	assert.Zero(t, ckpt.SeenVersion("node", "ch"))

	ckpt.MarkSeen("node", "ch", 4)
	assert.Equal(t, int64(4), ckpt.SeenVersion("node", "ch"))

	// MarkSeen never regresses.
	ckpt.MarkSeen("node", "ch", 2)
	assert.Equal(t, int64(4), ckpt.SeenVersion("node", "ch"))
}

func TestCheckpoint_CopyIsDeep(t *testing.T) {
	ckpt := NewCheckpoint(
		map[string]any{"values": []any{1, 2}},
		map[string]int64{"values": 1},
		map[string]map[string]int64{"node": {"values": 1}},
	)
	ckpt.PendingSends = []PendingSend{{Node: "w", Input: map[string]any{"k": "v"}}}

	copied := ckpt.Copy()
	require.Equal(t, ckpt.ID, copied.ID)

	copied.ChannelVersions["values"] = 9
	copied.VersionsSeen["node"]["values"] = 9
	copied.ChannelValues["values"].([]any)[0] = 99
	copied.PendingSends[0].Input.(map[string]any)["k"] = "mutated"

	assert.Equal(t, int64(1), ckpt.ChannelVersions["values"])
	assert.Equal(t, int64(1), ckpt.VersionsSeen["node"]["values"])
	assert.Equal(t, 1, ckpt.ChannelValues["values"].([]any)[0])
	assert.Equal(t, "v", ckpt.PendingSends[0].Input.(map[string]any)["k"])
}

func TestCheckpoint_ForkChainsParent(t *testing.T) {
	parent := NewCheckpoint(nil, map[string]int64{"a": 2}, nil)
	child := parent.Fork()

	assert.NotEqual(t, parent.ID, child.ID)
	assert.Equal(t, parent.ID, child.ParentCheckpointID)
	assert.Equal(t, parent.ChannelVersions, child.ChannelVersions)
}

func TestCheckpointConfig_RoundTrip(t *testing.T) {
	config := NewCheckpointConfig("lineage-1").
		WithCheckpointID("ckpt-1").
		WithNamespace("ns").
		WithResumeMap(map[string]any{"key": "value"}).
		ToMap()

	assert.Equal(t, "lineage-1", GetLineageID(config))
	assert.Equal(t, "ckpt-1", GetCheckpointID(config))
	assert.Equal(t, "ns", GetNamespace(config))
	assert.Equal(t, map[string]any{"key": "value"}, GetResumeMap(config))
}

func TestCreateCheckpointConfig_OmitsEmptyCheckpointID(t *testing.T) {
	config := CreateCheckpointConfig("lineage-1", "", "")
	assert.Equal(t, "lineage-1", GetLineageID(config))
	assert.Empty(t, GetCheckpointID(config))
	assert.Empty(t, GetNamespace(config))
	assert.Nil(t, GetResumeMap(config))
}

func TestCheckpoint_InterruptStateLifecycle(t *testing.T) {
	ckpt := NewCheckpoint(nil, nil, nil)
	assert.False(t, ckpt.IsInterrupted())

	ckpt.InterruptState = &InterruptState{NodeID: "ask", Key: "approval", Step: 2}
	assert.True(t, ckpt.IsInterrupted())

	ckpt.AddResumeValue("yes")
	assert.Equal(t, []any{"yes"}, ckpt.InterruptState.ResumeValues)

	ckpt.ClearInterruptState()
	assert.False(t, ckpt.IsInterrupted())
}
