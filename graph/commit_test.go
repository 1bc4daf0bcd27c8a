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

func TestCommit_AllWritesOfAStepShareOneVersion(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, map[string]int64{ChannelInputTrigger: 4}, nil)

	result, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: "count", Value: 1, Sequence: 1},
		{TaskID: "t1", Channel: branchChannel("b"), Value: "a", Sequence: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Version)
	assert.Equal(t, int64(5), ckpt.ChannelVersions["count"])
	assert.Equal(t, int64(5), ckpt.ChannelVersions[branchChannel("b")])
	assert.ElementsMatch(t, []string{"count", branchChannel("b")}, result.UpdatedChannels)
}

func TestCommit_HeartbeatLeavesUntouchedChannelsUnchanged(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	mustUpdate(t, channels, "count", int64(9))
	ckpt := NewCheckpoint(nil, map[string]int64{"count": 2}, nil)

	result, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: branchChannel("b"), Value: "a", Sequence: 1},
	})
	require.NoError(t, err)
	assert.NotContains(t, result.UpdatedChannels, "count")
	assert.Equal(t, int64(2), ckpt.ChannelVersions["count"])

	ch, _ := channels.Get("count")
	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(9), value)
}

func TestCommit_GroupsWritesPerChannel(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, nil, nil)

	// Two tasks write the reduced field in one step; the reducer folds both.
	_, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: "count", Value: 1, Sequence: 1},
		{TaskID: "t2", Channel: "count", Value: 10, Sequence: 2},
	})
	require.NoError(t, err)

	ch, _ := channels.Get("count")
	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(11), value)
}

func TestCommit_ExtractsSendMarkers(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, nil, nil)

	result, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: SendChannel, Value: PendingSend{Node: "b", Input: 1}, Sequence: 1},
		{TaskID: "t1", Channel: SendChannel, Value: map[string]any{"node": "b", "input": 2}, Sequence: 2},
	})
	require.NoError(t, err)
	require.Len(t, result.PendingSends, 2)
	assert.Equal(t, "b", result.PendingSends[0].Node)
	assert.Equal(t, 2, result.PendingSends[1].Input)
	assert.Equal(t, result.PendingSends, ckpt.PendingSends)
	assert.Empty(t, result.UpdatedChannels, "send markers are not channel updates")
}

func TestCommit_DropsWritesToUnknownChannels(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, nil, nil)

	result, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: "nope", Value: 1, Sequence: 1},
		{TaskID: "t1", Channel: "count", Value: 1, Sequence: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, result.UpdatedChannels)
}

func TestCommit_InvalidUpdateFailsTheStep(t *testing.T) {
	schema := NewStateSchema().AddField("single", StateField{})
	g, err := NewStateGraph(schema).
		AddNode("a", passthrough).
		SetEntryPoint("a").
		SetFinishPoint("a").
		Compile()
	require.NoError(t, err)

	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, nil, nil)

	_, err = commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: "single", Value: 1, Sequence: 1},
		{TaskID: "t2", Channel: "single", Value: 2, Sequence: 2},
	})
	var invalidErr *InvalidUpdateError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "single", invalidErr.Channel)
}

func TestCommit_SnapshotReflectsCommittedValues(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()
	ckpt := NewCheckpoint(nil, nil, nil)

	_, err := commitWrites(ckpt, channels, []PendingWrite{
		{TaskID: "t1", Channel: "count", Value: 3, Sequence: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ckpt.ChannelValues["count"])
}
