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

func TestCompile_DerivesFieldAndRoutingChannels(t *testing.T) {
	g := compileLinearGraph(t)

	assert.True(t, g.hasChannel("count"))
	assert.True(t, g.hasChannel(ChannelInputTrigger))
	assert.True(t, g.hasChannel(branchChannel("a")))
	assert.True(t, g.hasChannel(branchChannel("b")))

	// Single static in-edge targets route through the branch channel, not
	// through a join barrier.
	assert.False(t, g.hasChannel(joinChannel("b")))

	entry, ok := g.Node("a")
	require.True(t, ok)
	assert.Contains(t, entry.triggers, ChannelInputTrigger)
	require.Len(t, entry.writers, 1)
	assert.Equal(t, branchChannel("b"), entry.writers[0].Channel)
}

func TestCompile_FanInGetsJoinBarrier(t *testing.T) {
	schema := NewStateSchema().AddField("x", StateField{})
	g, err := NewStateGraph(schema).
		AddNode("s1", passthrough).
		AddNode("s2", passthrough).
		AddNode("sink", passthrough).
		AddEdge("s1", "sink").
		AddEdge("s2", "sink").
		SetEntryPoint("s1").
		SetFinishPoint("sink").
		Compile()
	require.NoError(t, err)

	join := joinChannel("sink")
	assert.True(t, g.hasChannel(join))

	sink, ok := g.Node("sink")
	require.True(t, ok)
	assert.Contains(t, sink.triggers, join)

	for _, source := range []string{"s1", "s2"} {
		node, ok := g.Node(source)
		require.True(t, ok)
		require.Len(t, node.writers, 1)
		assert.Equal(t, join, node.writers[0].Channel)
		assert.Equal(t, source, node.writers[0].Value)
	}
}

func TestCompile_ReducerFieldsBecomeAggregateChannels(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.newChannelSet()

	ch, ok := channels.Get("count")
	require.True(t, ok)
	_, err := ch.Update([]any{1, 2})
	require.NoError(t, err, "reduced field must accept multiple writers per step")

	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)
}

func TestCompile_RequiresEntryPoint(t *testing.T) {
	schema := NewStateSchema().AddField("x", StateField{})
	_, err := NewStateGraph(schema).
		AddNode("a", passthrough).
		Compile()
	require.Error(t, err)
}

func TestCompile_RejectsReservedAndDuplicateNodeIDs(t *testing.T) {
	schema := NewStateSchema().AddField("x", StateField{})
	_, err := NewStateGraph(schema).
		AddNode(Start, passthrough).
		SetEntryPoint(Start).
		Compile()
	require.Error(t, err)

	_, err = NewStateGraph(schema).
		AddNode("a", passthrough).
		AddNode("a", passthrough).
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
}

func TestCompile_RejectsEdgeToUnknownNode(t *testing.T) {
	schema := NewStateSchema().AddField("x", StateField{})
	_, err := NewStateGraph(schema).
		AddNode("a", passthrough).
		AddEdge("a", "ghost").
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
}

func TestCompile_RestoreChannelsKeepsReducer(t *testing.T) {
	g := compileLinearGraph(t)
	channels := g.restoreChannels(map[string]any{"count": int64(5)})

	ch, ok := channels.Get("count")
	require.True(t, ok)
	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)

	// The restored channel still reduces instead of overwriting.
	_, err = ch.Update([]any{2})
	require.NoError(t, err)
	value, err = ch.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(7), value)
}

func TestMustCompile_PanicsOnInvalidGraph(t *testing.T) {
	schema := NewStateSchema()
	assert.Panics(t, func() {
		NewStateGraph(schema).MustCompile()
	})
}
