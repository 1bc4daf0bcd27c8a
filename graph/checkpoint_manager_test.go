//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-graph-go/graph"
	"trpc.group/trpc-go/trpc-graph-go/graph/checkpoint/inmemory"
)

func storeCheckpoint(t *testing.T, saver graph.CheckpointSaver, lineageID string, step int) *graph.Checkpoint {
	t.Helper()
	ckpt := graph.NewCheckpoint(map[string]any{"count": int64(step)}, nil, nil)
	_, err := saver.Put(context.Background(), graph.PutRequest{
		Config:     graph.CreateCheckpointConfig(lineageID, "", ""),
		Checkpoint: ckpt,
		Metadata:   graph.NewCheckpointMetadata(graph.SourceLoop, step),
	})
	require.NoError(t, err)
	return ckpt
}

func TestCheckpointManager_Latest(t *testing.T) {
	saver := inmemory.NewSaver()
	defer saver.Close()
	manager := graph.NewCheckpointManager(saver)

	tuple, err := manager.Latest(context.Background(), "lineage", "")
	require.NoError(t, err)
	assert.Nil(t, tuple)

	storeCheckpoint(t, saver, "lineage", 0)
	last := storeCheckpoint(t, saver, "lineage", 1)

	tuple, err = manager.Latest(context.Background(), "lineage", "")
	require.NoError(t, err)
	require.NotNil(t, tuple)
	assert.Equal(t, last.ID, tuple.Checkpoint.ID)
}

func TestCheckpointManager_Goto(t *testing.T) {
	saver := inmemory.NewSaver()
	defer saver.Close()
	manager := graph.NewCheckpointManager(saver)

	first := storeCheckpoint(t, saver, "lineage", 0)
	storeCheckpoint(t, saver, "lineage", 1)

	tuple, err := manager.Goto(context.Background(), "lineage", "", first.ID)
	require.NoError(t, err)
	require.NotNil(t, tuple)
	assert.Equal(t, first.ID, tuple.Checkpoint.ID)
}

func TestCheckpointManager_ListAndDelete(t *testing.T) {
	saver := inmemory.NewSaver()
	defer saver.Close()
	manager := graph.NewCheckpointManager(saver)

	storeCheckpoint(t, saver, "lineage", 0)
	storeCheckpoint(t, saver, "lineage", 1)

	config := graph.CreateCheckpointConfig("lineage", "", "")
	tuples, err := manager.ListCheckpoints(context.Background(), config, nil)
	require.NoError(t, err)
	assert.Len(t, tuples, 2)

	require.NoError(t, manager.DeleteLineage(context.Background(), "lineage"))
	tuples, err = manager.ListCheckpoints(context.Background(), config, nil)
	require.NoError(t, err)
	assert.Empty(t, tuples)
}

func TestCheckpointManager_ResumeFromLatest(t *testing.T) {
	saver := inmemory.NewSaver()
	defer saver.Close()
	manager := graph.NewCheckpointManager(saver)

	_, err := manager.ResumeFromLatest(context.Background(), "lineage", "", nil)
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)

	storeCheckpoint(t, saver, "lineage", 3)
	cmd := &graph.Command{Resume: "yes"}
	state, err := manager.ResumeFromLatest(context.Background(), "lineage", "", cmd)
	require.NoError(t, err)
	// Only the command rides along: channel values come back from the
	// checkpoint itself, and re-seeding them as input would apply reducer
	// fields twice.
	assert.Same(t, cmd, state[graph.StateKeyCommand])
	assert.NotContains(t, state, "count")
	assert.Len(t, state, 1)
}

func TestCheckpointManager_RequiresSaver(t *testing.T) {
	manager := graph.NewCheckpointManager(nil)
	_, err := manager.Latest(context.Background(), "lineage", "")
	require.Error(t, err)
}
