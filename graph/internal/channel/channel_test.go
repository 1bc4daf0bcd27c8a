//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastValue_SingleWriter(t *testing.T) {
	ch := NewLastValue("field")

	_, err := ch.Get()
	require.ErrorIs(t, err, ErrEmpty)

	changed, err := ch.Update([]any{42})
	require.NoError(t, err)
	assert.True(t, changed)

	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestLastValue_RejectsMultipleWriters(t *testing.T) {
	ch := NewLastValue("field")
	_, err := ch.Update([]any{1, 2})
	var invalidErr *InvalidUpdateError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "field", invalidErr.Channel)
}

func TestLastValue_EmptyUpdateIsNoOp(t *testing.T) {
	ch := NewLastValue("field")
	_, err := ch.Update([]any{"v"})
	require.NoError(t, err)

	changed, err := ch.Update(nil)
	require.NoError(t, err)
	assert.False(t, changed)

	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestAggregate_FoldsInOrder(t *testing.T) {
	sum := func(acc, v any) any { return acc.(int) + v.(int) }
	ch := NewAggregate("counter", sum, func() any { return 0 })

	changed, err := ch.Update([]any{1, 10})
	require.NoError(t, err)
	assert.True(t, changed)

	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, 11, value)

	_, err = ch.Update([]any{5})
	require.NoError(t, err)
	value, err = ch.Get()
	require.NoError(t, err)
	assert.Equal(t, 16, value)
}

func TestAggregate_FirstValueSeedsWithoutZero(t *testing.T) {
	concat := func(acc, v any) any { return acc.(string) + v.(string) }
	ch := NewAggregate("text", concat, nil)

	_, err := ch.Update([]any{"a", "b", "c"})
	require.NoError(t, err)
	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestEphemeral_ConsumeClears(t *testing.T) {
	ch := NewEphemeral("branch:to:x")
	_, err := ch.Update([]any{"a", "b"})
	require.NoError(t, err)

	value, err := ch.Get()
	require.NoError(t, err)
	assert.Equal(t, "b", value)

	assert.True(t, ch.Consume())
	_, err = ch.Get()
	require.ErrorIs(t, err, ErrEmpty)
	assert.False(t, ch.Consume())
}

func TestNamedBarrier_WaitsForAllContributors(t *testing.T) {
	ch := NewNamedBarrier("join:sink", []string{"a", "b"})

	_, err := ch.Update([]any{"a"})
	require.NoError(t, err)
	_, err = ch.Get()
	require.ErrorIs(t, err, ErrEmpty)
	assert.False(t, ch.Consume())

	_, err = ch.Update([]any{"b"})
	require.NoError(t, err)
	_, err = ch.Get()
	require.NoError(t, err)

	assert.True(t, ch.Consume())
	_, err = ch.Get()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestNamedBarrier_RejectsUndeclaredContributor(t *testing.T) {
	ch := NewNamedBarrier("join:sink", []string{"a"})
	_, err := ch.Update([]any{"intruder"})
	var invalidErr *InvalidUpdateError
	require.ErrorAs(t, err, &invalidErr)
}

func TestDynamicBarrier_WindowDeclaredThroughNames(t *testing.T) {
	ch := NewDynamicBarrier("gather")

	_, err := ch.Get()
	require.ErrorIs(t, err, ErrEmpty)

	_, err = ch.Update([]any{Names{"w1", "w2"}})
	require.NoError(t, err)
	_, err = ch.Get()
	require.ErrorIs(t, err, ErrEmpty)

	_, err = ch.Update([]any{"w1", "w2"})
	require.NoError(t, err)
	_, err = ch.Get()
	require.NoError(t, err)

	assert.True(t, ch.Consume())
	_, err = ch.Get()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDynamicBarrier_RejectsUnawaitedContributor(t *testing.T) {
	ch := NewDynamicBarrier("gather")
	_, err := ch.Update([]any{Names{"w1"}})
	require.NoError(t, err)
	_, err = ch.Update([]any{"w2"})
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*InvalidUpdateError)))
}

func TestCheckpointRoundTrip(t *testing.T) {
	barrier := NewNamedBarrier("join:sink", []string{"a", "b"})
	_, err := barrier.Update([]any{"a"})
	require.NoError(t, err)

	snapshot, ok := barrier.Checkpoint()
	require.True(t, ok)

	restored := barrier.FromCheckpoint(snapshot)
	_, err = restored.Get()
	require.ErrorIs(t, err, ErrEmpty)

	_, err = restored.Update([]any{"b"})
	require.NoError(t, err)
	_, err = restored.Get()
	require.NoError(t, err)
}

func TestSet_SnapshotSkipsEmptyChannels(t *testing.T) {
	set := NewSet()
	set.Add("a", NewLastValue("a"))
	set.Add("b", NewLastValue("b"))

	ch, ok := set.Get("a")
	require.True(t, ok)
	_, err := ch.Update([]any{1})
	require.NoError(t, err)

	snapshot := set.Snapshot()
	assert.Equal(t, map[string]any{"a": 1}, snapshot)
	assert.Equal(t, []string{"a", "b"}, set.Names())
}
