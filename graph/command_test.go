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

func TestCommandWrites_ExpandsUpdateGoToAndSends(t *testing.T) {
	cmd := &Command{
		Update: State{"b": 2, "a": 1},
		GoTo:   "next",
		Sends: []Send{
			{Node: "w", Input: map[string]any{"v": 1}},
			{Node: "w", Input: map[string]any{"v": 2}},
		},
	}
	writes := commandWrites("origin", cmd)
	require.Len(t, writes, 5)

	// Update writes come first, in deterministic key order.
	assert.Equal(t, "a", writes[0].Channel)
	assert.Equal(t, "b", writes[1].Channel)

	assert.Equal(t, branchChannel("next"), writes[2].Channel)
	assert.Equal(t, "origin", writes[2].Value)

	send, ok := writes[3].Value.(PendingSend)
	require.True(t, ok)
	assert.Equal(t, "w", send.Node)
	assert.Equal(t, SendChannel, writes[3].Channel)
	assert.Equal(t, SendChannel, writes[4].Channel)
}

func TestCommandWrites_GoToEndProducesNoRoutingWrite(t *testing.T) {
	writes := commandWrites("origin", &Command{GoTo: End})
	assert.Empty(t, writes)
}

func TestCommandWrites_SendInputIsIsolatedFromCaller(t *testing.T) {
	payload := map[string]any{"v": 1}
	writes := commandWrites("origin", &Command{Sends: []Send{{Node: "w", Input: payload}}})
	require.Len(t, writes, 1)

	payload["v"] = 99
	send := writes[0].Value.(PendingSend)
	assert.Equal(t, 1, send.Input.(map[string]any)["v"])
}

func TestExpandOutput_Variants(t *testing.T) {
	update, writes, routed, err := expandOutput("n", State{"k": "v"})
	require.NoError(t, err)
	assert.False(t, routed)
	assert.Equal(t, State{"k": "v"}, update)
	require.Len(t, writes, 1)

	_, _, routed, err = expandOutput("n", &Command{GoTo: "x"})
	require.NoError(t, err)
	assert.True(t, routed)

	_, writes, routed, err = expandOutput("n", &Command{Update: State{"k": 1}})
	require.NoError(t, err)
	assert.False(t, routed, "an update-only command keeps static routing")
	require.Len(t, writes, 1)

	_, writes, _, err = expandOutput("n", nil)
	require.NoError(t, err)
	assert.Empty(t, writes)

	_, _, _, err = expandOutput("n", 42)
	require.Error(t, err)
}
