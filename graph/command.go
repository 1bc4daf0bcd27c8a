//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Send is a dynamic fan-out instruction: run Node exactly once in the next
// step with Input as its literal task input. Sends bypass static edges and
// are never deduplicated.
type Send struct {
	// Node is the target node ID.
	Node string `json:"node"`
	// Input is the payload handed to the target as its input.
	Input any `json:"input"`
}

// Command is a control-flow value a node function may return instead of a
// plain state update. It can update state, jump to another node, fan out
// dynamic sends, or carry resume values into an interrupted run.
type Command struct {
	// Update is the state update to apply before routing.
	Update State `json:"update,omitempty"`
	// GoTo routes execution to the named node in the next step.
	GoTo string `json:"goto,omitempty"`
	// Sends fan out one task per entry in the next step.
	Sends []Send `json:"sends,omitempty"`
	// Resume is the value delivered to the single pending interrupt.
	Resume any `json:"resume,omitempty"`
	// ResumeMap delivers resume values to specific interrupt keys.
	ResumeMap map[string]any `json:"resume_map,omitempty"`
}

// commandWrites expands a command returned by nodeID into channel writes.
// The expansion is pure: updates become field writes, GoTo becomes a write
// to the target's routing channel, and each Send becomes a marker write on
// the send channel that the commit step turns into a pending send.
func commandWrites(nodeID string, cmd *Command) []channelWriteEntry {
	if cmd == nil {
		return nil
	}
	var writes []channelWriteEntry
	for _, key := range sortedStateKeys(cmd.Update) {
		writes = append(writes, channelWriteEntry{Channel: key, Value: cmd.Update[key]})
	}
	if cmd.GoTo != "" && cmd.GoTo != End {
		writes = append(writes, channelWriteEntry{
			Channel: branchChannel(cmd.GoTo),
			Value:   nodeID,
		})
	}
	for _, send := range cmd.Sends {
		writes = append(writes, channelWriteEntry{
			Channel: SendChannel,
			Value:   PendingSend{Node: send.Node, Input: deepCopyAny(send.Input)},
		})
	}
	return writes
}

// stateWrites expands a plain state update into one write per field.
func stateWrites(update State) []channelWriteEntry {
	writes := make([]channelWriteEntry, 0, len(update))
	for _, key := range sortedStateKeys(update) {
		writes = append(writes, channelWriteEntry{Channel: key, Value: update[key]})
	}
	return writes
}
