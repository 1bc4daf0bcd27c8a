//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Config map keys (used under config["configurable"]).
const (
	CfgKeyConfigurable = "configurable"
	CfgKeyLineageID    = "lineage_id"
	CfgKeyCheckpointID = "checkpoint_id"
	CfgKeyCheckpointNS = "checkpoint_ns"
	CfgKeyResumeMap    = "resume_map"
)

// State map keys (stored into task input state).
const (
	StateKeyCommand   = "__command__"
	StateKeyInput     = "__input__"
	StateKeyResumeMap = "__resume_map__"
)

// Special channel names. Writes addressed to these are routing markers, not
// ordinary channel updates.
const (
	// SendChannel routes a write into the checkpoint's pending-send queue.
	SendChannel = "__send__"
	// ResumeChannel carries resume values for interrupted tasks.
	ResumeChannel = "__resume__"
	// ErrorChannel carries a task's error marker in persisted writes.
	ErrorChannel = "__error__"
	// InterruptChannel is the reserved consumer name under which the
	// interrupt machinery records versions it has reacted to.
	InterruptChannel = "__interrupt__"
)

// Channel naming conventions produced by the builder.
const (
	// ChannelInputTrigger fires the entry node when a run is seeded.
	ChannelInputTrigger = "trigger:input"
	// ChannelBranchPrefix prefixes the per-node routing channel.
	ChannelBranchPrefix = "branch:to:"
	// ChannelJoinPrefix prefixes the barrier channel of a fan-in node.
	ChannelJoinPrefix = "join:"
)

// Checkpoint Metadata.Source enumeration values.
const (
	SourceInput     = "input"
	SourceLoop      = "loop"
	SourceInterrupt = "interrupt"
)

// InterruptAll selects every node for interrupt-before/-after matching.
const InterruptAll = "*"
