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
	"trpc.group/trpc-go/trpc-graph-go/graph/internal/channel"
	"trpc.group/trpc-go/trpc-graph-go/log"
)

// commitResult is the outcome of applying one step's buffered writes.
type commitResult struct {
	// UpdatedChannels lists channels whose value changed, sorted.
	UpdatedChannels []string
	// PendingSends are the dynamic sends extracted from marker writes, in
	// write order.
	PendingSends []PendingSend
	// Version is the single version assigned to every updated channel.
	Version int64
}

// commitWrites applies all buffered writes of a step to the channel set and
// advances the checkpoint's version bookkeeping. Every channel written in
// the step receives the same new version (one past the current maximum);
// untouched channels get an empty heartbeat update that never changes their
// value. Any channel-contract violation fails the whole commit.
func commitWrites(checkpoint *Checkpoint, channels *channel.Set, writes []PendingWrite) (*commitResult, error) {
	grouped := make(map[string][]any)
	var sends []PendingSend
	for _, write := range writes {
		switch write.Channel {
		case SendChannel:
			send, ok := coercePendingSend(write.Value)
			if !ok {
				log.Warnf("dropping malformed send marker from task %s", write.TaskID)
				continue
			}
			send.TaskID = write.TaskID
			sends = append(sends, send)
		case ResumeChannel, ErrorChannel:
			// Bookkeeping markers, consumed by the resume machinery.
		default:
			if _, ok := channels.Get(write.Channel); !ok {
				log.Warnf("dropping write to unknown channel %s from task %s",
					write.Channel, write.TaskID)
				continue
			}
			grouped[write.Channel] = append(grouped[write.Channel], write.Value)
		}
	}

	version := checkpoint.MaxChannelVersion() + 1
	var updated []string
	for _, name := range channels.Names() {
		ch, _ := channels.Get(name)
		changed, err := ch.Update(grouped[name])
		if err != nil {
			return nil, err
		}
		if changed {
			checkpoint.ChannelVersions[name] = version
			updated = append(updated, name)
		}
	}

	checkpoint.PendingSends = append(checkpoint.PendingSends, sends...)
	checkpoint.ChannelValues = channels.Snapshot()
	checkpoint.UpdatedChannels = updated
	return &commitResult{
		UpdatedChannels: updated,
		PendingSends:    sends,
		Version:         version,
	}, nil
}

// coercePendingSend normalizes a send marker value. Values replayed from a
// saver may have gone through a JSON round trip and arrive as maps.
func coercePendingSend(value any) (PendingSend, bool) {
	switch v := value.(type) {
	case PendingSend:
		return v, true
	case *PendingSend:
		if v == nil {
			return PendingSend{}, false
		}
		return *v, true
	case Send:
		return PendingSend{Node: v.Node, Input: v.Input}, true
	case map[string]any:
		node, ok := v["node"].(string)
		if !ok || node == "" {
			return PendingSend{}, false
		}
		return PendingSend{Node: node, Input: v["input"]}, true
	default:
		return PendingSend{}, false
	}
}
