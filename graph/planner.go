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
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-graph-go/graph/internal/channel"
	"trpc.group/trpc-go/trpc-graph-go/log"
)

// planner decides which nodes run in a step. It works on a forked
// checkpoint: pending sends are drained and versions-seen bookkeeping is
// advanced on the fork, so an abandoned step leaves the committed
// checkpoint untouched.
type planner struct {
	graph *Graph
}

func newPlanner(g *Graph) *planner {
	return &planner{graph: g}
}

// Plan produces the step's task list: one task per drained pending send
// first, then one task per statically triggered node in registration order.
// A node is triggered when at least one of its trigger channels has a
// version newer than what the node has seen; an unsatisfied barrier among
// the advanced triggers defers the node without consuming the advance.
func (p *planner) Plan(checkpoint *Checkpoint, channels *channel.Set, extra State) ([]*Task, error) {
	tasks := p.planSends(checkpoint, extra)
	staticTasks, err := p.planTriggers(checkpoint, channels, extra)
	if err != nil {
		return nil, err
	}
	return append(tasks, staticTasks...), nil
}

// planSends drains the checkpoint's pending sends into tasks. Sends are
// never deduplicated; two identical sends yield two tasks. Sends to unknown
// nodes are dropped with a warning.
func (p *planner) planSends(checkpoint *Checkpoint, extra State) []*Task {
	if len(checkpoint.PendingSends) == 0 {
		return nil
	}
	var tasks []*Task
	for i, send := range checkpoint.PendingSends {
		if _, ok := p.graph.Node(send.Node); !ok {
			log.Warnf("dropping send to unknown node %s", send.Node)
			continue
		}
		task := newTask(send.Node, sendInput(send.Input, extra))
		task.IsSend = true
		task.sendIndex = i
		tasks = append(tasks, task)
	}
	checkpoint.PendingSends = nil
	return tasks
}

// sendInput builds a send task's input from the literal payload.
func sendInput(payload any, extra State) State {
	input := make(State)
	switch value := deepCopyAny(payload).(type) {
	case State:
		input = value
	case map[string]any:
		input = State(value)
	default:
		input[StateKeyInput] = value
	}
	for k, v := range extra {
		input[k] = v
	}
	return input
}

func (p *planner) planTriggers(checkpoint *Checkpoint, channels *channel.Set, extra State) ([]*Task, error) {
	var tasks []*Task
	for _, nodeID := range p.graph.NodeIDs() {
		node, _ := p.graph.Node(nodeID)
		fired, deferred := p.firedTriggers(checkpoint, channels, node)
		if len(fired) == 0 || deferred {
			continue
		}
		input, runnable, err := p.buildInput(channels, node, extra)
		if err != nil {
			return nil, err
		}
		if !runnable {
			continue
		}
		for _, name := range fired {
			checkpoint.MarkSeen(nodeID, name, checkpoint.ChannelVersions[name])
			if ch, ok := channels.Get(name); ok {
				ch.Consume()
			}
		}
		task := newTask(nodeID, input)
		task.Triggers = fired
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// firedTriggers returns the node's trigger channels whose version advanced
// past what the node has seen. deferred is true when an advanced trigger is
// still empty (an unsatisfied barrier): the node must not run yet, and the
// advance must stay unseen so a later contribution re-fires it.
func (p *planner) firedTriggers(checkpoint *Checkpoint, channels *channel.Set, node *Node) (fired []string, deferred bool) {
	for _, name := range node.triggers {
		version := checkpoint.ChannelVersions[name]
		if version <= checkpoint.SeenVersion(node.ID, name) {
			continue
		}
		ch, ok := channels.Get(name)
		if !ok {
			continue
		}
		if _, err := ch.Get(); err != nil {
			if errors.Is(err, channel.ErrEmpty) {
				return nil, true
			}
			continue
		}
		fired = append(fired, name)
	}
	return fired, false
}

// buildInput assembles a task's input state. Without an explicit read
// declaration the node reads every schema field; a list-shaped read takes
// the first non-empty channel; a map-shaped read reads every entry under
// its key and tolerates emptiness only for channels that do not also
// trigger the node.
func (p *planner) buildInput(channels *channel.Set, node *Node, extra State) (State, bool, error) {
	input := make(State)
	switch {
	case len(node.reads) > 0:
		found := false
		for _, name := range node.reads {
			value, err := p.read(channels, name)
			if err != nil {
				if errors.Is(err, channel.ErrEmpty) {
					continue
				}
				return nil, false, err
			}
			input[name] = value
			found = true
			break
		}
		if !found {
			return nil, false, nil
		}
	case len(node.readMap) > 0:
		triggers := make(map[string]bool, len(node.triggers))
		for _, t := range node.triggers {
			triggers[t] = true
		}
		for key, name := range node.readMap {
			value, err := p.read(channels, name)
			if err != nil {
				if errors.Is(err, channel.ErrEmpty) {
					if triggers[name] {
						return nil, false, nil
					}
					continue
				}
				return nil, false, err
			}
			input[key] = value
		}
	default:
		for _, name := range p.graph.Schema().FieldNames() {
			value, err := p.read(channels, name)
			if err != nil {
				if errors.Is(err, channel.ErrEmpty) {
					continue
				}
				return nil, false, err
			}
			input[name] = value
		}
	}
	if node.mapper != nil {
		mapped := node.mapper(input)
		switch value := mapped.(type) {
		case State:
			input = value
		case map[string]any:
			input = State(value)
		default:
			input = State{StateKeyInput: value}
		}
	}
	for k, v := range extra {
		input[k] = v
	}
	return input, true, nil
}

func (p *planner) read(channels *channel.Set, name string) (any, error) {
	ch, ok := channels.Get(name)
	if !ok {
		return nil, fmt.Errorf("read from undeclared channel %s: %w", name, channel.ErrEmpty)
	}
	value, err := ch.Get()
	if err != nil {
		return nil, err
	}
	return deepCopyAny(value), nil
}
