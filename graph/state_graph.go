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
	"fmt"
	"sort"
)

// StateGraph provides a fluent interface for building graphs. This is the
// primary public API for creating executable graphs.
//
// Example usage:
//
//	schema := NewStateSchema().AddField("counter", StateField{Reducer: SumIntReducer})
//	g, err := NewStateGraph(schema).
//	  AddNode("increment", incrementFunc).
//	  SetEntryPoint("increment").
//	  SetFinishPoint("increment").
//	  Compile()
//
// The compiled Graph can then be executed with NewExecutor(g).
type StateGraph struct {
	graph *Graph
	errs  []error
}

// NewStateGraph creates a new graph builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{graph: New(schema)}
}

// Option is a function that configures a Node.
type Option func(*Node)

// WithName sets the name of the node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// WithReads declares a list-shaped read: the node's input is the value of
// the first non-empty channel in the list. When all are empty the node is
// skipped for that step.
func WithReads(channels ...string) Option {
	return func(node *Node) {
		node.reads = channels
	}
}

// WithReadMap declares a map-shaped read: every entry is read into the input
// under its key; emptiness is tolerated only for entries that are not also
// trigger channels. Without WithReads/WithReadMap a node reads every schema
// field.
func WithReadMap(readMap map[string]string) Option {
	return func(node *Node) {
		node.readMap = readMap
	}
}

// WithMapper sets an input transformation applied after channel reads.
func WithMapper(mapper func(any) any) Option {
	return func(node *Node) {
		node.mapper = mapper
	}
}

// AddNode adds a node with the given ID and function.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	node := &Node{
		ID:       id,
		Name:     id,
		Function: function,
	}
	for _, opt := range opts {
		opt(node)
	}
	if err := sg.graph.addNode(node); err != nil {
		sg.errs = append(sg.errs, err)
	}
	return sg
}

// AddEdge adds a static edge between two nodes.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if err := sg.graph.addEdge(&Edge{From: from, To: to}); err != nil {
		sg.errs = append(sg.errs, err)
	}
	return sg
}

// AddConditionalEdges adds a conditional edge with a path map from condition
// results to target nodes.
func (sg *StateGraph) AddConditionalEdges(from string, condition ConditionalFunc, pathMap map[string]string) *StateGraph {
	err := sg.graph.addConditionalEdge(&ConditionalEdge{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	})
	if err != nil {
		sg.errs = append(sg.errs, err)
	}
	return sg
}

// AddChannel declares an extra channel beyond the ones derived from the
// schema and the topology. Useful for custom trigger wiring.
func (sg *StateGraph) AddChannel(name string, behavior ChannelBehavior) *StateGraph {
	sg.graph.addChannelSpec(channelSpec{Name: name, Behavior: behavior})
	return sg
}

// AddBarrierChannel declares a named-barrier channel over a fixed
// contributor set.
func (sg *StateGraph) AddBarrierChannel(name string, contributors []string) *StateGraph {
	sg.graph.addChannelSpec(channelSpec{
		Name:         name,
		Behavior:     BehaviorNamedBarrier,
		Contributors: contributors,
	})
	return sg
}

// AddNodeTrigger subscribes a node to an explicitly declared channel.
func (sg *StateGraph) AddNodeTrigger(channelName, nodeID string) *StateGraph {
	sg.graph.addNodeTrigger(channelName, nodeID)
	return sg
}

// SetEntryPoint sets the node fired when a run is seeded with input.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	if err := sg.graph.setEntryPoint(nodeID); err != nil {
		sg.errs = append(sg.errs, err)
	}
	return sg
}

// SetFinishPoint marks a node as terminal: it routes to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// Compile wires channels from the schema and the topology and returns the
// validated immutable Graph.
//
// Derived channels:
//   - one value channel per schema field (reducing fields become aggregate
//     channels, others last-value),
//   - trigger:input fired once per input seeding, subscribed by the entry
//     node,
//   - branch:to:<node> ephemeral routing channel per node,
//   - join:<node> named-barrier channel for nodes with two or more static
//     in-edges, contributed to by each upstream node.
func (sg *StateGraph) Compile() (*Graph, error) {
	if len(sg.errs) > 0 {
		return nil, fmt.Errorf("graph build failed: %w", sg.errs[0])
	}
	g := sg.graph

	// Field channels from the schema.
	fields := g.schema.FieldNames()
	sort.Strings(fields)
	for _, name := range fields {
		field := g.schema.Fields[name]
		spec := channelSpec{Name: name, Behavior: BehaviorLastValue}
		if field.Reducer != nil {
			reducer := field.Reducer
			spec.Behavior = BehaviorAggregate
			spec.Reduce = func(acc, value any) any { return reducer(acc, value) }
			spec.NewZero = field.Default
		}
		g.addChannelSpec(spec)
	}

	// Entry trigger.
	g.addChannelSpec(channelSpec{Name: ChannelInputTrigger, Behavior: BehaviorLastValue})
	if entry := g.EntryPoint(); entry != "" {
		g.addNodeTrigger(ChannelInputTrigger, entry)
	}

	// Per-node routing channels. Every node gets one so dynamic GoTo and
	// Send routing always has a target channel.
	for _, nodeID := range g.NodeIDs() {
		name := branchChannel(nodeID)
		g.addChannelSpec(channelSpec{Name: name, Behavior: BehaviorEphemeral})
		g.addNodeTrigger(name, nodeID)
	}

	// Static edges: single in-edge targets are fired through their routing
	// channel; fan-in targets wait on a join barrier fed by every upstream
	// node.
	inbound := make(map[string][]string)
	for _, from := range append(g.NodeIDs(), Start) {
		for _, edge := range g.Edges(from) {
			if edge.To == End || edge.From == Start {
				continue
			}
			inbound[edge.To] = append(inbound[edge.To], edge.From)
		}
	}
	targets := make([]string, 0, len(inbound))
	for to := range inbound {
		targets = append(targets, to)
	}
	sort.Strings(targets)
	for _, to := range targets {
		sources := inbound[to]
		sort.Strings(sources)
		if len(sources) == 1 {
			g.addNodeWriter(sources[0], channelWriteEntry{
				Channel: branchChannel(to),
				Value:   sources[0],
			})
			continue
		}
		join := joinChannel(to)
		g.addChannelSpec(channelSpec{
			Name:         join,
			Behavior:     BehaviorNamedBarrier,
			Contributors: sources,
		})
		g.addNodeTrigger(join, to)
		for _, from := range sources {
			g.addNodeWriter(from, channelWriteEntry{Channel: join, Value: from})
		}
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustCompile compiles the graph and panics on error.
func (sg *StateGraph) MustCompile() *Graph {
	g, err := sg.Compile()
	if err != nil {
		panic(fmt.Sprintf("graph compilation failed: %v", err))
	}
	return g
}
