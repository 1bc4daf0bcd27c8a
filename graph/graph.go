//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides a Pregel-style graph execution engine: nodes
// communicate only through versioned channels, writes become visible at step
// boundaries, and every committed step is checkpointable and resumable.
package graph

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-graph-go/graph/internal/channel"
)

// Special node identifiers for graph routing.
const (
	// Start represents the virtual start node for routing.
	Start = "__start__"
	// End represents the virtual end node for routing.
	End = "__end__"
)

// NodeFunc is the function executed by a node. It receives the task's input
// state and returns either a State update or a *Command.
type NodeFunc func(ctx context.Context, state State) (any, error)

// ConditionalFunc determines the next node based on state.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// channelWriteEntry is a write a node statically performs when it runs,
// independent of its function's returned update.
type channelWriteEntry struct {
	Channel string
	Value   any
}

// Node represents a node in the graph.
type Node struct {
	ID          string
	Name        string
	Description string
	Function    NodeFunc

	triggers []string            // channels whose version advance fires this node
	reads    []string            // list-shaped read: first non-empty wins
	readMap  map[string]string   // map-shaped read: input key -> channel
	mapper   func(any) any       // input transformation
	writers  []channelWriteEntry // static writes emitted when the node runs
}

// Edge represents a static edge in the graph.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge routes to one of several targets based on state.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string // maps condition result to target node
}

// ChannelBehavior names a channel variant for declaration purposes.
type ChannelBehavior int

// Channel variants.
const (
	BehaviorLastValue ChannelBehavior = iota
	BehaviorAggregate
	BehaviorEphemeral
	BehaviorNamedBarrier
	BehaviorDynamicBarrier
)

// channelSpec is the declaration a runtime channel is constructed from. The
// declaration (not the channel) owns the non-serializable parts: reducer and
// default factory survive checkpoint restores because restore always starts
// from the declaration.
type channelSpec struct {
	Name         string
	Behavior     ChannelBehavior
	Reduce       channel.Reducer
	NewZero      func() any
	Contributors []string
}

func (cs channelSpec) build() channel.Channel {
	switch cs.Behavior {
	case BehaviorAggregate:
		return channel.NewAggregate(cs.Name, cs.Reduce, cs.NewZero)
	case BehaviorEphemeral:
		return channel.NewEphemeral(cs.Name)
	case BehaviorNamedBarrier:
		return channel.NewNamedBarrier(cs.Name, cs.Contributors)
	case BehaviorDynamicBarrier:
		return channel.NewDynamicBarrier(cs.Name)
	default:
		return channel.NewLastValue(cs.Name)
	}
}

// Graph is the compiled, immutable runtime structure created by
// StateGraph.Compile. It is safe for concurrent executors to share.
type Graph struct {
	mu               sync.RWMutex
	schema           *StateSchema
	nodes            map[string]*Node
	nodeOrder        []string // registry order, drives deterministic planning
	edges            map[string][]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
	channelSpecs     map[string]channelSpec
	triggerToNodes   map[string][]string
}

// New creates a new empty graph with the given state schema.
func New(schema *StateSchema) *Graph {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string][]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
		channelSpecs:     make(map[string]channelSpec),
		triggerToNodes:   make(map[string][]string),
	}
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, exists := g.nodes[id]
	return node, exists
}

// NodeIDs returns all node IDs in registration order.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.nodeOrder...)
}

// Edges returns all outgoing edges from a node.
func (g *Graph) Edges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[nodeID]
}

// ConditionalEdge returns the conditional edge from a node.
func (g *Graph) ConditionalEdge(nodeID string) (*ConditionalEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edge, exists := g.conditionalEdges[nodeID]
	return edge, exists
}

// EntryPoint returns the entry point node ID.
func (g *Graph) EntryPoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entryPoint
}

// Schema returns the state schema.
func (g *Graph) Schema() *StateSchema {
	return g.schema
}

// newChannelSet constructs fresh channels for every declared spec.
func (g *Graph) newChannelSet() *channel.Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := channel.NewSet()
	for name, spec := range g.channelSpecs {
		set.Add(name, spec.build())
	}
	return set
}

// restoreChannels rebuilds the channel set from checkpointed values.
// Channels absent from the checkpoint are constructed fresh.
func (g *Graph) restoreChannels(values map[string]any) *channel.Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := channel.NewSet()
	for name, spec := range g.channelSpecs {
		fresh := spec.build()
		if snapshot, ok := values[name]; ok {
			fresh = fresh.FromCheckpoint(snapshot)
		}
		set.Add(name, fresh)
	}
	return set
}

// validate validates the graph structure.
func (g *Graph) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entryPoint == "" {
		return fmt.Errorf("graph must have an entry point")
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point node %s does not exist", g.entryPoint)
	}
	for _, node := range g.nodes {
		for _, trigger := range node.triggers {
			if _, ok := g.channelSpecs[trigger]; !ok {
				return fmt.Errorf("node %s triggers on undeclared channel %s", node.ID, trigger)
			}
		}
	}
	return nil
}

// addNode adds a node to the graph.
func (g *Graph) addNode(node *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if node.ID == Start || node.ID == End {
		return fmt.Errorf("node ID %s is reserved", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node with ID %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return nil
}

// addEdge adds an edge to the graph.
func (g *Graph) addEdge(edge *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge from and to cannot be empty")
	}
	if edge.From != Start {
		if _, exists := g.nodes[edge.From]; !exists {
			return fmt.Errorf("source node %s does not exist", edge.From)
		}
	}
	if edge.To != End {
		if _, exists := g.nodes[edge.To]; !exists {
			return fmt.Errorf("target node %s does not exist", edge.To)
		}
	}
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	return nil
}

// addConditionalEdge adds a conditional edge to the graph.
func (g *Graph) addConditionalEdge(condEdge *ConditionalEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if condEdge.From == "" {
		return fmt.Errorf("conditional edge from cannot be empty")
	}
	if _, exists := g.nodes[condEdge.From]; !exists {
		return fmt.Errorf("source node %s does not exist", condEdge.From)
	}
	for _, to := range condEdge.PathMap {
		if to != End {
			if _, exists := g.nodes[to]; !exists {
				return fmt.Errorf("target node %s does not exist", to)
			}
		}
	}
	g.conditionalEdges[condEdge.From] = condEdge
	return nil
}

// setEntryPoint sets the entry point of the graph.
func (g *Graph) setEntryPoint(nodeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if nodeID != "" {
		if _, exists := g.nodes[nodeID]; !exists {
			return fmt.Errorf("entry point node %s does not exist", nodeID)
		}
	}
	g.entryPoint = nodeID
	return nil
}

// addChannelSpec declares a channel. Re-declaring an existing name keeps the
// first declaration.
func (g *Graph) addChannelSpec(spec channelSpec) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.channelSpecs[spec.Name]; exists {
		return
	}
	g.channelSpecs[spec.Name] = spec
}

// hasChannel reports whether a channel name is declared.
func (g *Graph) hasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.channelSpecs[name]
	return exists
}

// addNodeTrigger records that a channel's advance fires a node.
func (g *Graph) addNodeTrigger(channelName, nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.triggerToNodes[channelName] {
		if existing == nodeID {
			return
		}
	}
	g.triggerToNodes[channelName] = append(g.triggerToNodes[channelName], nodeID)
	if node, exists := g.nodes[nodeID]; exists {
		for _, existing := range node.triggers {
			if existing == channelName {
				return
			}
		}
		node.triggers = append(node.triggers, channelName)
	}
}

// addNodeWriter appends a static write performed whenever a node runs.
func (g *Graph) addNodeWriter(nodeID string, entry channelWriteEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node, exists := g.nodes[nodeID]; exists {
		node.writers = append(node.writers, entry)
	}
}

// branchChannel returns the routing channel name for a target node.
func branchChannel(nodeID string) string {
	return ChannelBranchPrefix + nodeID
}

// joinChannel returns the fan-in barrier channel name for a target node.
func joinChannel(nodeID string) string {
	return ChannelJoinPrefix + nodeID
}
