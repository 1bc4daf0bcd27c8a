//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

// Package channel provides the versioned communication channels used by
// Pregel-style execution. Nodes never touch channels directly: all reads and
// writes go through the step planner and the write-commit engine.
package channel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrEmpty is returned by Get when a channel has never been written, or when
// a barrier channel is not yet satisfied.
var ErrEmpty = errors.New("channel is empty")

// InvalidUpdateError reports a write batch that violates a channel's
// per-step contract, e.g. two writers to a single-writer channel.
type InvalidUpdateError struct {
	Channel string
	Reason  string
}

// Error implements the error interface.
func (e *InvalidUpdateError) Error() string {
	return fmt.Sprintf("invalid update to channel %s: %s", e.Channel, e.Reason)
}

// Channel is the closed contract shared by all variants. Update is called at
// most once per step with the sequence of all values written to it in that
// step; Update(nil) is a valid no-op used as the step-boundary heartbeat and
// must not change the result of Get.
type Channel interface {
	// Update applies the step's write batch and reports whether the stored
	// value changed.
	Update(values []any) (bool, error)
	// Get returns the current value, or ErrEmpty.
	Get() (any, error)
	// Checkpoint returns a serializable snapshot of the channel's internal
	// state. ok is false when there is nothing to persist.
	Checkpoint() (snapshot any, ok bool)
	// FromCheckpoint builds a fresh channel of the same variant restored
	// from a snapshot previously produced by Checkpoint (possibly after a
	// JSON round trip).
	FromCheckpoint(snapshot any) Channel
	// Consume runs the channel's read side effect once the node that reads
	// it begins its step. Reports whether internal state was cleared.
	Consume() bool
}

// Reducer folds one update value into the accumulated value of an Aggregate
// channel.
type Reducer func(acc, value any) any

// Names declares the required contributor set of a DynamicBarrier when
// passed as an update value.
type Names []string

// LastValue stores the single value written in a step. At most one producer
// per step is allowed.
type LastValue struct {
	name  string
	value any
	set   bool
}

// NewLastValue creates a last-value channel.
func NewLastValue(name string) *LastValue {
	return &LastValue{name: name}
}

// Update implements Channel. More than one value in a batch violates the
// single-writer contract.
func (c *LastValue) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	if len(values) > 1 {
		return false, &InvalidUpdateError{
			Channel: c.name,
			Reason:  fmt.Sprintf("at most one value per step, got %d", len(values)),
		}
	}
	c.value = values[0]
	c.set = true
	return true, nil
}

// Get implements Channel.
func (c *LastValue) Get() (any, error) {
	if !c.set {
		return nil, ErrEmpty
	}
	return c.value, nil
}

// Checkpoint implements Channel.
func (c *LastValue) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel.
func (c *LastValue) FromCheckpoint(snapshot any) Channel {
	return &LastValue{name: c.name, value: snapshot, set: true}
}

// Consume implements Channel. Last-value channels keep their value.
func (c *LastValue) Consume() bool { return false }

// Aggregate folds every value written in a step into an accumulated value
// using a caller-supplied reducer, seeded by the previous value or a default
// factory.
type Aggregate struct {
	name    string
	reduce  Reducer
	newZero func() any
	value   any
	set     bool
}

// NewAggregate creates a reducing channel. reduce must not be nil; newZero
// may be nil when the first written value should seed the accumulator.
func NewAggregate(name string, reduce Reducer, newZero func() any) *Aggregate {
	return &Aggregate{name: name, reduce: reduce, newZero: newZero}
}

// Update implements Channel, folding values left to right.
func (c *Aggregate) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	acc := c.value
	if !c.set {
		if c.newZero != nil {
			acc = c.newZero()
		} else {
			acc, values = values[0], values[1:]
		}
	}
	for _, v := range values {
		acc = c.reduce(acc, v)
	}
	c.value = acc
	c.set = true
	return true, nil
}

// Get implements Channel.
func (c *Aggregate) Get() (any, error) {
	if !c.set {
		return nil, ErrEmpty
	}
	return c.value, nil
}

// Checkpoint implements Channel.
func (c *Aggregate) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel. The restored channel keeps the
// receiver's reducer and default factory.
func (c *Aggregate) FromCheckpoint(snapshot any) Channel {
	return &Aggregate{name: c.name, reduce: c.reduce, newZero: c.newZero, value: snapshot, set: true}
}

// Consume implements Channel.
func (c *Aggregate) Consume() bool { return false }

// Ephemeral stores a value until the node that reads it begins its step.
// Routing channels use this variant so a trigger marker does not outlive its
// consumption.
type Ephemeral struct {
	name  string
	value any
	set   bool
}

// NewEphemeral creates an ephemeral channel.
func NewEphemeral(name string) *Ephemeral {
	return &Ephemeral{name: name}
}

// Update implements Channel. Concurrent producers are allowed; the last
// value of the batch wins.
func (c *Ephemeral) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	c.value = values[len(values)-1]
	c.set = true
	return true, nil
}

// Get implements Channel.
func (c *Ephemeral) Get() (any, error) {
	if !c.set {
		return nil, ErrEmpty
	}
	return c.value, nil
}

// Checkpoint implements Channel. The value survives checkpointing because a
// commit happens between the write and the consuming step.
func (c *Ephemeral) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel.
func (c *Ephemeral) FromCheckpoint(snapshot any) Channel {
	return &Ephemeral{name: c.name, value: snapshot, set: true}
}

// Consume implements Channel, clearing the stored value.
func (c *Ephemeral) Consume() bool {
	if !c.set {
		return false
	}
	c.value = nil
	c.set = false
	return true
}

// NamedBarrier waits until every declared contributor has written its name
// in the (possibly multi-step) open window. Get fails with ErrEmpty until
// the window is satisfied; Consume resets the window.
type NamedBarrier struct {
	name  string
	names map[string]bool
	seen  map[string]bool
}

// NewNamedBarrier creates a barrier over a fixed contributor set.
func NewNamedBarrier(name string, contributors []string) *NamedBarrier {
	names := make(map[string]bool, len(contributors))
	for _, n := range contributors {
		names[n] = true
	}
	return &NamedBarrier{name: name, names: names, seen: make(map[string]bool)}
}

// Update implements Channel. Values are contributor names; an undeclared
// contributor violates the channel contract.
func (c *NamedBarrier) Update(values []any) (bool, error) {
	changed := false
	for _, v := range values {
		contributor, ok := v.(string)
		if !ok || !c.names[contributor] {
			return changed, &InvalidUpdateError{
				Channel: c.name,
				Reason:  fmt.Sprintf("unexpected contributor %v", v),
			}
		}
		if !c.seen[contributor] {
			c.seen[contributor] = true
			changed = true
		}
	}
	return changed, nil
}

// Get implements Channel. A satisfied barrier carries no payload.
func (c *NamedBarrier) Get() (any, error) {
	if !c.satisfied() {
		return nil, ErrEmpty
	}
	return nil, nil
}

func (c *NamedBarrier) satisfied() bool {
	for n := range c.names {
		if !c.seen[n] {
			return false
		}
	}
	return true
}

// Checkpoint implements Channel, persisting the seen set.
func (c *NamedBarrier) Checkpoint() (any, bool) {
	if len(c.seen) == 0 {
		return nil, false
	}
	return sortedKeys(c.seen), true
}

// FromCheckpoint implements Channel.
func (c *NamedBarrier) FromCheckpoint(snapshot any) Channel {
	restored := &NamedBarrier{name: c.name, names: c.names, seen: make(map[string]bool)}
	for _, n := range toStringSlice(snapshot) {
		restored.seen[n] = true
	}
	return restored
}

// Consume implements Channel, resetting a satisfied window.
func (c *NamedBarrier) Consume() bool {
	if !c.satisfied() {
		return false
	}
	c.seen = make(map[string]bool)
	return true
}

// DynamicBarrier is a barrier whose contributor set is itself declared
// through the channel: a Names update (re)declares the open window, string
// updates contribute to it.
type DynamicBarrier struct {
	name  string
	names map[string]bool
	seen  map[string]bool
}

// NewDynamicBarrier creates a dynamic barrier with an empty window.
func NewDynamicBarrier(name string) *DynamicBarrier {
	return &DynamicBarrier{
		name:  name,
		names: make(map[string]bool),
		seen:  make(map[string]bool),
	}
}

// Update implements Channel.
func (c *DynamicBarrier) Update(values []any) (bool, error) {
	changed := false
	for _, v := range values {
		switch value := v.(type) {
		case Names:
			c.names = make(map[string]bool, len(value))
			for _, n := range value {
				c.names[n] = true
			}
			changed = true
		case string:
			if !c.names[value] {
				return changed, &InvalidUpdateError{
					Channel: c.name,
					Reason:  fmt.Sprintf("contributor %q is not awaited", value),
				}
			}
			if !c.seen[value] {
				c.seen[value] = true
				changed = true
			}
		default:
			return changed, &InvalidUpdateError{
				Channel: c.name,
				Reason:  fmt.Sprintf("unsupported update type %T", v),
			}
		}
	}
	return changed, nil
}

// Get implements Channel.
func (c *DynamicBarrier) Get() (any, error) {
	if len(c.names) == 0 || !c.satisfied() {
		return nil, ErrEmpty
	}
	return nil, nil
}

func (c *DynamicBarrier) satisfied() bool {
	for n := range c.names {
		if !c.seen[n] {
			return false
		}
	}
	return true
}

// Checkpoint implements Channel.
func (c *DynamicBarrier) Checkpoint() (any, bool) {
	if len(c.names) == 0 && len(c.seen) == 0 {
		return nil, false
	}
	return map[string]any{
		"names": sortedKeys(c.names),
		"seen":  sortedKeys(c.seen),
	}, true
}

// FromCheckpoint implements Channel.
func (c *DynamicBarrier) FromCheckpoint(snapshot any) Channel {
	restored := NewDynamicBarrier(c.name)
	m, ok := snapshot.(map[string]any)
	if !ok {
		return restored
	}
	for _, n := range toStringSlice(m["names"]) {
		restored.names[n] = true
	}
	for _, n := range toStringSlice(m["seen"]) {
		restored.seen[n] = true
	}
	return restored
}

// Consume implements Channel, closing a satisfied window.
func (c *DynamicBarrier) Consume() bool {
	if len(c.names) == 0 || !c.satisfied() {
		return false
	}
	c.names = make(map[string]bool)
	c.seen = make(map[string]bool)
	return true
}

// Set is the container the engine owns between steps. The coordinator is the
// only writer during commit, but snapshots may be taken concurrently with
// event emission, hence the read lock.
type Set struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewSet creates an empty channel set.
func NewSet() *Set {
	return &Set{channels: make(map[string]Channel)}
}

// Add registers a channel under its name, replacing any previous one.
func (s *Set) Add(name string, c Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[name] = c
}

// Get returns the channel registered under name.
func (s *Set) Get(name string) (Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[name]
	return c, ok
}

// Names returns all channel names in deterministic order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the serializable state of every non-empty channel.
func (s *Set) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]any, len(s.channels))
	for name, c := range s.channels {
		if snapshot, ok := c.Checkpoint(); ok {
			values[name] = snapshot
		}
	}
	return values
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toStringSlice coerces a snapshot field that may have gone through a JSON
// round trip ([]any) back to []string.
func toStringSlice(v any) []string {
	switch value := v.(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
