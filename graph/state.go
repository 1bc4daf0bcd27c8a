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
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// State is the keyed view of channel values that flows into node functions.
// Each schema field is backed by its own channel; the engine assembles a
// State per task and applies the returned update through the write-commit
// engine, never in place.
type State map[string]any

// Clone creates a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// StateReducer merges an update into an existing value. Fields declaring a
// reducer are backed by reducing channels that tolerate multiple writers per
// step; fields without one are backed by single-writer last-value channels.
type StateReducer func(existing, update any) any

// StateField defines a field in the state schema.
type StateField struct {
	Type     reflect.Type
	Reducer  StateReducer
	Default  func() any
	Required bool
}

// StateSchema defines the structure of graph state and, through its
// reducers, the channel variants the compiled graph is built from.
type StateSchema struct {
	mu     sync.RWMutex
	Fields map[string]StateField
}

// NewStateSchema creates a new state schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{Fields: make(map[string]StateField)}
}

// AddField adds a field to the state schema.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fields[name] = field
	return s
}

// FieldNames returns the declared field names.
func (s *StateSchema) FieldNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	return names
}

// ApplyUpdate merges an update into a state using the declared reducers.
// The engine uses this for the task-local overlay (a node's own unflushed
// writes are visible to its same-step reads) and for the values stream.
func (s *StateSchema) ApplyUpdate(currentState State, update State) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := currentState.Clone()
	for key, updateValue := range update {
		field, exists := s.Fields[key]
		if !exists || field.Reducer == nil {
			result[key] = updateValue
			continue
		}
		currentValue, hasCurrentValue := result[key]
		if !hasCurrentValue && field.Default != nil {
			currentValue = field.Default()
		}
		result[key] = field.Reducer(currentValue, updateValue)
	}
	return result
}

// Validate validates a state against the schema.
func (s *StateSchema) Validate(state State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, field := range s.Fields {
		value, exists := state[name]
		if field.Required && !exists {
			return fmt.Errorf("required field %s is missing", name)
		}
		if exists && value != nil && field.Type != nil {
			valueType := reflect.TypeOf(value)
			if !valueType.AssignableTo(field.Type) {
				return fmt.Errorf("field %s has wrong type: expected %v, got %v",
					name, field.Type, valueType)
			}
		}
	}
	return nil
}

// Common reducer functions.

// AppendReducer appends update to the existing slice.
func AppendReducer(existing, update any) any {
	if existing == nil {
		existing = []any{}
	}
	existingSlice, ok1 := existing.([]any)
	if !ok1 {
		return update
	}
	if updateSlice, ok := update.([]any); ok {
		return append(existingSlice, updateSlice...)
	}
	return append(existingSlice, update)
}

// StringSliceReducer appends string slices specifically.
func StringSliceReducer(existing, update any) any {
	if existing == nil {
		existing = []string{}
	}
	existingSlice, ok1 := existing.([]string)
	updateSlice, ok2 := update.([]string)
	if !ok1 || !ok2 {
		return update
	}
	return append(existingSlice, updateSlice...)
}

// MergeReducer merges an update map into the existing map.
func MergeReducer(existing, update any) any {
	if existing == nil {
		existing = make(map[string]any)
	}
	existingMap, ok1 := existing.(map[string]any)
	updateMap, ok2 := update.(map[string]any)
	if !ok1 || !ok2 {
		return update
	}
	result := make(map[string]any, len(existingMap)+len(updateMap))
	for k, v := range existingMap {
		result[k] = v
	}
	for k, v := range updateMap {
		result[k] = v
	}
	return result
}

// SumIntReducer adds integer updates to the existing value, treating
// missing values as zero. Handles int and int64 plus the float64 and
// json.Number forms produced by deserialization.
func SumIntReducer(existing, update any) any {
	return toInt64(existing) + toInt64(update)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
