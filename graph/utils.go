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
	"reflect"
	"sort"
)

// sortedStateKeys returns a state's keys in deterministic order.
func sortedStateKeys(s State) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deepCopyAny creates a deep copy of common container types so that task
// inputs and buffered writes never alias mutable caller state. Unsupported
// types (functions, channels) are returned as-is.
func deepCopyAny(v any) any {
	return deepCopyWithVisited(v, make(map[uintptr]any))
}

func deepCopyWithVisited(v any, visited map[uintptr]any) any {
	if v == nil {
		return nil
	}
	switch value := v.(type) {
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128, string:
		return value
	case map[string]any:
		ptr := reflect.ValueOf(value).Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := make(map[string]any, len(value))
		visited[ptr] = result
		for k, item := range value {
			result[k] = deepCopyWithVisited(item, visited)
		}
		return result
	case State:
		ptr := reflect.ValueOf(value).Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := make(State, len(value))
		visited[ptr] = result
		for k, item := range value {
			result[k] = deepCopyWithVisited(item, visited)
		}
		return result
	case []any:
		ptr := reflect.ValueOf(value).Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := make([]any, len(value))
		visited[ptr] = result
		for i, item := range value {
			result[i] = deepCopyWithVisited(item, visited)
		}
		return result
	case []string:
		return append([]string(nil), value...)
	case []int:
		return append([]int(nil), value...)
	case []int64:
		return append([]int64(nil), value...)
	case []float64:
		return append([]float64(nil), value...)
	case []byte:
		return append([]byte(nil), value...)
	default:
		return deepCopyReflect(reflect.ValueOf(v), visited)
	}
}

// deepCopyReflect handles pointer, map, slice and struct kinds not covered by
// the fast paths above.
func deepCopyReflect(rv reflect.Value, visited map[uintptr]any) any {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return rv.Interface()
		}
		ptr := rv.Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := reflect.New(rv.Type().Elem())
		visited[ptr] = result.Interface()
		elem := deepCopyWithVisited(rv.Elem().Interface(), visited)
		if elem != nil {
			ev := reflect.ValueOf(elem)
			if ev.Type().AssignableTo(rv.Type().Elem()) {
				result.Elem().Set(ev)
			}
		}
		return result.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return rv.Interface()
		}
		ptr := rv.Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		visited[ptr] = result.Interface()
		iter := rv.MapRange()
		for iter.Next() {
			copied := deepCopyWithVisited(iter.Value().Interface(), visited)
			cv := reflect.ValueOf(copied)
			if copied == nil || !cv.Type().AssignableTo(rv.Type().Elem()) {
				result.SetMapIndex(iter.Key(), iter.Value())
				continue
			}
			result.SetMapIndex(iter.Key(), cv)
		}
		return result.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return rv.Interface()
		}
		ptr := rv.Pointer()
		if copied, ok := visited[ptr]; ok {
			return copied
		}
		result := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		visited[ptr] = result.Interface()
		for i := 0; i < rv.Len(); i++ {
			copied := deepCopyWithVisited(rv.Index(i).Interface(), visited)
			cv := reflect.ValueOf(copied)
			if copied == nil || !cv.Type().AssignableTo(rv.Type().Elem()) {
				result.Index(i).Set(rv.Index(i))
				continue
			}
			result.Index(i).Set(cv)
		}
		return result.Interface()
	default:
		return rv.Interface()
	}
}
