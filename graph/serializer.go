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
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer converts channel values to a type-tagged binary form for
// persistence. Savers are agnostic to the concrete encoding as long as
// Dumps followed by Loads with the same tag is lossless.
type Serializer interface {
	// Dumps encodes a value, returning the tag identifying the encoding.
	Dumps(v any) (typeTag string, data []byte, err error)
	// Loads decodes data previously produced by Dumps under typeTag.
	Loads(typeTag string, data []byte) (any, error)
}

// JSONTypeTag identifies values encoded by JSONSerializer.
const JSONTypeTag = "json"

// JSONSerializer encodes values as JSON. Numbers decode as json.Number so
// integer channel values survive a round trip without float conversion.
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

// Dumps implements Serializer.
func (JSONSerializer) Dumps(v any) (string, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("marshal value: %w", err)
	}
	return JSONTypeTag, data, nil
}

// Loads implements Serializer.
func (JSONSerializer) Loads(typeTag string, data []byte) (any, error) {
	if typeTag != JSONTypeTag {
		return nil, fmt.Errorf("unsupported type tag %q", typeTag)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// DefaultSerializer is used by savers unless one is configured explicitly.
var DefaultSerializer Serializer = JSONSerializer{}
