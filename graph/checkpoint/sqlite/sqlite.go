//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides SQLite-backed checkpoint storage for graph
// execution. Checkpoints and metadata are stored as JSON blobs, write
// values go through a pluggable serializer, and ordering relies on the
// time-sortable checkpoint IDs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-graph-go/graph"
)

const (
	createCheckpointsTable = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"lineage_id TEXT NOT NULL, " +
		"checkpoint_ns TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"parent_checkpoint_id TEXT, " +
		"ts INTEGER NOT NULL, " +
		"checkpoint_json BLOB NOT NULL, " +
		"metadata_json BLOB NOT NULL, " +
		"PRIMARY KEY (lineage_id, checkpoint_ns, checkpoint_id)" +
		")"

	createWritesTable = "CREATE TABLE IF NOT EXISTS checkpoint_writes (" +
		"lineage_id TEXT NOT NULL, " +
		"checkpoint_ns TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"task_id TEXT NOT NULL, " +
		"idx INTEGER NOT NULL, " +
		"channel TEXT NOT NULL, " +
		"value_type TEXT NOT NULL, " +
		"value_data BLOB NOT NULL, " +
		"task_path TEXT, " +
		"seq INTEGER NOT NULL, " +
		"PRIMARY KEY (lineage_id, checkpoint_ns, checkpoint_id, task_id, idx)" +
		")"

	insertCheckpointSQL = "INSERT OR REPLACE INTO checkpoints (" +
		"lineage_id, checkpoint_ns, checkpoint_id, parent_checkpoint_id, ts, " +
		"checkpoint_json, metadata_json) VALUES (?, ?, ?, ?, ?, ?, ?)"

	insertWriteSQL = "INSERT OR REPLACE INTO checkpoint_writes (" +
		"lineage_id, checkpoint_ns, checkpoint_id, task_id, idx, channel, value_type, value_data, task_path, seq) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	selectWritesSQL = "SELECT task_id, channel, value_type, value_data, seq FROM checkpoint_writes " +
		"WHERE lineage_id = ? AND checkpoint_ns = ? AND checkpoint_id = ? ORDER BY seq"

	deleteLineageCheckpointsSQL = "DELETE FROM checkpoints WHERE lineage_id = ?"
	deleteLineageWritesSQL      = "DELETE FROM checkpoint_writes WHERE lineage_id = ?"
)

// Saver is a SQLite-backed implementation of graph.CheckpointSaver. It
// expects an initialized *sql.DB with a SQLite driver and creates its
// schema on construction.
type Saver struct {
	db  *sql.DB
	ser graph.Serializer
}

var _ graph.CheckpointSaver = (*Saver)(nil)

// Option configures a Saver.
type Option func(*Saver)

// WithSerializer replaces the serializer used for write values.
func WithSerializer(ser graph.Serializer) Option {
	return func(s *Saver) {
		if ser != nil {
			s.ser = ser
		}
	}
}

// NewSaver creates a saver on the provided DB, creating tables if needed.
func NewSaver(db *sql.DB, opts ...Option) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(createCheckpointsTable); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := db.Exec(createWritesTable); err != nil {
		return nil, fmt.Errorf("create writes table: %w", err)
	}
	saver := &Saver{db: db, ser: graph.DefaultSerializer}
	for _, opt := range opts {
		opt(saver)
	}
	return saver, nil
}

// Get returns the checkpoint for the given config.
func (s *Saver) Get(ctx context.Context, config map[string]any) (*graph.Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, config)
	if err != nil || tuple == nil {
		return nil, err
	}
	return tuple.Checkpoint, nil
}

// GetTuple returns the checkpoint tuple for the given config. Without a
// checkpoint ID the latest checkpoint is returned; an empty namespace
// searches across all namespaces.
func (s *Saver) GetTuple(ctx context.Context, config map[string]any) (*graph.CheckpointTuple, error) {
	lineageID := graph.GetLineageID(config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	namespace := graph.GetNamespace(config)
	checkpointID := graph.GetCheckpointID(config)

	query := "SELECT checkpoint_id, checkpoint_ns, parent_checkpoint_id, checkpoint_json, metadata_json " +
		"FROM checkpoints WHERE lineage_id = ?"
	args := []any{lineageID}
	if namespace != "" {
		query += " AND checkpoint_ns = ?"
		args = append(args, namespace)
	}
	if checkpointID != "" {
		query += " AND checkpoint_id = ?"
		args = append(args, checkpointID)
	}
	query += " ORDER BY checkpoint_id DESC LIMIT 1"

	row := s.db.QueryRowContext(ctx, query, args...)
	var id, ns, parentID string
	var checkpointJSON, metadataJSON []byte
	if err := row.Scan(&id, &ns, &parentID, &checkpointJSON, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select checkpoint: %w", err)
	}
	return s.buildTuple(ctx, lineageID, ns, id, parentID, checkpointJSON, metadataJSON)
}

func (s *Saver) buildTuple(ctx context.Context, lineageID, namespace, checkpointID,
	parentID string, checkpointJSON, metadataJSON []byte) (*graph.CheckpointTuple, error) {
	var checkpoint graph.Checkpoint
	if err := json.Unmarshal(checkpointJSON, &checkpoint); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	var metadata graph.CheckpointMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	writes, err := s.loadWrites(ctx, lineageID, namespace, checkpointID)
	if err != nil {
		return nil, err
	}
	tuple := &graph.CheckpointTuple{
		Config:        graph.CreateCheckpointConfig(lineageID, checkpointID, namespace),
		Checkpoint:    &checkpoint,
		Metadata:      &metadata,
		PendingWrites: writes,
	}
	if parentID != "" {
		tuple.ParentConfig = graph.CreateCheckpointConfig(lineageID, parentID, namespace)
	}
	return tuple, nil
}

// List returns checkpoints for the lineage, newest first.
func (s *Saver) List(ctx context.Context, config map[string]any, filter *graph.CheckpointFilter) ([]*graph.CheckpointTuple, error) {
	lineageID := graph.GetLineageID(config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	namespace := graph.GetNamespace(config)

	query := "SELECT checkpoint_id, checkpoint_ns FROM checkpoints WHERE lineage_id = ?"
	args := []any{lineageID}
	if namespace != "" {
		query += " AND checkpoint_ns = ?"
		args = append(args, namespace)
	}
	if filter != nil {
		if beforeID := graph.GetCheckpointID(filter.Before); beforeID != "" {
			query += " AND checkpoint_id < ?"
			args = append(args, beforeID)
		}
	}
	query += " ORDER BY checkpoint_id DESC"
	if filter != nil && filter.Limit > 0 && len(filter.Metadata) == 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select checkpoints: %w", err)
	}
	defer rows.Close()

	var tuples []*graph.CheckpointTuple
	for rows.Next() {
		var checkpointID, ns string
		if err := rows.Scan(&checkpointID, &ns); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		tuple, err := s.GetTuple(ctx, graph.CreateCheckpointConfig(lineageID, checkpointID, ns))
		if err != nil {
			return nil, err
		}
		if tuple == nil || !matchesMetadata(tuple, filter) {
			continue
		}
		tuples = append(tuples, tuple)
		if filter != nil && filter.Limit > 0 && len(tuples) >= filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter checkpoints: %w", err)
	}
	return tuples, nil
}

func matchesMetadata(tuple *graph.CheckpointTuple, filter *graph.CheckpointFilter) bool {
	if filter == nil || len(filter.Metadata) == 0 {
		return true
	}
	if tuple.Metadata == nil || tuple.Metadata.Extra == nil {
		return false
	}
	for key, value := range filter.Metadata {
		if tuple.Metadata.Extra[key] != value {
			return false
		}
	}
	return true
}

// Put stores a checkpoint and returns the config addressing it.
func (s *Saver) Put(ctx context.Context, req graph.PutRequest) (map[string]any, error) {
	lineageID := graph.GetLineageID(req.Config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	if req.Checkpoint == nil {
		return nil, errors.New("checkpoint cannot be nil")
	}
	namespace := graph.GetNamespace(req.Config)
	if err := s.insertCheckpoint(ctx, s.db.ExecContext, lineageID, namespace, req.Checkpoint, req.Metadata); err != nil {
		return nil, err
	}
	return graph.CreateCheckpointConfig(lineageID, req.Checkpoint.ID, namespace), nil
}

// PutWrites stores mid-step writes linked to a checkpoint.
func (s *Saver) PutWrites(ctx context.Context, req graph.PutWritesRequest) error {
	lineageID := graph.GetLineageID(req.Config)
	checkpointID := graph.GetCheckpointID(req.Config)
	if lineageID == "" || checkpointID == "" {
		return graph.ErrLineageIDAndCheckpointIDRequired
	}
	namespace := graph.GetNamespace(req.Config)
	for idx, write := range req.Writes {
		taskID := write.TaskID
		if req.TaskID != "" {
			taskID = req.TaskID
		}
		if err := s.insertWrite(ctx, s.db.ExecContext, lineageID, namespace, checkpointID,
			taskID, idx, req.TaskPath, write); err != nil {
			return err
		}
	}
	return nil
}

// PutFull atomically stores a checkpoint with its pending writes.
func (s *Saver) PutFull(ctx context.Context, req graph.PutFullRequest) (map[string]any, error) {
	lineageID := graph.GetLineageID(req.Config)
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	if req.Checkpoint == nil {
		return nil, errors.New("checkpoint cannot be nil")
	}
	namespace := graph.GetNamespace(req.Config)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertCheckpoint(ctx, tx.ExecContext, lineageID, namespace, req.Checkpoint, req.Metadata); err != nil {
		return nil, err
	}
	for idx, write := range req.PendingWrites {
		if err := s.insertWrite(ctx, tx.ExecContext, lineageID, namespace, req.Checkpoint.ID,
			write.TaskID, idx, "", write); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return graph.CreateCheckpointConfig(lineageID, req.Checkpoint.ID, namespace), nil
}

// DeleteLineage deletes all checkpoints and writes for the lineage.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	if lineageID == "" {
		return graph.ErrLineageIDRequired
	}
	if _, err := s.db.ExecContext(ctx, deleteLineageCheckpointsSQL, lineageID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, deleteLineageWritesSQL, lineageID); err != nil {
		return fmt.Errorf("delete writes: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Saver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func (s *Saver) insertCheckpoint(ctx context.Context, exec execFunc, lineageID, namespace string,
	checkpoint *graph.Checkpoint, metadata *graph.CheckpointMetadata) error {
	checkpointJSON, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if metadata == nil {
		metadata = graph.NewCheckpointMetadata(graph.SourceLoop, 0)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = exec(ctx, insertCheckpointSQL,
		lineageID, namespace, checkpoint.ID, checkpoint.ParentCheckpointID,
		checkpoint.Timestamp.UnixNano(), checkpointJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *Saver) insertWrite(ctx context.Context, exec execFunc, lineageID, namespace, checkpointID,
	taskID string, idx int, taskPath string, write graph.PendingWrite) error {
	typeTag, valueData, err := s.ser.Dumps(write.Value)
	if err != nil {
		return fmt.Errorf("serialize write value: %w", err)
	}
	seq := write.Sequence
	if seq == 0 {
		seq = int64(idx)
	}
	_, err = exec(ctx, insertWriteSQL,
		lineageID, namespace, checkpointID, taskID, idx, write.Channel, typeTag, valueData, taskPath, seq)
	if err != nil {
		return fmt.Errorf("insert write: %w", err)
	}
	return nil
}

func (s *Saver) loadWrites(ctx context.Context, lineageID, namespace, checkpointID string) ([]graph.PendingWrite, error) {
	rows, err := s.db.QueryContext(ctx, selectWritesSQL, lineageID, namespace, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("select writes: %w", err)
	}
	defer rows.Close()
	var writes []graph.PendingWrite
	for rows.Next() {
		var taskID, channelName, typeTag string
		var valueData []byte
		var seq int64
		if err := rows.Scan(&taskID, &channelName, &typeTag, &valueData, &seq); err != nil {
			return nil, fmt.Errorf("scan write: %w", err)
		}
		value, err := s.ser.Loads(typeTag, valueData)
		if err != nil {
			return nil, fmt.Errorf("deserialize write: %w", err)
		}
		writes = append(writes, graph.PendingWrite{
			TaskID:   taskID,
			Channel:  channelName,
			Value:    value,
			Sequence: seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter writes: %w", err)
	}
	return writes, nil
}
