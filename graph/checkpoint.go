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
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

const (
	// CheckpointVersion is the current version of the checkpoint format.
	CheckpointVersion = 1

	// DefaultCheckpointNamespace is the default namespace for checkpoints.
	DefaultCheckpointNamespace = ""
	// DefaultMaxCheckpointsPerLineage is the default maximum number of
	// checkpoints per lineage.
	DefaultMaxCheckpointsPerLineage = 100
)

// Checkpoint is a snapshot of all channel state plus scheduling bookkeeping
// at a step boundary.
type Checkpoint struct {
	// Version is the version of the checkpoint format.
	Version int `json:"v"`
	// ID is the time-sortable unique identifier for this checkpoint.
	ID string `json:"id"`
	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"ts"`
	// ChannelValues contains the serialized channel snapshots.
	ChannelValues map[string]any `json:"channel_values"`
	// ChannelVersions contains the versions of channels. Versions only ever
	// increase across checkpoints of a run.
	ChannelVersions map[string]int64 `json:"channel_versions"`
	// VersionsSeen tracks, per node, the last channel version that node has
	// already reacted to.
	VersionsSeen map[string]map[string]int64 `json:"versions_seen"`
	// PendingSends are dynamically routed task descriptors awaiting
	// execution in the next step.
	PendingSends []PendingSend `json:"pending_sends,omitempty"`
	// ParentCheckpointID is the ID of the parent checkpoint.
	ParentCheckpointID string `json:"parent_checkpoint_id,omitempty"`
	// UpdatedChannels lists channels updated in the step that produced this
	// checkpoint.
	UpdatedChannels []string `json:"updated_channels,omitempty"`
	// InterruptState describes an interrupted execution, if any.
	InterruptState *InterruptState `json:"interrupt_state,omitempty"`
	// NextNodes contains the nodes about to execute when the checkpoint was
	// taken (debug/observability only).
	NextNodes []string `json:"next_nodes,omitempty"`
}

// InterruptState represents the state of an interrupted execution.
type InterruptState struct {
	// NodeID is the node where execution was interrupted.
	NodeID string `json:"node_id"`
	// TaskID is the task that was interrupted.
	TaskID string `json:"task_id"`
	// Key is the interrupt key resume values are addressed to.
	Key string `json:"key,omitempty"`
	// InterruptValue is the prompt value passed to Interrupt.
	InterruptValue any `json:"interrupt_value"`
	// ResumeValues contains values to resume execution with.
	ResumeValues []any `json:"resume_values,omitempty"`
	// Step is the step number when the interrupt occurred.
	Step int `json:"step"`
}

// PendingSend is a dynamically routed task descriptor: the target node is
// executed once in the very next step with the literal payload as input,
// independent of static edges.
type PendingSend struct {
	// Node is the target node.
	Node string `json:"node"`
	// Input is the payload delivered as the task's input.
	Input any `json:"input"`
	// TaskID is the task that emitted this send.
	TaskID string `json:"task_id,omitempty"`
}

// CheckpointMetadata contains metadata about a checkpoint.
type CheckpointMetadata struct {
	// Source indicates how the checkpoint was created: input, loop or
	// interrupt.
	Source string `json:"source"`
	// Step is the step number (-1 for input, 0+ for loop steps).
	Step int `json:"step"`
	// Parents maps checkpoint namespaces to parent checkpoint IDs.
	Parents map[string]string `json:"parents"`
	// Extra contains additional metadata fields.
	Extra map[string]any `json:"extra,omitempty"`
	// IsResuming indicates the checkpoint is being resumed from.
	IsResuming bool `json:"is_resuming,omitempty"`
}

// CheckpointTuple wraps a checkpoint with its configuration and metadata.
type CheckpointTuple struct {
	// Config contains the configuration used to create this checkpoint.
	Config map[string]any `json:"config"`
	// Checkpoint is the actual checkpoint data.
	Checkpoint *Checkpoint `json:"checkpoint"`
	// Metadata contains additional checkpoint information.
	Metadata *CheckpointMetadata `json:"metadata"`
	// ParentConfig is the configuration of the parent checkpoint.
	ParentConfig map[string]any `json:"parent_config,omitempty"`
	// PendingWrites contains writes persisted mid-step, to be replayed
	// instead of redone after a restart.
	PendingWrites []PendingWrite `json:"pending_writes,omitempty"`
}

// PendingWrite is a single (channel, value) pair buffered by a task. Writes
// addressed to the special channels in keys.go are routing markers.
type PendingWrite struct {
	// TaskID identifies the task that created this write. Writes persisted
	// mid-step carry the node ID so they can be replayed after a restart.
	TaskID string `json:"task_id"`
	// Channel is the channel being written to.
	Channel string `json:"channel"`
	// Value is the value being written.
	Value any `json:"value"`
	// Sequence is the global sequence number for deterministic replay.
	Sequence int64 `json:"sequence"`
}

// PutRequest contains all data needed to store a checkpoint.
type PutRequest struct {
	Config      map[string]any
	Checkpoint  *Checkpoint
	Metadata    *CheckpointMetadata
	NewVersions map[string]int64
}

// PutWritesRequest contains all data needed to store mid-step writes.
type PutWritesRequest struct {
	Config   map[string]any
	Writes   []PendingWrite
	TaskID   string
	TaskPath string
}

// PutFullRequest contains all data needed to atomically store a checkpoint
// with its writes.
type PutFullRequest struct {
	Config        map[string]any
	Checkpoint    *Checkpoint
	Metadata      *CheckpointMetadata
	NewVersions   map[string]int64
	PendingWrites []PendingWrite
}

// CheckpointFilter defines filtering criteria for listing checkpoints.
type CheckpointFilter struct {
	// Before limits results to checkpoints created before this config.
	Before map[string]any `json:"before,omitempty"`
	// Limit is the maximum number of checkpoints to return.
	Limit int `json:"limit,omitempty"`
	// Metadata filters checkpoints by metadata fields.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CheckpointSaver defines the storage contract for checkpoint persistence.
// The engine calls Put once per committed step and PutWrites for writes
// produced before an interrupt, so they survive a process restart.
type CheckpointSaver interface {
	// Get retrieves a checkpoint by configuration.
	Get(ctx context.Context, config map[string]any) (*Checkpoint, error)
	// GetTuple retrieves a checkpoint tuple by configuration.
	GetTuple(ctx context.Context, config map[string]any) (*CheckpointTuple, error)
	// List retrieves checkpoints matching criteria, newest first.
	List(ctx context.Context, config map[string]any, filter *CheckpointFilter) ([]*CheckpointTuple, error)
	// Put stores a checkpoint and returns the config addressing it.
	Put(ctx context.Context, req PutRequest) (map[string]any, error)
	// PutWrites stores mid-step writes linked to a checkpoint.
	PutWrites(ctx context.Context, req PutWritesRequest) error
	// PutFull atomically stores a checkpoint with its pending writes.
	PutFull(ctx context.Context, req PutFullRequest) (map[string]any, error)
	// DeleteLineage removes all checkpoints for a lineage.
	DeleteLineage(ctx context.Context, lineageID string) error
	// Close releases resources held by the saver.
	Close() error
}

// CheckpointConfig provides a structured way to build checkpoint
// addressing configuration.
type CheckpointConfig struct {
	// LineageID is the unique identifier for the run lineage.
	LineageID string
	// CheckpointID is the specific checkpoint to retrieve.
	CheckpointID string
	// Namespace is the checkpoint namespace.
	Namespace string
	// ResumeMap maps interrupt keys to resume values.
	ResumeMap map[string]any
	// Extra contains additional configuration fields.
	Extra map[string]any
}

// NewCheckpoint creates an empty checkpoint. IDs are UUIDv7 so lexicographic
// order follows creation time.
func NewCheckpoint(
	channelValues map[string]any,
	channelVersions map[string]int64,
	versionsSeen map[string]map[string]int64,
) *Checkpoint {
	if channelValues == nil {
		channelValues = make(map[string]any)
	}
	if channelVersions == nil {
		channelVersions = make(map[string]int64)
	}
	if versionsSeen == nil {
		versionsSeen = make(map[string]map[string]int64)
	}
	return &Checkpoint{
		Version:         CheckpointVersion,
		ID:              newCheckpointID(),
		Timestamp:       time.Now().UTC(),
		ChannelValues:   channelValues,
		ChannelVersions: channelVersions,
		VersionsSeen:    versionsSeen,
	}
}

func newCheckpointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4.
		return uuid.New().String()
	}
	return id.String()
}

// NewCheckpointMetadata creates new checkpoint metadata.
func NewCheckpointMetadata(source string, step int) *CheckpointMetadata {
	return &CheckpointMetadata{
		Source:  source,
		Step:    step,
		Parents: make(map[string]string),
		Extra:   make(map[string]any),
	}
}

// NewCheckpointConfig creates a new checkpoint configuration.
func NewCheckpointConfig(lineageID string) *CheckpointConfig {
	return &CheckpointConfig{
		LineageID: lineageID,
		Namespace: DefaultCheckpointNamespace,
		ResumeMap: make(map[string]any),
		Extra:     make(map[string]any),
	}
}

// WithCheckpointID sets the checkpoint ID.
func (c *CheckpointConfig) WithCheckpointID(checkpointID string) *CheckpointConfig {
	c.CheckpointID = checkpointID
	return c
}

// WithNamespace sets the namespace.
func (c *CheckpointConfig) WithNamespace(namespace string) *CheckpointConfig {
	c.Namespace = namespace
	return c
}

// WithResumeMap sets the resume map.
func (c *CheckpointConfig) WithResumeMap(resumeMap map[string]any) *CheckpointConfig {
	c.ResumeMap = resumeMap
	return c
}

// ToMap converts the config to the map form consumed by savers.
func (c *CheckpointConfig) ToMap() map[string]any {
	configurable := map[string]any{
		CfgKeyLineageID:    c.LineageID,
		CfgKeyCheckpointNS: c.Namespace,
	}
	if c.CheckpointID != "" {
		configurable[CfgKeyCheckpointID] = c.CheckpointID
	}
	if len(c.ResumeMap) > 0 {
		configurable[CfgKeyResumeMap] = c.ResumeMap
	}
	config := map[string]any{CfgKeyConfigurable: configurable}
	maps.Copy(config, c.Extra)
	return config
}

// CreateCheckpointConfig builds the map form directly.
func CreateCheckpointConfig(lineageID, checkpointID, namespace string) map[string]any {
	config := NewCheckpointConfig(lineageID)
	if checkpointID != "" {
		config.WithCheckpointID(checkpointID)
	}
	config.WithNamespace(namespace)
	return config.ToMap()
}

// GetCheckpointID extracts the checkpoint ID from configuration.
func GetCheckpointID(config map[string]any) string {
	return configurableString(config, CfgKeyCheckpointID, "")
}

// GetLineageID extracts the lineage ID from configuration.
func GetLineageID(config map[string]any) string {
	return configurableString(config, CfgKeyLineageID, "")
}

// GetNamespace extracts the namespace from configuration.
func GetNamespace(config map[string]any) string {
	return configurableString(config, CfgKeyCheckpointNS, DefaultCheckpointNamespace)
}

// GetResumeMap extracts the resume map from configuration.
func GetResumeMap(config map[string]any) map[string]any {
	if configurable, ok := config[CfgKeyConfigurable].(map[string]any); ok {
		if resumeMap, ok := configurable[CfgKeyResumeMap].(map[string]any); ok {
			return resumeMap
		}
	}
	return nil
}

func configurableString(config map[string]any, key, fallback string) string {
	if configurable, ok := config[CfgKeyConfigurable].(map[string]any); ok {
		if value, ok := configurable[key].(string); ok {
			return value
		}
	}
	return fallback
}

// MaxChannelVersion returns the highest version across all channels. All
// channels written in the same step receive MaxChannelVersion+1, so
// ordering is resolvable at step granularity only.
func (c *Checkpoint) MaxChannelVersion() int64 {
	var maxVersion int64
	for _, v := range c.ChannelVersions {
		if v > maxVersion {
			maxVersion = v
		}
	}
	return maxVersion
}

// SeenVersion returns the last version of a channel a node has reacted to,
// zero when the node has never seen it.
func (c *Checkpoint) SeenVersion(nodeID, channelName string) int64 {
	if seen, ok := c.VersionsSeen[nodeID]; ok {
		return seen[channelName]
	}
	return 0
}

// MarkSeen records that a node has reacted to a channel version.
func (c *Checkpoint) MarkSeen(nodeID, channelName string, version int64) {
	if c.VersionsSeen == nil {
		c.VersionsSeen = make(map[string]map[string]int64)
	}
	seen, ok := c.VersionsSeen[nodeID]
	if !ok {
		seen = make(map[string]int64)
		c.VersionsSeen[nodeID] = seen
	}
	if version > seen[channelName] {
		seen[channelName] = version
	}
}

// Copy creates a deep copy of the checkpoint, preserving the ID.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	channelVersions := make(map[string]int64, len(c.ChannelVersions))
	for k, v := range c.ChannelVersions {
		channelVersions[k] = v
	}
	versionsSeen := make(map[string]map[string]int64, len(c.VersionsSeen))
	for node, seen := range c.VersionsSeen {
		inner := make(map[string]int64, len(seen))
		for ch, v := range seen {
			inner[ch] = v
		}
		versionsSeen[node] = inner
	}
	pendingSends := make([]PendingSend, len(c.PendingSends))
	for i, send := range c.PendingSends {
		pendingSends[i] = PendingSend{
			Node:   send.Node,
			Input:  deepCopyAny(send.Input),
			TaskID: send.TaskID,
		}
	}
	var interruptState *InterruptState
	if c.InterruptState != nil {
		interruptState = &InterruptState{
			NodeID:         c.InterruptState.NodeID,
			TaskID:         c.InterruptState.TaskID,
			Key:            c.InterruptState.Key,
			InterruptValue: c.InterruptState.InterruptValue,
			Step:           c.InterruptState.Step,
		}
		if c.InterruptState.ResumeValues != nil {
			interruptState.ResumeValues = make([]any, len(c.InterruptState.ResumeValues))
			copy(interruptState.ResumeValues, c.InterruptState.ResumeValues)
		}
	}
	return &Checkpoint{
		Version:            c.Version,
		ID:                 c.ID,
		Timestamp:          c.Timestamp,
		ChannelValues:      deepCopyValues(c.ChannelValues),
		ChannelVersions:    channelVersions,
		VersionsSeen:       versionsSeen,
		PendingSends:       pendingSends,
		ParentCheckpointID: c.ParentCheckpointID,
		UpdatedChannels:    append([]string(nil), c.UpdatedChannels...),
		InterruptState:     interruptState,
		NextNodes:          append([]string(nil), c.NextNodes...),
	}
}

// Fork creates a copy with a new ID whose parent is the receiver. Each
// step's scheduling pass starts from a fork of the last committed
// checkpoint.
func (c *Checkpoint) Fork() *Checkpoint {
	if c == nil {
		return nil
	}
	forked := c.Copy()
	forked.ParentCheckpointID = c.ID
	forked.ID = newCheckpointID()
	forked.Timestamp = time.Now().UTC()
	forked.UpdatedChannels = nil
	forked.NextNodes = nil
	return forked
}

// IsInterrupted checks if the checkpoint represents an interrupted
// execution.
func (c *Checkpoint) IsInterrupted() bool {
	return c.InterruptState != nil && c.InterruptState.NodeID != ""
}

// AddResumeValue appends a resume value for the interrupted execution.
func (c *Checkpoint) AddResumeValue(value any) {
	if c.InterruptState == nil {
		c.InterruptState = &InterruptState{}
	}
	c.InterruptState.ResumeValues = append(c.InterruptState.ResumeValues, value)
}

// ClearInterruptState clears the interrupt state.
func (c *Checkpoint) ClearInterruptState() {
	c.InterruptState = nil
}

// CheckpointManager provides high-level checkpoint management on top of a
// saver.
type CheckpointManager struct {
	saver CheckpointSaver
}

// NewCheckpointManager creates a new checkpoint manager.
func NewCheckpointManager(saver CheckpointSaver) *CheckpointManager {
	return &CheckpointManager{saver: saver}
}

// Latest returns the most recent checkpoint for a lineage and namespace,
// nil when none exists.
func (cm *CheckpointManager) Latest(ctx context.Context, lineageID, namespace string) (*CheckpointTuple, error) {
	if cm.saver == nil {
		return nil, fmt.Errorf("checkpoint saver is not configured")
	}
	config := CreateCheckpointConfig(lineageID, "", namespace)
	tuples, err := cm.saver.List(ctx, config, &CheckpointFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	return tuples[0], nil
}

// Goto retrieves a specific checkpoint by ID.
func (cm *CheckpointManager) Goto(ctx context.Context, lineageID, namespace, checkpointID string) (*CheckpointTuple, error) {
	if cm.saver == nil {
		return nil, fmt.Errorf("checkpoint saver is not configured")
	}
	config := CreateCheckpointConfig(lineageID, checkpointID, namespace)
	return cm.saver.GetTuple(ctx, config)
}

// GetTuple retrieves a checkpoint tuple by configuration.
func (cm *CheckpointManager) GetTuple(ctx context.Context, config map[string]any) (*CheckpointTuple, error) {
	if cm.saver == nil {
		return nil, fmt.Errorf("checkpoint saver is not configured")
	}
	return cm.saver.GetTuple(ctx, config)
}

// ListCheckpoints lists checkpoints for a lineage.
func (cm *CheckpointManager) ListCheckpoints(ctx context.Context, config map[string]any, filter *CheckpointFilter) ([]*CheckpointTuple, error) {
	if cm.saver == nil {
		return nil, fmt.Errorf("checkpoint saver is not configured")
	}
	return cm.saver.List(ctx, config, filter)
}

// DeleteLineage removes all checkpoints for a lineage.
func (cm *CheckpointManager) DeleteLineage(ctx context.Context, lineageID string) error {
	if cm.saver == nil {
		return fmt.Errorf("checkpoint saver is not configured")
	}
	return cm.saver.DeleteLineage(ctx, lineageID)
}

// ResumeFromLatest verifies that a checkpoint exists for the lineage and
// builds the input state for resuming the run. The returned state carries
// only the resume command: channel values are restored from the checkpoint
// itself when the run restarts, so seeding them here as input would commit
// them a second time.
func (cm *CheckpointManager) ResumeFromLatest(ctx context.Context, lineageID, namespace string, cmd *Command) (State, error) {
	latest, err := cm.Latest(ctx, lineageID, namespace)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("no checkpoint found for lineage %s in namespace %q: %w",
			lineageID, namespace, ErrCheckpointNotFound)
	}
	state := make(State)
	if cmd != nil {
		state[StateKeyCommand] = cmd
	}
	return state, nil
}

// deepCopyValues copies a channel-values map without changing value types.
func deepCopyValues(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyAny(v)
	}
	return dst
}
