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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-graph-go/graph/internal/channel"
	"trpc.group/trpc-go/trpc-graph-go/log"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/trace"
)

// Default executor tuning.
const (
	defaultChannelBufferSize = 256
	defaultMaxSteps          = 100
	defaultParallelism       = 16
)

// Executor runs a compiled graph with bulk-synchronous semantics: each step
// plans tasks from channel versions, executes them concurrently against an
// immutable snapshot, and commits all buffered writes at once. Steps are
// strictly sequential; a step only starts after the previous one committed.
type Executor struct {
	graph           *Graph
	saver           CheckpointSaver
	maxSteps        int
	stepTimeout     time.Duration
	bufferSize      int
	parallelism     int
	interruptBefore map[string]bool
	interruptAfter  map[string]bool
	streamModes     map[StreamMode]bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCheckpointSaver sets the checkpoint storage backend. Without one the
// run is purely in-memory and cannot be resumed.
func WithCheckpointSaver(saver CheckpointSaver) ExecutorOption {
	return func(e *Executor) {
		e.saver = saver
	}
}

// WithMaxSteps limits how many steps a run may take before failing with
// LimitExceededError.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(e *Executor) {
		if maxSteps > 0 {
			e.maxSteps = maxSteps
		}
	}
}

// WithStepTimeout bounds the wall-clock duration of each step. A step that
// overruns is aborted without committing.
func WithStepTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stepTimeout = timeout
	}
}

// WithChannelBufferSize sets the event channel buffer size.
func WithChannelBufferSize(size int) ExecutorOption {
	return func(e *Executor) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// WithParallelism caps how many tasks of a step run concurrently.
func WithParallelism(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithInterruptBefore pauses execution before the named nodes run.
// InterruptAll matches every node.
func WithInterruptBefore(nodeIDs ...string) ExecutorOption {
	return func(e *Executor) {
		for _, id := range nodeIDs {
			e.interruptBefore[id] = true
		}
	}
}

// WithInterruptAfter pauses execution after the named nodes committed.
func WithInterruptAfter(nodeIDs ...string) ExecutorOption {
	return func(e *Executor) {
		for _, id := range nodeIDs {
			e.interruptAfter[id] = true
		}
	}
}

// WithStreamModes selects which event projections are emitted. Defaults to
// values only.
func WithStreamModes(modes ...StreamMode) ExecutorOption {
	return func(e *Executor) {
		e.streamModes = make(map[StreamMode]bool, len(modes))
		for _, mode := range modes {
			e.streamModes[mode] = true
		}
	}
}

// NewExecutor creates an executor for a compiled graph.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	e := &Executor{
		graph:           g,
		maxSteps:        defaultMaxSteps,
		bufferSize:      defaultChannelBufferSize,
		parallelism:     defaultParallelism,
		interruptBefore: make(map[string]bool),
		interruptAfter:  make(map[string]bool),
		streamModes:     map[StreamMode]bool{StreamModeValues: true},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute starts a run and returns its event stream. The stream is closed
// when the run finishes, fails, or is interrupted. config addresses the
// checkpoint lineage (see CheckpointConfig); pass nil for an ephemeral run.
func (e *Executor) Execute(ctx context.Context, input State, config map[string]any) (<-chan *Event, error) {
	if config == nil {
		config = make(map[string]any)
	}
	events := make(chan *Event, e.bufferSize)
	go func() {
		defer close(events)
		e.run(ctx, input, config, events)
	}()
	return events, nil
}

// Invoke runs the graph to completion and returns the final state. An
// interrupted run returns the folded state so far together with the
// InterruptError.
func (e *Executor) Invoke(ctx context.Context, input State, config map[string]any) (State, error) {
	events, err := e.Execute(ctx, input, config)
	if err != nil {
		return nil, err
	}
	var final State
	var runErr error
	for event := range events {
		switch event.Type {
		case EventTypeValues, EventTypeDone:
			if event.State != nil {
				final = event.State
			}
		case EventTypeInterrupt:
			runErr = event.Interrupt
		case EventTypeError:
			runErr = event.Err
		}
	}
	return final, runErr
}

// execution holds the mutable state of one run.
type execution struct {
	executor *Executor
	graph    *Graph
	planner  *planner
	channels *channel.Set
	// checkpoint is the last committed checkpoint. Planning and commit
	// happen on a fork so an aborted step never touches it.
	checkpoint *Checkpoint
	config     map[string]any
	events     chan<- *Event
	// extra is merged into every task input: resume values and their
	// consumption bookkeeping.
	extra State
	// values is the folded full state, maintained for values/done events.
	values State
	// replayWrites holds writes persisted before an interrupt, keyed by
	// replayKey. Consumed on the first re-executed step.
	replayWrites map[string][]PendingWrite
	// resumedInterrupt suppresses the before-node gate for the step being
	// re-entered after an interrupt.
	resumedInterrupt bool
	step             int
	sequence         atomic.Int64
}

func (e *Executor) run(ctx context.Context, input State, config map[string]any, events chan<- *Event) {
	ctx, span := trace.Tracer.Start(ctx, "graph.execute",
		oteltrace.WithAttributes(attribute.String("graph.lineage_id", GetLineageID(config))))
	defer span.End()

	exec, err := e.prepare(ctx, input, config, events)
	if err != nil {
		emit(ctx, events, errorEvent(-1, err))
		return
	}
	exec.loop(ctx)
}

// prepare restores or seeds the run's channels and checkpoint.
func (e *Executor) prepare(ctx context.Context, input State, config map[string]any, events chan<- *Event) (*execution, error) {
	var command *Command
	if input != nil {
		if cmd, ok := input[StateKeyCommand].(*Command); ok {
			command = cmd
			input = input.Clone()
			delete(input, StateKeyCommand)
		}
	}
	if e.saver != nil && GetLineageID(config) == "" {
		config = CreateCheckpointConfig(uuid.New().String(), "", GetNamespace(config))
	}

	exec := &execution{
		executor: e,
		graph:    e.graph,
		planner:  newPlanner(e.graph),
		config:   config,
		events:   events,
		extra:    make(State),
	}

	tuple, err := e.loadTuple(ctx, config)
	if err != nil {
		return nil, err
	}
	if tuple != nil {
		exec.checkpoint = tuple.Checkpoint.Copy()
		exec.channels = e.graph.restoreChannels(exec.checkpoint.ChannelValues)
		exec.step = tuple.Metadata.Step + 1
		if tuple.Metadata.Source == SourceInterrupt {
			// The interrupted step never committed; run it again.
			exec.step = tuple.Metadata.Step
			exec.resumedInterrupt = true
		}
		if len(tuple.PendingWrites) > 0 {
			exec.replayWrites = make(map[string][]PendingWrite)
			for _, write := range tuple.PendingWrites {
				exec.replayWrites[write.TaskID] = append(exec.replayWrites[write.TaskID], write)
			}
		}
	} else {
		exec.checkpoint = NewCheckpoint(nil, nil, nil)
		exec.channels = e.graph.newChannelSet()
	}

	exec.prepareResume(command)

	if err := exec.seed(ctx, input, command, tuple == nil); err != nil {
		return nil, err
	}
	exec.values = exec.readFields()
	return exec, nil
}

func (e *Executor) loadTuple(ctx context.Context, config map[string]any) (*CheckpointTuple, error) {
	if e.saver == nil || GetLineageID(config) == "" {
		return nil, nil
	}
	if GetCheckpointID(config) != "" {
		tuple, err := e.saver.GetTuple(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if tuple == nil {
			return nil, ErrCheckpointNotFound
		}
		return tuple, nil
	}
	tuples, err := e.saver.List(ctx, config, &CheckpointFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	return tuples[0], nil
}

// prepareResume maps resume values onto the pending interrupt and clears
// the interrupt marker.
func (x *execution) prepareResume(command *Command) {
	resumeMap := make(map[string]any)
	for k, v := range GetResumeMap(x.config) {
		resumeMap[k] = v
	}
	if command != nil {
		for k, v := range command.ResumeMap {
			resumeMap[k] = v
		}
		if command.Resume != nil && x.checkpoint.InterruptState != nil {
			resumeMap[x.checkpoint.InterruptState.Key] = command.Resume
		}
	}
	if len(resumeMap) > 0 {
		// A single store shared across all task inputs: consumption must
		// survive steps, and sibling tasks may consume concurrently.
		x.extra[StateKeyResumeMap] = newResumeStore(resumeMap)
	}
	x.checkpoint.ClearInterruptState()
}

// seed commits the caller's input (or a command's update and routing) as
// the input step, so the first planned step sees it through channels like
// any other write.
func (x *execution) seed(ctx context.Context, input State, command *Command, fresh bool) error {
	var entries []channelWriteEntry
	if len(input) > 0 {
		entries = append(entries, stateWrites(input)...)
		entries = append(entries, channelWriteEntry{Channel: ChannelInputTrigger, Value: SourceInput})
	}
	if command != nil {
		entries = append(entries, commandWrites(Start, command)...)
	}
	if len(entries) == 0 {
		if fresh {
			return errors.New("input cannot be empty for a fresh run")
		}
		return nil
	}
	writes := make([]PendingWrite, 0, len(entries))
	for _, entry := range entries {
		writes = append(writes, PendingWrite{
			TaskID:   Start,
			Channel:  entry.Channel,
			Value:    entry.Value,
			Sequence: x.sequence.Add(1),
		})
	}
	if _, err := commitWrites(x.checkpoint, x.channels, writes); err != nil {
		return err
	}
	x.saveCheckpoint(ctx, SourceInput, x.step-1, nil)
	return nil
}

// readFields reads every non-empty schema field channel into a state.
func (x *execution) readFields() State {
	state := make(State)
	for _, name := range x.graph.Schema().FieldNames() {
		ch, ok := x.channels.Get(name)
		if !ok {
			continue
		}
		if value, err := ch.Get(); err == nil {
			state[name] = deepCopyAny(value)
		}
	}
	return state
}

func (x *execution) loop(ctx context.Context) {
	for i := 0; i < x.executor.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			x.emitError(ctx, &StepAbortedError{Step: x.step, Cause: err})
			return
		}
		fork := x.checkpoint.Fork()
		tasks, err := x.planner.Plan(fork, x.channels, x.extra)
		if err != nil {
			x.emitError(ctx, err)
			return
		}
		if len(tasks) == 0 {
			emit(ctx, x.events, x.doneEvent())
			return
		}
		if task := x.interruptBeforeTask(tasks); task != nil {
			x.interruptRun(ctx, &InterruptError{
				NodeID: task.NodeID,
				TaskID: task.ID,
				Step:   x.step,
				Value:  fmt.Sprintf("paused before node %s", task.NodeID),
			}, task.Triggers, nil)
			return
		}
		writes, execErr := x.executeTasks(ctx, tasks)
		if execErr != nil {
			x.handleExecError(ctx, execErr, tasks)
			return
		}
		result, err := commitWrites(fork, x.channels, writes)
		if err != nil {
			x.emitError(ctx, err)
			return
		}
		fork.NextNodes = nil
		x.checkpoint = fork
		x.saveCheckpoint(ctx, SourceLoop, x.step, nil)
		x.emitCommitted(ctx, tasks, result)
		if nodeID := x.interruptAfterNode(tasks); nodeID != "" {
			x.step++
			x.interruptRun(ctx, &InterruptError{
				NodeID: nodeID,
				Step:   x.step,
				Value:  fmt.Sprintf("paused after node %s", nodeID),
			}, nil, nil)
			return
		}
		x.step++
		x.resumedInterrupt = false
		x.replayWrites = nil
	}
	x.emitError(ctx, &LimitExceededError{Limit: x.executor.maxSteps})
}

// interruptBeforeTask returns the first planned task gated by an
// interrupt-before rule, nil when the step may proceed. A step re-entered
// after an interrupt is never gated again.
func (x *execution) interruptBeforeTask(tasks []*Task) *Task {
	if len(x.executor.interruptBefore) == 0 || x.resumedInterrupt {
		return nil
	}
	for _, task := range tasks {
		if !x.executor.interruptBefore[task.NodeID] && !x.executor.interruptBefore[InterruptAll] {
			continue
		}
		if x.interruptSeen(task) {
			continue
		}
		return task
	}
	return nil
}

// interruptSeen reports whether the interrupt machinery already reacted to
// the channel versions that fired this task.
func (x *execution) interruptSeen(task *Task) bool {
	if len(task.Triggers) == 0 {
		return false
	}
	consumer := interruptConsumer(task.NodeID)
	for _, name := range task.Triggers {
		if x.checkpoint.ChannelVersions[name] > x.checkpoint.SeenVersion(consumer, name) {
			return false
		}
	}
	return true
}

func (x *execution) interruptAfterNode(tasks []*Task) string {
	if len(x.executor.interruptAfter) == 0 {
		return ""
	}
	for _, task := range tasks {
		if x.executor.interruptAfter[task.NodeID] || x.executor.interruptAfter[InterruptAll] {
			return task.NodeID
		}
	}
	return ""
}

// interruptRun persists the last committed checkpoint with interrupt
// attribution plus any mid-step writes, and emits the interrupt event.
func (x *execution) interruptRun(ctx context.Context, interruptErr *InterruptError, triggers []string, writes []PendingWrite) {
	consumer := interruptConsumer(interruptErr.NodeID)
	for _, name := range triggers {
		x.checkpoint.MarkSeen(consumer, name, x.checkpoint.ChannelVersions[name])
	}
	x.checkpoint.InterruptState = &InterruptState{
		NodeID:         interruptErr.NodeID,
		TaskID:         interruptErr.TaskID,
		Key:            interruptErr.Key,
		InterruptValue: interruptErr.Value,
		Step:           interruptErr.Step,
	}
	x.saveCheckpoint(ctx, SourceInterrupt, interruptErr.Step, writes)
	event := newEvent(EventTypeInterrupt, interruptErr.Step)
	event.NodeID = interruptErr.NodeID
	event.Interrupt = interruptErr
	event.CheckpointID = x.checkpoint.ID
	emit(ctx, x.events, event)
}

// executeTasks runs all tasks of a step concurrently and returns their
// buffered writes in task order. The first failure cancels the step's
// context so sibling tasks stop early; no writes survive a failed step.
func (x *execution) executeTasks(ctx context.Context, tasks []*Task) ([]PendingWrite, error) {
	var cancel context.CancelFunc
	stepCtx := ctx
	if x.executor.stepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, x.executor.stepTimeout)
	} else {
		stepCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	pool, err := ants.NewPool(x.executor.parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}
	for _, task := range tasks {
		if replay, ok := x.replayWrites[replayKey(task)]; ok {
			task.setWrites(retagWrites(replay, task.ID))
			continue
		}
		task := task
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := x.runTask(stepCtx, task); err != nil {
				fail(err)
			}
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit task for node %s: %w", task.NodeID, err))
		}
	}
	wg.Wait()
	if firstErr != nil {
		if _, ok := IsInterruptError(firstErr); ok {
			return nil, firstErr
		}
		// A step timeout or outside cancellation outranks the node errors
		// it provokes: nodes that honor ctx return its error wrapped in a
		// NodeError, but the step aborted, the node did not fail.
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, &StepAbortedError{Step: x.step, Cause: stepCtx.Err()}
		}
		return nil, firstErr
	}
	if err := stepCtx.Err(); err != nil {
		return nil, &StepAbortedError{Step: x.step, Cause: err}
	}
	var writes []PendingWrite
	for _, task := range tasks {
		writes = append(writes, task.Writes()...)
	}
	return writes, nil
}

func (x *execution) runTask(ctx context.Context, task *Task) error {
	node, ok := x.graph.Node(task.NodeID)
	if !ok || node.Function == nil {
		return &NodeError{NodeID: task.NodeID, Step: x.step,
			Err: errors.New("node has no function")}
	}
	ctx, span := trace.Tracer.Start(ctx, "graph.node",
		oteltrace.WithAttributes(attribute.String("graph.node.id", task.NodeID)))
	defer span.End()

	output, err := node.Function(ctx, task.Input.Clone())
	if err != nil {
		if interruptErr, ok := IsInterruptError(err); ok {
			interruptErr.NodeID = task.NodeID
			interruptErr.TaskID = task.ID
			interruptErr.Step = x.step
			return interruptErr
		}
		return &NodeError{NodeID: task.NodeID, Step: x.step, Err: err}
	}
	update, entries, routed, err := expandOutput(task.NodeID, output)
	if err != nil {
		return &NodeError{NodeID: task.NodeID, Step: x.step, Err: err}
	}
	for _, entry := range entries {
		task.appendWrite(entry.Channel, deepCopyAny(entry.Value), x.sequence.Add(1))
	}
	if routed {
		return nil
	}
	if condEdge, ok := x.graph.ConditionalEdge(task.NodeID); ok {
		// The node's own unflushed writes are visible to its routing
		// decision through an overlay; other tasks never see them.
		overlay := x.graph.Schema().ApplyUpdate(task.Input, update)
		result, err := condEdge.Condition(ctx, overlay)
		if err != nil {
			return &NodeError{NodeID: task.NodeID, Step: x.step, Err: err}
		}
		target := result
		if mapped, ok := condEdge.PathMap[result]; ok {
			target = mapped
		}
		if target != "" && target != End {
			task.appendWrite(branchChannel(target), task.NodeID, x.sequence.Add(1))
		}
	}
	for _, writer := range node.writers {
		task.appendWrite(writer.Channel, writer.Value, x.sequence.Add(1))
	}
	return nil
}

// expandOutput normalizes a node function's return value into a state
// update plus channel writes. routed reports that the output carried its
// own routing, which replaces the node's static edges for this step.
func expandOutput(nodeID string, output any) (State, []channelWriteEntry, bool, error) {
	switch out := output.(type) {
	case nil:
		return nil, nil, false, nil
	case *Command:
		if out == nil {
			return nil, nil, false, nil
		}
		routed := out.GoTo != "" || len(out.Sends) > 0
		return out.Update, commandWrites(nodeID, out), routed, nil
	case Command:
		routed := out.GoTo != "" || len(out.Sends) > 0
		return out.Update, commandWrites(nodeID, &out), routed, nil
	case State:
		return out, stateWrites(out), false, nil
	case map[string]any:
		update := State(out)
		return update, stateWrites(update), false, nil
	default:
		return nil, nil, false, fmt.Errorf("unsupported node output type %T", output)
	}
}

func (x *execution) handleExecError(ctx context.Context, err error, tasks []*Task) {
	if interruptErr, ok := IsInterruptError(err); ok {
		// Persist what finished so resume replays results instead of
		// re-running nodes.
		var writes []PendingWrite
		for _, task := range tasks {
			if task.ID == interruptErr.TaskID {
				continue
			}
			writes = append(writes, retagWrites(task.Writes(), replayKey(task))...)
		}
		x.interruptRun(ctx, interruptErr, nil, writes)
		return
	}
	x.emitError(ctx, err)
}

// saveCheckpoint persists the current checkpoint. Persistence failures are
// logged, not fatal: the in-memory run stays correct.
func (x *execution) saveCheckpoint(ctx context.Context, source string, step int, writes []PendingWrite) {
	if x.executor.saver == nil || GetLineageID(x.config) == "" {
		return
	}
	metadata := NewCheckpointMetadata(source, step)
	if x.checkpoint.ParentCheckpointID != "" {
		metadata.Parents[GetNamespace(x.config)] = x.checkpoint.ParentCheckpointID
	}
	x.checkpoint.NextNodes = nil
	var config map[string]any
	var err error
	if len(writes) > 0 {
		config, err = x.executor.saver.PutFull(ctx, PutFullRequest{
			Config:        x.config,
			Checkpoint:    x.checkpoint,
			Metadata:      metadata,
			NewVersions:   x.checkpoint.ChannelVersions,
			PendingWrites: writes,
		})
	} else {
		config, err = x.executor.saver.Put(ctx, PutRequest{
			Config:      x.config,
			Checkpoint:  x.checkpoint,
			Metadata:    metadata,
			NewVersions: x.checkpoint.ChannelVersions,
		})
	}
	if err != nil {
		log.Errorf("failed to save checkpoint %s: %v", x.checkpoint.ID, err)
		return
	}
	if config != nil {
		x.config = config
	}
}

// emitCommitted emits the configured projections of a committed step.
func (x *execution) emitCommitted(ctx context.Context, tasks []*Task, result *commitResult) {
	schema := x.graph.Schema()
	for _, task := range tasks {
		update := taskUpdate(schema, task)
		if len(update) > 0 {
			x.values = schema.ApplyUpdate(x.values, update)
		}
		if x.executor.streamModes[StreamModeUpdates] {
			event := newEvent(EventTypeUpdates, x.step)
			event.NodeID = task.NodeID
			event.Update = update
			event.CheckpointID = x.checkpoint.ID
			emit(ctx, x.events, event)
		}
	}
	if x.executor.streamModes[StreamModeValues] {
		event := newEvent(EventTypeValues, x.step)
		event.State = x.values.Clone()
		event.CheckpointID = x.checkpoint.ID
		emit(ctx, x.events, event)
	}
	if x.executor.streamModes[StreamModeDebug] {
		event := newEvent(EventTypeDebug, x.step)
		event.UpdatedChannels = result.UpdatedChannels
		event.CheckpointID = x.checkpoint.ID
		for _, task := range tasks {
			event.ScheduledNodes = append(event.ScheduledNodes, task.NodeID)
		}
		emit(ctx, x.events, event)
	}
}

func (x *execution) doneEvent() *Event {
	event := newEvent(EventTypeDone, x.step)
	event.State = x.values.Clone()
	event.CheckpointID = x.checkpoint.ID
	return event
}

func (x *execution) emitError(ctx context.Context, err error) {
	emit(ctx, x.events, errorEvent(x.step, err))
}

func errorEvent(step int, err error) *Event {
	event := newEvent(EventTypeError, step)
	event.Err = err
	return event
}

// emit delivers an event, dropping it only when the consumer is gone. The
// buffered send is tried first so a cancelled context still gets its
// terminal error or interrupt event.
func emit(ctx context.Context, events chan<- *Event, event *Event) {
	select {
	case events <- event:
		return
	default:
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

// replayKey identifies a task's persisted mid-step writes across restarts.
// Static tasks are keyed by node ID. Send tasks get fresh task IDs on every
// planning pass, so they are keyed by their position in the pending-send
// queue, which the interrupted checkpoint preserves.
func replayKey(task *Task) string {
	if task.IsSend {
		return fmt.Sprintf("%s:%d:%s", SendChannel, task.sendIndex, task.NodeID)
	}
	return task.NodeID
}

func retagWrites(writes []PendingWrite, taskID string) []PendingWrite {
	retagged := make([]PendingWrite, len(writes))
	for i, write := range writes {
		write.TaskID = taskID
		retagged[i] = write
	}
	return retagged
}

func interruptConsumer(nodeID string) string {
	return InterruptChannel + ":" + nodeID
}
