// This file provides the task registry and the run engine.
//
// It holds registration and lookup of tasks together with the code that walks
// a step sequence for one run.
//
// # Organization Rationale
//
// Registration and execution share this file because:
//   - Run works on a snapshot of the registry taken under the same lock
//   - The once-per-run tracker and observer calls only make sense inside a run
//   - Step parsing and cycle checks live in step.go and validate.go
//
// # Key Functions
//
// Registry:
//   - Register() - Add or replace a named task
//   - Lookup() - Fetch a task by name
//   - Tasks() - List tasks for display, sorted by name
//
// Execution:
//   - Validate() - Check steps for unknown names and cycles
//   - Run() - Execute steps in order, groups concurrently, each task once
//
// Watch mode reuses Run for every rerun, so a rerun behaves exactly like a
// run started from the command line.

// Package orchestrator registers named build tasks, resolves their
// prerequisites and runs them in dependency order.
//
// A run is a sequence of steps. A step is either one task or a group of
// tasks; group members run concurrently and the sequence only advances when
// all of them have finished. Prerequisites of a task are themselves a step
// sequence, resolved depth-first before the task's action starts. Within one
// run every task executes at most once, however many paths reach it.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var runLog = logger.New("orchestrator:run")

// Action performs a task's work. A nil Action makes the task a pure
// aggregation of its prerequisites.
type Action func(ctx context.Context) error

// Task is a registered unit of work.
type Task struct {
	Name          string
	Prerequisites []Step
	Action        Action
	// Watch lists the input globs whose changes rerun the task in watch mode.
	Watch       []string
	Description string
}

// TaskOption customises a task at registration.
type TaskOption func(*Task)

// WithWatch sets the globs that trigger the task in watch mode.
func WithWatch(globs ...string) TaskOption {
	return func(t *Task) {
		t.Watch = append([]string(nil), globs...)
	}
}

// WithDescription sets the text shown by "sitebuild list".
func WithDescription(description string) TaskOption {
	return func(t *Task) {
		t.Description = description
	}
}

// Observer is notified around each task action.
type Observer interface {
	TaskStarted(runID, task string)
	TaskFinished(runID, task string, elapsed time.Duration, err error)
}

// Orchestrator owns a task registry. It is safe for concurrent use.
type Orchestrator struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	observers []Observer
	debounce  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver adds an observer for task start and finish events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// WithDebounce sets the default debounce window for Watch.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// New returns an empty orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tasks:    make(map[string]*Task),
		debounce: constants.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds a task, replacing any task already registered under name.
func (o *Orchestrator) Register(name string, prerequisites []Step, action Action, opts ...TaskOption) {
	t := &Task{
		Name:          name,
		Prerequisites: append([]Step(nil), prerequisites...),
		Action:        action,
	}
	for _, opt := range opts {
		opt(t)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.tasks[name]; exists {
		runLog.Printf("Redefining task %q, the previous definition is replaced", name)
	}
	o.tasks[name] = t
	runLog.Printf("Registered task %q with prerequisites [%s]", name, FormatSteps(prerequisites))
}

// Lookup returns a copy of the named task.
func (o *Orchestrator) Lookup(name string) (Task, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// TaskInfo describes a registered task for listings.
type TaskInfo struct {
	Name          string   `json:"name"`
	Prerequisites string   `json:"prerequisites,omitempty"`
	Description   string   `json:"description,omitempty"`
	Watch         []string `json:"watch,omitempty"`
}

// Tasks lists registered tasks sorted by name.
func (o *Orchestrator) Tasks() []TaskInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(o.tasks))
	for _, t := range o.tasks {
		infos = append(infos, TaskInfo{
			Name:          t.Name,
			Prerequisites: FormatSteps(t.Prerequisites),
			Description:   t.Description,
			Watch:         append([]string(nil), t.Watch...),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// snapshot copies the registry so a run is unaffected by later registrations.
func (o *Orchestrator) snapshot() map[string]*Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tasks := make(map[string]*Task, len(o.tasks))
	for name, t := range o.tasks {
		tasks[name] = t
	}
	return tasks
}

// Validate checks that every task reachable from steps is registered and
// that prerequisites contain no cycle, without running anything.
func (o *Orchestrator) Validate(steps ...Step) error {
	return validate(o.snapshot(), steps)
}

// Run executes steps in order. Nothing runs unless the whole graph reachable
// from steps validates. The first failure stops the sequence; its error is
// returned wrapped in a *TaskError naming the failed task.
func (o *Orchestrator) Run(ctx context.Context, steps ...Step) error {
	tasks := o.snapshot()
	if err := validate(tasks, steps); err != nil {
		runLog.Printf("Validation failed for [%s]: %v", FormatSteps(steps), err)
		return err
	}

	r := &run{
		id:        uuid.NewString(),
		tasks:     tasks,
		observers: o.observers,
		states:    make(map[string]*taskState),
	}
	runLog.Printf("Run %s: starting [%s]", r.id, FormatSteps(steps))

	start := time.Now()
	err := r.sequence(ctx, steps)
	runLog.Printf("Run %s: finished in %s (err=%v)", r.id, time.Since(start), err)
	return err
}

type taskState struct {
	done chan struct{}
	err  error
}

// run holds the per-invocation bookkeeping of Run.
type run struct {
	id        string
	tasks     map[string]*Task
	observers []Observer

	mu     sync.Mutex
	states map[string]*taskState
}

func (r *run) sequence(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := r.step(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) step(ctx context.Context, step Step) error {
	switch len(step.names) {
	case 0:
		return nil
	case 1:
		return r.task(ctx, step.names[0])
	}

	if !step.group {
		return r.sequence(ctx, oneEach(step.names))
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for _, name := range step.names {
		p.Go(func(ctx context.Context) error {
			return r.task(ctx, name)
		})
	}
	return p.Wait()
}

// task runs name once per run. Callers reaching a task that is already
// running wait for it and share its result.
func (r *run) task(ctx context.Context, name string) error {
	r.mu.Lock()
	if st, ok := r.states[name]; ok {
		r.mu.Unlock()
		select {
		case <-st.done:
			return st.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	st := &taskState{done: make(chan struct{})}
	r.states[name] = st
	r.mu.Unlock()

	defer close(st.done)
	st.err = r.execute(ctx, r.tasks[name])
	return st.err
}

func (r *run) execute(ctx context.Context, t *Task) error {
	if err := r.sequence(ctx, t.Prerequisites); err != nil {
		runLog.Printf("Run %s: not starting %q, a prerequisite failed", r.id, t.Name)
		return err
	}

	for _, obs := range r.observers {
		obs.TaskStarted(r.id, t.Name)
	}
	start := time.Now()

	var err error
	if t.Action != nil {
		runLog.Printf("Run %s: starting %q", r.id, t.Name)
		if actionErr := t.Action(ctx); actionErr != nil {
			err = &TaskError{Task: t.Name, Err: actionErr}
		}
	}

	elapsed := time.Since(start)
	for _, obs := range r.observers {
		obs.TaskFinished(r.id, t.Name, elapsed, err)
	}
	return err
}

func oneEach(names []string) []Step {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = One(name)
	}
	return steps
}
