/* Copyright 2026 The Midas Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package engine is the event-dispatch core: one logical loop that
// consumes normalized control events, routes them through the binding
// table, propagates values through the graph, and hands terminal
// action invocations to a bounded worker pool.
//
// The loop serializes evaluation against graph edits, so a topological
// walk never observes a half-applied edit.  It never waits for an
// action to finish, so a stuck shell command delays nothing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/midasctl/midas/action"
	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
	"github.com/midasctl/midas/util"
)

var errWorkFull = errors.New("worker pool backlog full")

// Diagnostic is one asynchronous report: an action failure, a dropped
// event, a learned binding.  Nothing reported here ever stops the
// loop.
type Diagnostic struct {
	Time    time.Time          `json:"time"`
	Msg     string             `json:"msg"`
	Failure *action.Failure    `json:"-"`
	Event   *midi.ControlEvent `json:"event,omitempty"`
}

// Options tune engine capacities.  Zero values get defaults.
type Options struct {
	// Workers is the size of the action worker pool.
	Workers int

	// QueueSize bounds pending events.  When full, new events are
	// dropped (with a Diagnostic) rather than blocking a producer.
	QueueSize int

	// WorkSize bounds pending action invocations.
	WorkSize int

	// DiagnosticsSize bounds the diagnostics channel.
	DiagnosticsSize int
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.WorkSize <= 0 {
		o.WorkSize = 64
	}
	if o.DiagnosticsSize <= 0 {
		o.DiagnosticsSize = 64
	}
}

// Engine owns one graph, one binding table, and one learner.
type Engine struct {
	// mu serializes dispatch and edits over the graph and table.
	mu sync.Mutex

	graph    *graph.Graph
	bindings *binding.Table
	learner  *binding.Learner
	runners  action.Registry

	events chan midi.ControlEvent
	work   chan action.Invocation
	diags  chan Diagnostic

	opts Options
}

// New wires an engine around the given graph and bindings.  Node
// removal cascades into the table and any pending learn from here on.
func New(g *graph.Graph, table *binding.Table, runners action.Registry, opts *Options) *Engine {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()

	e := &Engine{
		graph:    g,
		bindings: table,
		learner:  binding.NewLearner(table),
		runners:  runners,
		events:   make(chan midi.ControlEvent, o.QueueSize),
		work:     make(chan action.Invocation, o.WorkSize),
		diags:    make(chan Diagnostic, o.DiagnosticsSize),
		opts:     o,
	}

	g.OnRemove(func(id graph.NodeID) {
		table.DropNode(id)
		e.learner.CancelNode(id)
	})

	return e
}

// Diagnostics is the engine's report stream.  Consumers should drain
// it; if nobody does, reports are dropped, never blocked on.
func (e *Engine) Diagnostics() <-chan Diagnostic {
	return e.diags
}

// Run starts the worker pool and the dispatch loop and blocks until
// ctx is canceled.  No error from dispatched work ever ends the loop.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case ev := <-e.events:
			e.dispatch(ctx, ev)
		}
	}
}

// Deliver is the single entry point for events.  It never blocks: if
// the queue is full, the event is dropped and reported.
//
// Events from one producer are evaluated in delivery order; ordering
// across producers is arrival order, nothing more.
func (e *Engine) Deliver(ev midi.ControlEvent) {
	select {
	case e.events <- ev:
	default:
		e.report(Diagnostic{
			Time:  time.Now(),
			Msg:   "event queue full; event dropped",
			Event: &ev,
		})
	}
}

// Attach runs a source, feeding its events into the engine until the
// source ends or ctx is canceled.  Sources hot-plug: call Attach any
// time.
func (e *Engine) Attach(ctx context.Context, src midi.Source) {
	go func() {
		if err := src.Run(ctx, e.Deliver); err != nil && ctx.Err() == nil {
			e.report(Diagnostic{
				Time: time.Now(),
				Msg:  "source " + src.Name() + " failed: " + err.Error(),
			})
		}
	}()
}

// Edit runs a mutation against the graph and bindings, serialized
// against dispatch.  Structural errors come back synchronously; a
// failed edit mutated nothing.
func (e *Engine) Edit(f func(g *graph.Graph, t *binding.Table) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(e.graph, e.bindings)
}

// Learn enters learn mode for the given port: the next qualifying
// event from any source will be bound to it.  Fails with
// binding.LearnInProgress if another port is already waiting.
func (e *Engine) Learn(id graph.NodeID, port string) error {
	e.mu.Lock()
	n, have := e.graph.Node(id)
	if !have {
		e.mu.Unlock()
		return &graph.UnknownNode{ID: id}
	}
	spec, have := n.Port(port)
	e.mu.Unlock()
	if !have {
		return &graph.UnknownPort{Ref: graph.PortRef{Node: id, Port: port}}
	}

	return e.learner.Enter(binding.Target{
		Node: id,
		Port: port,
		Type: spec.Type,
	})
}

// CancelLearn leaves learn mode without binding.
func (e *Engine) CancelLearn() {
	e.learner.Cancel()
}

// Learning reports the pending learn target, if any.
func (e *Engine) Learning() (binding.Target, bool) {
	return e.learner.Pending()
}

// dispatch is steps 1–3 for one event: learn capture or binding
// resolution, value transform, downstream walk.  Runs on the loop
// goroutine only.
func (e *Engine) dispatch(ctx context.Context, ev midi.ControlEvent) {
	// A pending learn gets first claim on qualifying events.  The
	// capture writes the binding table, so it happens under e.mu like
	// every other table write; Edit callers bind and unbind the same
	// map concurrently.
	e.mu.Lock()
	if b, captured := e.learner.Offer(ev); captured {
		e.mu.Unlock()
		e.report(Diagnostic{
			Time:  time.Now(),
			Msg:   fmt.Sprintf("learned %s -> node %d port %s", b.Key, b.Node, b.Port),
			Event: &ev,
		})
		util.Logf("engine learned %s -> node %d port %s", b.Key, b.Node, b.Port)
		return
	}

	b, have := e.bindings.Resolve(ev.Key())
	if !have {
		// Unbound controls are expected; most of a controller
		// usually isn't wired.
		e.mu.Unlock()
		return
	}
	invs := e.evaluate(b, ev)
	e.mu.Unlock()

	for _, inv := range invs {
		select {
		case e.work <- inv:
		default:
			e.report(Diagnostic{
				Time: time.Now(),
				Msg:  "action queue full; invocation dropped",
				Failure: &action.Failure{
					Node: inv.Node,
					Kind: inv.Kind,
					Err:  errWorkFull,
				},
			})
		}
	}
}

func (e *Engine) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case inv := <-e.work:
			runner, have := e.runners[inv.Kind]
			if !have {
				e.report(Diagnostic{
					Time: time.Now(),
					Msg:  "no runner for kind " + string(inv.Kind),
				})
				continue
			}
			if err := runner.Run(ctx, inv); err != nil {
				f := &action.Failure{
					Node: inv.Node,
					Kind: inv.Kind,
					Err:  err,
				}
				e.report(Diagnostic{
					Time:    time.Now(),
					Msg:     f.Error(),
					Failure: f,
				})
			}
		}
	}
}

func (e *Engine) report(d Diagnostic) {
	select {
	case e.diags <- d:
	default:
		// Nobody's draining diagnostics; don't let that stall
		// anything.
		log.Printf("engine diagnostic dropped: %s", d.Msg)
	}
}
