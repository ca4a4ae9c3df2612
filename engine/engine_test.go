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

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/midasctl/midas/action"
	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
	. "github.com/midasctl/midas/util/testutil"
)

// recorder is an action.Runner that just remembers what it was asked to
// do.
type recorder struct {
	invs chan action.Invocation
	err  error
}

func newRecorder() *recorder {
	return &recorder{
		invs: make(chan action.Invocation, 16),
	}
}

func (r *recorder) Run(ctx context.Context, inv action.Invocation) error {
	r.invs <- inv
	return r.err
}

func cc(control int, value float64) midi.ControlEvent {
	return midi.ControlEvent{
		Device:    "nano",
		Channel:   1,
		Control:   control,
		Value:     value,
		Kind:      midi.Continuous,
		Timestamp: time.Now(),
	}
}

// fader builds the canonical chain: a MIDI input port feeding a
// [0,127]→[0,1] map feeding a volume action, with the input port bound
// to nano/1/7.
func fader(t *testing.T) (*Engine, *recorder) {
	t.Helper()

	g := graph.NewGraph()
	table := binding.NewTable()

	m, err := g.AddNode(graph.MidiInput, graph.Config{
		"ports": []interface{}{
			map[string]interface{}{"name": "cc7", "type": "number"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	v, err := g.AddNode(graph.ValueMap, graph.Config{
		"inMin": 0, "inMax": 127,
		"outMin": 0, "outMax": 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	x, err := g.AddNode(graph.Volume, graph.Config{"sink": "speakers"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = g.Connect(graph.PortRef{Node: m, Port: "cc7"}, graph.PortRef{Node: v, Port: "in"}); err != nil {
		t.Fatal(err)
	}
	if _, err = g.Connect(graph.PortRef{Node: v, Port: "out"}, graph.PortRef{Node: x, Port: "in"}); err != nil {
		t.Fatal(err)
	}

	table.Bind(binding.Binding{
		Key:  midi.Key{Device: "nano", Channel: 1, Control: 7},
		Node: m,
		Port: "cc7",
	})

	rec := newRecorder()
	e := New(g, table, action.Registry{graph.Volume: rec}, &Options{Workers: 1})
	return e, rec
}

func drain(e *Engine) []action.Invocation {
	var acc []action.Invocation
	for {
		select {
		case inv := <-e.work:
			acc = append(acc, inv)
		default:
			return acc
		}
	}
}

func TestDispatchChain(t *testing.T) {
	e, _ := fader(t)
	ctx := context.Background()

	e.dispatch(ctx, cc(7, 127))
	invs := drain(e)
	if len(invs) != 1 {
		t.Fatalf("invocations %s", JS(invs))
	}
	if got := invs[0].Inputs["in"]; got != 1 {
		t.Fatalf("full fader gave %v", got)
	}
	if invs[0].Kind != graph.Volume {
		t.Fatalf("invoked %s", invs[0].Kind)
	}

	e.dispatch(ctx, cc(7, 0))
	invs = drain(e)
	if len(invs) != 1 || invs[0].Inputs["in"] != 0 {
		t.Fatalf("zero fader gave %s", JS(invs))
	}
}

func TestDispatchIdempotent(t *testing.T) {
	e, _ := fader(t)
	ctx := context.Background()

	ev := cc(7, 64)
	e.dispatch(ctx, ev)
	first := drain(e)
	e.dispatch(ctx, ev)
	second := drain(e)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("%d then %d invocations", len(first), len(second))
	}
	if first[0].Inputs["in"] != second[0].Inputs["in"] {
		t.Fatalf("same event, different values: %v vs %v",
			first[0].Inputs["in"], second[0].Inputs["in"])
	}
}

func TestDispatchUnbound(t *testing.T) {
	e, _ := fader(t)

	e.dispatch(context.Background(), cc(99, 64))

	if invs := drain(e); invs != nil {
		t.Fatalf("unbound control invoked %s", JS(invs))
	}
}

func TestFanOut(t *testing.T) {
	g := graph.NewGraph()
	table := binding.NewTable()

	m, err := g.AddNode(graph.MidiInput, nil)
	if err != nil {
		t.Fatal(err)
	}
	var sinks []graph.NodeID
	for i := 0; i < 2; i++ {
		v, err := g.AddNode(graph.ValueMap, nil)
		if err != nil {
			t.Fatal(err)
		}
		x, err := g.AddNode(graph.Volume, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err = g.Connect(graph.PortRef{Node: m, Port: "value"}, graph.PortRef{Node: v, Port: "in"}); err != nil {
			t.Fatal(err)
		}
		if _, err = g.Connect(graph.PortRef{Node: v, Port: "out"}, graph.PortRef{Node: x, Port: "in"}); err != nil {
			t.Fatal(err)
		}
		sinks = append(sinks, x)
	}

	table.Bind(binding.Binding{
		Key:  midi.Key{Device: "nano", Channel: 1, Control: 7},
		Node: m,
		Port: "value",
	})

	e := New(g, table, action.Registry{}, nil)
	e.dispatch(context.Background(), cc(7, 127))

	invs := drain(e)
	if len(invs) != 2 {
		t.Fatalf("fan-out gave %s", JS(invs))
	}
	seen := map[graph.NodeID]bool{}
	for _, inv := range invs {
		seen[inv.Node] = true
	}
	for _, id := range sinks {
		if !seen[id] {
			t.Fatalf("sink %d never fired; got %s", id, JS(invs))
		}
	}
}

func TestLearnThroughDispatch(t *testing.T) {
	e, _ := fader(t)
	ctx := context.Background()

	// Find the input node to learn a second control onto.
	var m graph.NodeID
	e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		for _, n := range g.Nodes() {
			if n.Kind == graph.MidiInput {
				m = n.ID
			}
		}
		return nil
	})

	if err := e.Learn(m, "cc7"); err != nil {
		t.Fatal(err)
	}
	if _, pending := e.Learning(); !pending {
		t.Fatal("not learning")
	}

	// The qualifying event is consumed by the learner, not dispatched.
	e.dispatch(ctx, cc(20, 64))
	if invs := drain(e); invs != nil {
		t.Fatalf("learn event leaked into dispatch: %s", JS(invs))
	}
	if _, pending := e.Learning(); pending {
		t.Fatal("still learning after a qualifying event")
	}

	// From now on the new control drives the chain.
	e.dispatch(ctx, cc(20, 127))
	invs := drain(e)
	if len(invs) != 1 || invs[0].Inputs["in"] != 1 {
		t.Fatalf("learned control gave %s", JS(invs))
	}
}

func TestLearnValidation(t *testing.T) {
	e, _ := fader(t)

	if err := e.Learn(999, "cc7"); err == nil {
		t.Fatal("unknown node accepted")
	} else {
		var unknown *graph.UnknownNode
		if !errors.As(err, &unknown) {
			t.Fatalf("wanted UnknownNode, got %v", err)
		}
	}

	var m graph.NodeID
	e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		for _, n := range g.Nodes() {
			if n.Kind == graph.MidiInput {
				m = n.ID
			}
		}
		return nil
	})
	if err := e.Learn(m, "nope"); err == nil {
		t.Fatal("unknown port accepted")
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	e, _ := fader(t)
	ctx := context.Background()

	var m graph.NodeID
	e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		for _, n := range g.Nodes() {
			if n.Kind == graph.MidiInput {
				m = n.ID
			}
		}
		return nil
	})

	if err := e.Learn(m, "cc7"); err != nil {
		t.Fatal(err)
	}

	if err := e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		return g.RemoveNode(m)
	}); err != nil {
		t.Fatal(err)
	}

	// The binding and the pending learn went with the node.
	if _, pending := e.Learning(); pending {
		t.Fatal("learn survived node removal")
	}
	e.dispatch(ctx, cc(7, 127))
	if invs := drain(e); invs != nil {
		t.Fatalf("binding survived node removal: %s", JS(invs))
	}
}

func TestStaleBindingUnbinds(t *testing.T) {
	e, _ := fader(t)

	k := midi.Key{Device: "nano", Channel: 1, Control: 8}
	e.Edit(func(_ *graph.Graph, tab *binding.Table) error {
		tab.Bind(binding.Binding{Key: k, Node: 777, Port: "x"})
		return nil
	})

	e.dispatch(context.Background(), cc(8, 64))

	e.Edit(func(_ *graph.Graph, tab *binding.Table) error {
		if _, have := tab.Resolve(k); have {
			t.Fatal("stale binding not dropped")
		}
		return nil
	})
}

func TestDeliverNeverBlocks(t *testing.T) {
	g := graph.NewGraph()
	e := New(g, binding.NewTable(), action.Registry{}, &Options{QueueSize: 1})

	// Nobody is draining e.events; the second delivery must be dropped
	// with a diagnostic rather than blocking us here.
	e.Deliver(cc(7, 1))
	e.Deliver(cc(7, 2))

	select {
	case d := <-e.Diagnostics():
		if d.Event == nil || d.Event.Value != 2 {
			t.Fatalf("diagnostic %s", JS(d))
		}
	default:
		t.Fatal("no drop diagnostic")
	}
}

func TestRunEndToEnd(t *testing.T) {
	e, rec := fader(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Deliver(cc(7, 127))

	select {
	case inv := <-rec.invs:
		if inv.Inputs["in"] != 1 {
			t.Fatalf("invocation %s", JS(inv))
		}
	case <-time.After(time.Second):
		t.Fatal("no invocation")
	}
}

func TestRunReportsFailures(t *testing.T) {
	e, rec := fader(t)
	rec.err = errors.New("boom")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Deliver(cc(7, 127))

	timeout := time.After(time.Second)
	for {
		select {
		case d := <-e.Diagnostics():
			if d.Failure != nil && errors.Is(d.Failure, rec.err) {
				return
			}
		case <-timeout:
			t.Fatal("no failure diagnostic")
		}
	}
}

func TestLearnSerializesWithEdits(t *testing.T) {
	e, _ := fader(t)

	var m graph.NodeID
	e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		for _, n := range g.Nodes() {
			if n.Kind == graph.MidiInput {
				m = n.ID
			}
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// Learn captures write the binding table from the dispatch loop
	// while Edit callers write it from their own goroutines.  Run this
	// under the race detector.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		k := midi.Key{Device: "nano", Channel: 2, Control: 1}
		for i := 0; i < 500; i++ {
			e.Edit(func(_ *graph.Graph, tab *binding.Table) error {
				tab.Bind(binding.Binding{Key: k, Node: m, Port: "cc7"})
				tab.Unbind(k)
				return nil
			})
		}
	}()

	for i := 0; i < 500; i++ {
		e.Learn(m, "cc7")
		e.Deliver(cc(8+i%8, float64(i%128)))
	}

	wg.Wait()
}

func TestEditSerializes(t *testing.T) {
	e, _ := fader(t)

	// An edit that fails mutated nothing and surfaces its error.
	sentinel := errors.New("nope")
	if err := e.Edit(func(g *graph.Graph, _ *binding.Table) error {
		return sentinel
	}); err != sentinel {
		t.Fatalf("got %v", err)
	}
}
