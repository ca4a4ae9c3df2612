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

package binding

import (
	"errors"
	"sync"

	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// LearnInProgress occurs when Enter is called while another port is
// already waiting for its control.
var LearnInProgress = errors.New("another port is already learning")

// Target is the port a pending learn will bind.
type Target struct {
	Node graph.NodeID
	Port string

	// Type is the port's declared value type, used to decide which
	// events qualify: trigger ports learn trigger events, number
	// ports learn continuous ones, Any ports take either.
	Type graph.PortType
}

// Learner implements interactive learn mode.  At most one port may be
// learning at a time, process-wide: a knob twist should never land on
// an ambiguous target.
type Learner struct {
	mu      sync.Mutex
	table   *Table
	pending *Target
}

func NewLearner(table *Table) *Learner {
	return &Learner{
		table: table,
	}
}

// Enter starts learn mode for the given target.  Fails with
// LearnInProgress if some other port is already pending.
func (l *Learner) Enter(t Target) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		if l.pending.Node == t.Node && l.pending.Port == t.Port {
			return nil
		}
		return LearnInProgress
	}
	l.pending = &t
	return nil
}

// Cancel leaves learn mode without binding anything.  Canceling when
// idle is fine.
func (l *Learner) Cancel() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

// CancelNode cancels a pending learn if it targets the given node.
// Removing a node mid-learn shouldn't leave the learner waiting to
// bind a port that no longer exists.
func (l *Learner) CancelNode(id graph.NodeID) {
	l.mu.Lock()
	if l.pending != nil && l.pending.Node == id {
		l.pending = nil
	}
	l.mu.Unlock()
}

// Pending returns the current learn target, if any.
func (l *Learner) Pending() (Target, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return Target{}, false
	}
	return *l.pending, true
}

// Offer presents an event to the learner.  If a learn is pending and
// the event qualifies for the target port, the binding is recorded
// (silently replacing any prior binding of that control), learn mode
// ends, and Offer reports true: the event is consumed.
func (l *Learner) Offer(ev midi.ControlEvent) (Binding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return Binding{}, false
	}
	if !qualifies(l.pending.Type, ev.Kind) {
		return Binding{}, false
	}

	b := Binding{
		Key:  ev.Key(),
		Node: l.pending.Node,
		Port: l.pending.Port,
	}
	l.table.Bind(b)
	l.pending = nil
	return b, true
}

func qualifies(pt graph.PortType, k midi.EventKind) bool {
	switch pt {
	case graph.TriggerPort:
		return k == midi.Trigger
	case graph.Number:
		return k == midi.Continuous
	case graph.Any:
		return true
	}
	return false
}
