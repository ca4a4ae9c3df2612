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

// Package binding associates physical control identities with graph
// ports, either by explicit configuration or interactively via the
// Learner.
package binding

import (
	"sort"

	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// Binding is a persistent association from one physical control to one
// graph port.  Bindings outlive events and are part of the workspace.
type Binding struct {
	Key  midi.Key     `json:"key" yaml:"key"`
	Node graph.NodeID `json:"node" yaml:"node"`
	Port string       `json:"port" yaml:"port"`
}

// Table holds the active bindings for one engine, keyed by control
// identity.  Physical controls are scarce, so a control rebinds with
// last-write-wins semantics: Bind never fails, it just takes over.
//
// A Table is not safe for concurrent use on its own; the engine
// serializes access along with the graph.
type Table struct {
	m map[midi.Key]Binding
}

func NewTable() *Table {
	return &Table{
		m: make(map[midi.Key]Binding, 32),
	}
}

// Bind records the binding, replacing any previous binding of the same
// control.
func (t *Table) Bind(b Binding) {
	t.m[b.Key] = b
}

// Resolve finds the binding for a control identity.
func (t *Table) Resolve(k midi.Key) (Binding, bool) {
	b, have := t.m[k]
	return b, have
}

// Unbind removes the binding for a control identity, if any.
func (t *Table) Unbind(k midi.Key) {
	delete(t.m, k)
}

// DropNode removes every binding that targets the given node.  Called
// when the node is deleted from the graph.
func (t *Table) DropNode(id graph.NodeID) {
	for k, b := range t.m {
		if b.Node == id {
			delete(t.m, k)
		}
	}
}

// List returns all bindings ordered by control identity.
func (t *Table) List() []Binding {
	acc := make([]Binding, 0, len(t.m))
	for _, b := range t.m {
		acc = append(acc, b)
	}
	sort.Slice(acc, func(i, j int) bool {
		a, b := acc[i].Key, acc[j].Key
		if a.Device != b.Device {
			return a.Device < b.Device
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Control < b.Control
	})
	return acc
}

// Load replaces the table's contents (snapshot restore, profile apply).
func (t *Table) Load(bs []Binding) {
	t.m = make(map[midi.Key]Binding, len(bs))
	for _, b := range bs {
		t.m[b.Key] = b
	}
}

// Merge adds the given bindings on top of what's already there,
// last-write-wins as usual.
func (t *Table) Merge(bs []Binding) {
	for _, b := range bs {
		t.m[b.Key] = b
	}
}
