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

// Package graph is the node-graph data model: an arena of nodes with
// typed ports, connected by edges that are guaranteed to stay acyclic.
//
// A Graph is not safe for concurrent use.  The engine serializes all
// access; standalone callers (tools, tests) use it single-threaded.
package graph

import (
	"sort"
)

// NodeID identifies a node within one graph.  IDs are never reused.
type NodeID int

// EdgeID identifies an edge within one graph.
type EdgeID int

// PortRef names one port on one node.
type PortRef struct {
	Node NodeID `json:"node"`
	Port string `json:"port"`
}

// Node is one unit of the graph.  Its ports come from its kind's
// template (possibly derived from config); its current port values are
// a cache maintained by evaluation, not part of the persistent model.
type Node struct {
	ID     NodeID `json:"id"`
	Kind   Kind   `json:"kind"`
	Title  string `json:"title,omitempty"`
	Config Config `json:"config,omitempty"`

	// Meta carries opaque editor state (position, color, whatever).
	// This core round-trips it and otherwise ignores it.
	Meta map[string]interface{} `json:"meta,omitempty"`

	inputs  []PortSpec
	outputs []PortSpec
	values  map[string]float64
	seq     int
}

// Inputs returns the node's input port declarations.
func (n *Node) Inputs() []PortSpec { return n.inputs }

// Outputs returns the node's output port declarations.
func (n *Node) Outputs() []PortSpec { return n.outputs }

// Port finds a port by name, searching inputs then outputs.
func (n *Node) Port(name string) (PortSpec, bool) {
	for _, p := range n.inputs {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range n.outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Value returns the port's current cached value.
func (n *Node) Value(port string) (float64, bool) {
	v, have := n.values[port]
	return v, have
}

// SetValue updates the port's cached value, reporting whether the value
// actually changed.
func (n *Node) SetValue(port string, v float64) bool {
	old, had := n.values[port]
	n.values[port] = v
	return !had || old != v
}

// InputValues snapshots the current values of the node's input ports.
func (n *Node) InputValues() map[string]float64 {
	acc := make(map[string]float64, len(n.inputs))
	for _, p := range n.inputs {
		if v, have := n.values[p.Name]; have {
			acc[p.Name] = v
		}
	}
	return acc
}

// Edge connects a source output port to a destination input port.
type Edge struct {
	ID   EdgeID  `json:"id"`
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

// Graph owns its nodes and edges.  All mutation goes through the
// methods below; each either fully applies or fully rejects.
type Graph struct {
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	nextNode NodeID
	nextEdge EdgeID
	nextSeq  int

	// order is the cached topological order, nil when dirty.
	order []NodeID

	onChange []func()
	onRemove []func(NodeID)
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node, 32),
		edges: make(map[EdgeID]*Edge, 32),
	}
}

// OnChange registers a hook called after every structural change.  The
// engine uses this to know its downstream caches are stale.
func (g *Graph) OnChange(f func()) {
	g.onChange = append(g.onChange, f)
}

// OnRemove registers a hook called with the id of every removed node,
// before the structural-change hooks.  Bindings cascade through this.
func (g *Graph) OnRemove(f func(NodeID)) {
	g.onRemove = append(g.onRemove, f)
}

func (g *Graph) changed() {
	g.order = nil
	for _, f := range g.onChange {
		f()
	}
}

// AddNode creates a node of the given kind.  The config is validated
// against the kind's template; a bad config is rejected with
// InvalidConfig and the graph is unchanged.
func (g *Graph) AddNode(kind Kind, config Config) (NodeID, error) {
	t, have := TemplateFor(kind)
	if !have {
		return 0, &InvalidConfig{Kind: kind, Err: errUnknownKind}
	}
	if config == nil {
		config = Config{}
	}
	if t.Validate != nil {
		if err := t.Validate(config); err != nil {
			return 0, &InvalidConfig{Kind: kind, Err: err}
		}
	}

	outputs := t.Outputs
	if t.DynamicOutputs != nil {
		var err error
		if outputs, err = t.DynamicOutputs(config); err != nil {
			return 0, &InvalidConfig{Kind: kind, Err: err}
		}
	}

	id := g.nextNode
	g.nextNode++

	g.nodes[id] = &Node{
		ID:      id,
		Kind:    kind,
		Title:   t.Title,
		Config:  config,
		inputs:  t.Inputs,
		outputs: outputs,
		values:  make(map[string]float64, len(t.Inputs)+len(outputs)),
		seq:     g.nextSeq,
	}
	g.nextSeq++

	g.changed()
	return id, nil
}

// InsertNode restores a node under a caller-chosen id.  Snapshot import
// uses this to keep persisted bindings pointing at the right nodes.
// The id must not collide with an existing node.
func (g *Graph) InsertNode(id NodeID, kind Kind, config Config) error {
	if _, have := g.nodes[id]; have {
		return errNodeExists
	}
	nid, err := g.AddNode(kind, config)
	if err != nil {
		return err
	}
	n := g.nodes[nid]
	delete(g.nodes, nid)
	n.ID = id
	g.nodes[id] = n
	if id >= g.nextNode {
		g.nextNode = id + 1
	}
	g.changed()
	return nil
}

// Node looks up a node by id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, have := g.nodes[id]
	return n, have
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	acc := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		acc = append(acc, n)
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].seq < acc[j].seq
	})
	return acc
}

// Edges returns all edges ordered by id.
func (g *Graph) Edges() []*Edge {
	acc := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		acc = append(acc, e)
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].ID < acc[j].ID
	})
	return acc
}

// Connect adds an edge from an output port to an input port.  It fails
// with TypeMismatch, PortOccupied, or CycleDetected (in that order of
// checking) without mutating anything.
func (g *Graph) Connect(from, to PortRef) (EdgeID, error) {
	src, have := g.nodes[from.Node]
	if !have {
		return 0, &UnknownNode{ID: from.Node}
	}
	dst, have := g.nodes[to.Node]
	if !have {
		return 0, &UnknownNode{ID: to.Node}
	}

	var srcSpec, dstSpec *PortSpec
	for i := range src.outputs {
		if src.outputs[i].Name == from.Port {
			srcSpec = &src.outputs[i]
			break
		}
	}
	if srcSpec == nil {
		return 0, &UnknownPort{Ref: from}
	}
	for i := range dst.inputs {
		if dst.inputs[i].Name == to.Port {
			dstSpec = &dst.inputs[i]
			break
		}
	}
	if dstSpec == nil {
		return 0, &UnknownPort{Ref: to}
	}

	if !Compatible(srcSpec.Type, dstSpec.Type) {
		return 0, TypeMismatch
	}

	for _, e := range g.edges {
		if e.To == to {
			return 0, PortOccupied
		}
	}

	// The new edge closes a cycle exactly when the source is already
	// reachable from the destination.
	if from.Node == to.Node || g.reachable(to.Node, from.Node) {
		return 0, CycleDetected
	}

	id := g.nextEdge
	g.nextEdge++
	g.edges[id] = &Edge{ID: id, From: from, To: to}

	g.changed()
	return id, nil
}

// Disconnect removes one edge.
func (g *Graph) Disconnect(id EdgeID) error {
	if _, have := g.edges[id]; !have {
		return NotAnEdge
	}
	delete(g.edges, id)
	g.changed()
	return nil
}

// RemoveNode deletes a node and cascades: every edge touching the node
// goes with it, and OnRemove hooks fire so bindings can follow.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, have := g.nodes[id]; !have {
		return &UnknownNode{ID: id}
	}
	for eid, e := range g.edges {
		if e.From.Node == id || e.To.Node == id {
			delete(g.edges, eid)
		}
	}
	delete(g.nodes, id)
	for _, f := range g.onRemove {
		f(id)
	}
	g.changed()
	return nil
}

// Outgoing returns the edges leaving any port of the node, ordered by
// edge id for determinism.
func (g *Graph) Outgoing(id NodeID) []*Edge {
	var acc []*Edge
	for _, e := range g.edges {
		if e.From.Node == id {
			acc = append(acc, e)
		}
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].ID < acc[j].ID
	})
	return acc
}

// Terminal reports whether the node has no outgoing edges.
func (g *Graph) Terminal(id NodeID) bool {
	for _, e := range g.edges {
		if e.From.Node == id {
			return false
		}
	}
	return true
}

// reachable reports whether to is reachable from from along edges.
func (g *Graph) reachable(from, to NodeID) bool {
	if from == to {
		return true
	}
	seen := map[NodeID]bool{from: true}
	stack := []NodeID{from}
	for 0 < len(stack) {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.edges {
			if e.From.Node != id || seen[e.To.Node] {
				continue
			}
			if e.To.Node == to {
				return true
			}
			seen[e.To.Node] = true
			stack = append(stack, e.To.Node)
		}
	}
	return false
}

// TopoOrder returns a topological order over all nodes: every edge's
// source comes before its destination, and independent nodes appear in
// creation order so the result is reproducible.  The order is computed
// lazily and cached until the next structural change.
func (g *Graph) TopoOrder() []NodeID {
	if g.order != nil {
		return g.order
	}

	indegree := make(map[NodeID]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, e := range g.edges {
		indegree[e.To.Node]++
	}

	// Kahn's algorithm with a ready list kept sorted by creation
	// order.  The graph is small; simplicity beats a heap.
	ready := make([]NodeID, 0, len(g.nodes))
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	g.sortBySeq(ready)

	order := make([]NodeID, 0, len(g.nodes))
	for 0 < len(ready) {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var woke []NodeID
		for _, e := range g.Outgoing(id) {
			indegree[e.To.Node]--
			if indegree[e.To.Node] == 0 {
				woke = append(woke, e.To.Node)
			}
		}
		if 0 < len(woke) {
			ready = append(ready, woke...)
			g.sortBySeq(ready)
		}
	}

	// Connect rejects cycles, so this always covers every node.
	g.order = order
	return order
}

func (g *Graph) sortBySeq(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		return g.nodes[ids[i]].seq < g.nodes[ids[j]].seq
	})
}
