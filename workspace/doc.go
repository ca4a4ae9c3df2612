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

// Package workspace converts the living graph, bindings, profiles, and
// devices to and from a persisted document.  The round-trip is
// lossless: export then import gives you an equivalent workspace.
package workspace

import (
	"fmt"

	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// Version is the current document version.
const Version = 1

// Doc is the persisted form of one workspace.
type Doc struct {
	Version  int               `json:"version"`
	Nodes    []NodeSnap        `json:"nodes"`
	Edges    []EdgeSnap        `json:"edges"`
	Bindings []binding.Binding `json:"bindings,omitempty"`
	Profiles []binding.Profile `json:"profiles,omitempty"`
	Devices  []midi.Device     `json:"devices,omitempty"`
}

// NodeSnap is one persisted node.  Meta is whatever the editor stored
// (position and such); this core just carries it.
type NodeSnap struct {
	ID     graph.NodeID           `json:"id"`
	Kind   graph.Kind             `json:"kind"`
	Title  string                 `json:"title,omitempty"`
	Config graph.Config           `json:"config,omitempty"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

// EdgeSnap is one persisted edge.
type EdgeSnap struct {
	From graph.PortRef `json:"from"`
	To   graph.PortRef `json:"to"`
}

// Export snapshots a workspace.  Call it with the engine's graph and
// table held still (Engine.Edit does that).
func Export(g *graph.Graph, t *binding.Table, profiles []binding.Profile, devices []midi.Device) *Doc {
	doc := &Doc{
		Version:  Version,
		Nodes:    make([]NodeSnap, 0, 16),
		Edges:    make([]EdgeSnap, 0, 16),
		Profiles: profiles,
		Devices:  devices,
	}

	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, NodeSnap{
			ID:     n.ID,
			Kind:   n.Kind,
			Title:  n.Title,
			Config: n.Config.Copy(),
			Meta:   n.Meta,
		})
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeSnap{From: e.From, To: e.To})
	}

	if t != nil {
		doc.Bindings = t.List()
	}

	return doc
}

// Import reconstructs a graph and binding table from a document.  Node
// ids are preserved so persisted bindings still point at the right
// ports.  A document that names unknown kinds or illegal edges is
// rejected; nothing partial comes back.
func Import(doc *Doc) (*graph.Graph, *binding.Table, error) {
	if Version < doc.Version {
		return nil, nil, fmt.Errorf("workspace version %d is newer than this build understands", doc.Version)
	}

	g := graph.NewGraph()
	for _, snap := range doc.Nodes {
		if err := g.InsertNode(snap.ID, snap.Kind, snap.Config); err != nil {
			return nil, nil, fmt.Errorf("node %d: %w", snap.ID, err)
		}
		n, _ := g.Node(snap.ID)
		if snap.Title != "" {
			n.Title = snap.Title
		}
		n.Meta = snap.Meta
	}

	for _, snap := range doc.Edges {
		if _, err := g.Connect(snap.From, snap.To); err != nil {
			return nil, nil, fmt.Errorf("edge %v -> %v: %w", snap.From, snap.To, err)
		}
	}

	t := binding.NewTable()
	t.Load(doc.Bindings)

	return g, t, nil
}
