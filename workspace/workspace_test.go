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

package workspace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
	. "github.com/midasctl/midas/util/testutil"
)

func sample(t *testing.T) (*graph.Graph, *binding.Table) {
	t.Helper()

	g := graph.NewGraph()

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

	if n, _ := g.Node(m); n != nil {
		n.Title = "nanoKONTROL"
		n.Meta = map[string]interface{}{"x": 40.0, "y": 80.0}
	}

	tab := binding.NewTable()
	tab.Bind(binding.Binding{
		Key:  midi.Key{Device: "nano", Channel: 1, Control: 7},
		Node: m,
		Port: "cc7",
	})

	return g, tab
}

func TestRoundTrip(t *testing.T) {
	g, tab := sample(t)

	profiles := []binding.Profile{
		{Name: "p", Bindings: tab.List()},
	}
	devices := []midi.Device{
		{Name: "nano", Port: "hw:1,0,0"},
	}

	doc := Export(g, tab, profiles, devices)
	g2, tab2, err := Import(doc)
	if err != nil {
		t.Fatal(err)
	}

	doc2 := Export(g2, tab2, doc.Profiles, doc.Devices)
	if JS(doc2) != JS(doc) {
		t.Fatalf("round trip changed the workspace:\n%s\nvs\n%s", JS(doc), JS(doc2))
	}

	// Ids survive, so the binding still lands.
	var m graph.NodeID
	for _, n := range g2.Nodes() {
		if n.Kind == graph.MidiInput {
			m = n.ID
			if n.Title != "nanoKONTROL" {
				t.Fatalf("title lost: %q", n.Title)
			}
		}
	}
	b, have := tab2.Resolve(midi.Key{Device: "nano", Channel: 1, Control: 7})
	if !have || b.Node != m {
		t.Fatalf("binding lost: %s", JS(b))
	}
}

func TestImportRejectsBadDocs(t *testing.T) {
	g, tab := sample(t)
	doc := Export(g, tab, nil, nil)

	newer := *doc
	newer.Version = Version + 1
	if _, _, err := Import(&newer); err == nil {
		t.Fatal("future version accepted")
	}

	badKind := *doc
	badKind.Nodes = append([]NodeSnap{}, doc.Nodes...)
	badKind.Nodes[0] = NodeSnap{ID: 99, Kind: graph.Kind("midi.out")}
	if _, _, err := Import(&badKind); err == nil {
		t.Fatal("unknown kind accepted")
	}

	badEdge := *doc
	badEdge.Edges = append([]EdgeSnap{}, doc.Edges...)
	badEdge.Edges[0].To.Port = "nope"
	if _, _, err := Import(&badEdge); err == nil {
		t.Fatal("edge to a phantom port accepted")
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "midas.db"))
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestStoreDocs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.LoadDoc(ctx, "studio"); err != NotFound {
		t.Fatalf("wanted NotFound, got %v", err)
	}

	g, tab := sample(t)
	doc := Export(g, tab, nil, nil)
	if err := s.SaveDoc(ctx, "studio", doc); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadDoc(ctx, "studio")
	if err != nil {
		t.Fatal(err)
	}
	if JS(got) != JS(doc) {
		t.Fatalf("store changed the doc:\n%s\nvs\n%s", JS(doc), JS(got))
	}

	ids, err := s.Workspaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if JS(ids) != `["studio"]` {
		t.Fatalf("workspaces %s", JS(ids))
	}

	if err = s.RemoveDoc(ctx, "studio"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.LoadDoc(ctx, "studio"); err != NotFound {
		t.Fatalf("wanted NotFound after remove, got %v", err)
	}
}

func TestStoreProfiles(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p := binding.Profile{
		Name: "nanokontrol",
		Bindings: []binding.Binding{
			{Key: midi.Key{Device: "nano", Channel: 1, Control: 7}, Node: 3, Port: "cc7"},
		},
	}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	ps, err := s.LoadProfiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || JS(ps[0]) != JS(p) {
		t.Fatalf("profiles %s", JS(ps))
	}
}

func TestCheckpoint(t *testing.T) {
	s := openStore(t)

	g, tab := sample(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Checkpoint(ctx, "studio", time.Hour, func() *Doc {
			return Export(g, tab, nil, nil)
		})
		close(done)
	}()

	// The interval never fires; the final save on shutdown must.
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("checkpoint didn't stop")
	}

	if _, err := s.LoadDoc(context.Background(), "studio"); err != nil {
		t.Fatal(err)
	}
}
