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
	"github.com/midasctl/midas/action"
	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// evaluate is one pass over the subgraph downstream of a binding's
// target: set the bound port, then walk the cached topological order
// recomputing exactly the nodes whose inputs were written this pass.
// Each node evaluates at most once, so a diamond-shaped subgraph sees
// one consistent update, not two.
//
// Terminal action nodes that fired come back as invocations for the
// worker pool.  Caller holds e.mu.
func (e *Engine) evaluate(b binding.Binding, ev midi.ControlEvent) []action.Invocation {
	g := e.graph

	n, have := g.Node(b.Node)
	if !have {
		// A binding that survived its node is a bug in the cascade,
		// but don't let it wedge the control.
		e.bindings.Unbind(b.Key)
		return nil
	}
	if _, have := n.Port(b.Port); !have {
		e.bindings.Unbind(b.Key)
		return nil
	}

	n.SetValue(b.Port, ev.Value)

	dirty := map[graph.NodeID]bool{b.Node: true}

	order := g.TopoOrder()
	start := 0
	for i, id := range order {
		if id == b.Node {
			start = i
			break
		}
	}

	var invs []action.Invocation
	for _, id := range order[start:] {
		if !dirty[id] {
			continue
		}
		node, have := g.Node(id)
		if !have {
			continue
		}

		evalNode(node)

		if node.Kind.IsAction() && g.Terminal(id) {
			invs = append(invs, action.Invocation{
				Node:   id,
				Kind:   node.Kind,
				Config: node.Config.Copy(),
				Inputs: node.InputValues(),
				Event:  ev,
			})
			continue
		}

		for _, edge := range g.Outgoing(id) {
			v, have := node.Value(edge.From.Port)
			if !have {
				continue
			}
			dst, have := g.Node(edge.To.Node)
			if !have {
				continue
			}
			dst.SetValue(edge.To.Port, v)
			dirty[edge.To.Node] = true
		}
	}

	return invs
}

// evalNode computes a node's outputs from its inputs.  MidiInput
// outputs are written directly by binding resolution, and action nodes
// consume their inputs in the sandbox, so only transforming kinds do
// work here.
func evalNode(n *graph.Node) {
	switch n.Kind {
	case graph.ValueMap:
		if in, have := n.Value("in"); have {
			n.SetValue("out", graph.MapValue(n.Config, in))
		}
	}
}
