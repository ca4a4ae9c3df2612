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

package main

import (
	"context"
	"errors"

	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
	"github.com/midasctl/midas/workspace"
)

// Op is one request on the ops surface.  This is the entire external
// API of the core: graph edits, learn mode, event delivery, and
// snapshots.  Everything else (canvas, menus, device pickers) lives in
// clients.
type Op struct {
	Op string `json:"op"`

	// add
	Kind   graph.Kind   `json:"kind,omitempty"`
	Config graph.Config `json:"config,omitempty"`

	// connect
	From *graph.PortRef `json:"from,omitempty"`
	To   *graph.PortRef `json:"to,omitempty"`

	// disconnect
	Edge *graph.EdgeID `json:"edge,omitempty"`

	// remove, learn
	Node *graph.NodeID `json:"node,omitempty"`
	Port string        `json:"port,omitempty"`

	// bind, unbind
	Key *midi.Key `json:"key,omitempty"`

	// event
	Event *midi.ControlEvent `json:"event,omitempty"`
}

// Result answers one Op.
type Result struct {
	Op    string         `json:"op"`
	Error string         `json:"error,omitempty"`
	Node  *graph.NodeID  `json:"node,omitempty"`
	Edge  *graph.EdgeID  `json:"edge,omitempty"`
	Doc   *workspace.Doc `json:"doc,omitempty"`
}

var badOp = errors.New("bad op")

// Do executes one op against the service's engine.  Structural errors
// come back in the Result; nothing here is fatal.
func (s *Service) Do(ctx context.Context, op Op) Result {
	res := Result{Op: op.Op}
	err := s.do(ctx, op, &res)
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (s *Service) do(ctx context.Context, op Op, res *Result) error {
	switch op.Op {

	case "add":
		return s.engine.Edit(func(g *graph.Graph, _ *binding.Table) error {
			id, err := g.AddNode(op.Kind, op.Config)
			if err != nil {
				return err
			}
			res.Node = &id
			return nil
		})

	case "connect":
		if op.From == nil || op.To == nil {
			return badOp
		}
		return s.engine.Edit(func(g *graph.Graph, _ *binding.Table) error {
			id, err := g.Connect(*op.From, *op.To)
			if err != nil {
				return err
			}
			res.Edge = &id
			return nil
		})

	case "disconnect":
		if op.Edge == nil {
			return badOp
		}
		return s.engine.Edit(func(g *graph.Graph, _ *binding.Table) error {
			return g.Disconnect(*op.Edge)
		})

	case "remove":
		if op.Node == nil {
			return badOp
		}
		return s.engine.Edit(func(g *graph.Graph, _ *binding.Table) error {
			return g.RemoveNode(*op.Node)
		})

	case "learn":
		if op.Node == nil || op.Port == "" {
			return badOp
		}
		return s.engine.Learn(*op.Node, op.Port)

	case "unlearn":
		s.engine.CancelLearn()
		return nil

	case "bind":
		if op.Key == nil || op.Node == nil || op.Port == "" {
			return badOp
		}
		return s.engine.Edit(func(_ *graph.Graph, t *binding.Table) error {
			t.Bind(binding.Binding{Key: *op.Key, Node: *op.Node, Port: op.Port})
			return nil
		})

	case "unbind":
		if op.Key == nil {
			return badOp
		}
		return s.engine.Edit(func(_ *graph.Graph, t *binding.Table) error {
			t.Unbind(*op.Key)
			return nil
		})

	case "event":
		if op.Event == nil {
			return badOp
		}
		s.engine.Deliver(*op.Event)
		return nil

	case "snapshot":
		res.Doc = s.snapshot()
		return nil
	}

	return badOp
}
