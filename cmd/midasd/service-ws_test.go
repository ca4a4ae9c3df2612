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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/midasctl/midas/action"
	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/engine"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWebSocketOps(t *testing.T) {
	s := testService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(s.apiHandler(ctx))
	defer server.Close()

	c := dial(t, server)
	defer c.Close()

	if err := c.WriteJSON(Op{Op: "add", Kind: graph.MidiInput}); err != nil {
		t.Fatal(err)
	}

	var res Result
	if err := c.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if res.Op != "add" || res.Error != "" || res.Node == nil {
		t.Fatalf("add over ws: %#v", res)
	}

	if err := c.WriteJSON(Op{Op: "snapshot"}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if res.Doc == nil || len(res.Doc.Nodes) != 1 {
		t.Fatalf("snapshot over ws: %#v", res)
	}
}

func TestWebSocketConnectionChurn(t *testing.T) {
	// A tiny event queue with nobody running the engine makes every
	// extra Deliver produce a drop diagnostic for the firehose.
	g := graph.NewGraph()
	s := &Service{
		engine: engine.New(g, binding.NewTable(), action.Registry{},
			&engine.Options{QueueSize: 1}),
		profiles: binding.NewProfileSet(),
		devices:  midi.NewDeviceSet(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(s.apiHandler(ctx))
	defer server.Close()

	ev := midi.ControlEvent{Device: "nano", Channel: 1, Control: 7, Kind: midi.Continuous}

	// Clients coming and going must not upset the fan-out, even when
	// it reaches a connection that is on its way out.
	for i := 0; i < 10; i++ {
		c := dial(t, server)

		for j := 0; j < 5; j++ {
			s.engine.Deliver(ev)
			s.engine.Deliver(ev)
		}

		c.Close()
		for j := 0; j < 5; j++ {
			s.engine.Deliver(ev)
			s.engine.Deliver(ev)
		}
	}

	// Let the fan-out chew through whatever is left, then prove the
	// service is still alive.
	time.Sleep(50 * time.Millisecond)

	c := dial(t, server)
	defer c.Close()
	if err := c.WriteJSON(Op{Op: "snapshot"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		var res Result
		c.SetReadDeadline(deadline)
		if err := c.ReadJSON(&res); err != nil {
			t.Fatal(err)
		}
		// Diagnostics share the connection; skip them.
		if res.Op == "snapshot" {
			if res.Doc == nil {
				t.Fatalf("snapshot: %#v", res)
			}
			return
		}
	}
}
