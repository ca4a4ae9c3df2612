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

// midasd is the control-plane daemon: it loads a workspace, runs the
// dispatch engine against real effectors, serves the ops protocol over
// WebSocket, and checkpoints state back to disk.
//
// Typical use:
//
//	midasd -db midas.db -workspace default -ws :8367
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/midasctl/midas/action"
	"github.com/midasctl/midas/binding"
	"github.com/midasctl/midas/engine"
	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
	"github.com/midasctl/midas/source/mqtt"
	"github.com/midasctl/midas/util"
	"github.com/midasctl/midas/workspace"
)

// Service glues the engine to the store and the ops surface.
type Service struct {
	engine    *engine.Engine
	store     *workspace.Store
	workspace string
	profiles  *binding.ProfileSet
	devices   *midi.DeviceSet
}

// snapshot exports the workspace with the engine held still.
func (s *Service) snapshot() *workspace.Doc {
	var doc *workspace.Doc
	s.engine.Edit(func(g *graph.Graph, t *binding.Table) error {
		doc = workspace.Export(g, t, s.profiles.List(), s.devices.List())
		return nil
	})
	return doc
}

func main() {
	var (
		dbFile      = flag.String("db", "midas.db", "Bolt file for workspaces and profiles")
		wsID        = flag.String("workspace", "default", "Workspace id to load")
		wsAddr      = flag.String("ws", ":8367", "WebSocket ops listen address")
		profFile    = flag.String("profiles", "", "Optional YAML profiles file to merge in")
		checkpoint  = flag.Duration("checkpoint", time.Minute, "Checkpoint interval")
		allowHosts  = flag.String("allow-hosts", "", "Comma-separated hosts scripts may fetch")
		mqttBroker  = flag.String("mqtt-broker", "", "Optional MQTT broker (e.g. tcp://localhost:1883)")
		mqttTopics  = flag.String("mqtt-topics", "", "Comma-separated MQTT topics to consume as sources")
		workers     = flag.Int("workers", 4, "Action worker pool size")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	util.Logging = *verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := workspace.NewStore(*dbFile)
	if err := store.Open(); err != nil {
		log.Fatalf("can't open %s: %s", *dbFile, err)
	}
	defer store.Close()

	s, err := newService(ctx, store, *wsID, *profFile, *allowHosts, *workers)
	if err != nil {
		log.Fatal(err)
	}

	go s.engine.Run(ctx)
	go store.Checkpoint(ctx, *wsID, *checkpoint, s.snapshot)

	if *mqttBroker != "" {
		for _, topic := range strings.Split(*mqttTopics, ",") {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			src := &mqtt.Source{
				Broker:   *mqttBroker,
				ClientID: "midasd-" + topic,
				Topic:    topic,
			}
			s.devices.Add(midi.Device{Name: src.Name(), Port: src.Name()})
			s.engine.Attach(ctx, src)
		}
	}

	if err := s.WebSocketService(ctx, *wsAddr); err != nil {
		log.Fatal(err)
	}

	// Give the final checkpoint a moment.
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
}

func newService(ctx context.Context, store *workspace.Store, wsID, profFile, allowHosts string, workers int) (*Service, error) {
	var (
		g   *graph.Graph
		t   *binding.Table
		doc *workspace.Doc
		err error
	)

	doc, err = store.LoadDoc(ctx, wsID)
	switch {
	case err == nil:
		if g, t, err = workspace.Import(doc); err != nil {
			return nil, err
		}
		log.Printf("loaded workspace %s: %d nodes, %d bindings",
			wsID, len(doc.Nodes), len(doc.Bindings))
	case errors.Is(err, workspace.NotFound):
		g, t = graph.NewGraph(), binding.NewTable()
		log.Printf("starting fresh workspace %s", wsID)
	default:
		return nil, err
	}

	profiles := binding.NewProfileSet()
	if doc != nil {
		profiles.Load(doc.Profiles)
	}
	if stored, err := store.LoadProfiles(ctx); err == nil {
		for _, p := range stored {
			profiles.Put(p)
		}
	}
	if profFile != "" {
		ps, err := binding.ReadProfilesFile(profFile)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			profiles.Put(p)
			p.Apply(t)
		}
	}

	devices := midi.NewDeviceSet()
	if doc != nil {
		devices.Import(doc.Devices)
	}

	mixer := &ExecMixer{}
	runners := action.Standard(mixer)
	if allowHosts != "" {
		if sr, is := runners[graph.Script].(*action.ScriptRunner); is {
			sr.AllowHosts = strings.Split(allowHosts, ",")
		}
	}

	e := engine.New(g, t, runners, &engine.Options{Workers: workers})

	return &Service{
		engine:    e,
		store:     store,
		workspace: wsID,
		profiles:  profiles,
		devices:   devices,
	}, nil
}
