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

// Package action executes the side effects of terminal nodes: volume
// changes, shell commands, and embedded scripts.
//
// Runners are invoked from the engine's worker pool, never from the
// dispatch loop, so a slow runner delays nothing but itself.  Every
// runner error is per-invocation: reported, not fatal.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// Timeout marks a runner error caused by exceeding the invocation's
// wall-clock budget.  Check with errors.Is.
var Timeout = errors.New("action timed out")

// Invocation is everything a runner gets: the terminal node's identity
// and config, a snapshot of its input port values, and the event that
// set it off.
type Invocation struct {
	Node   graph.NodeID
	Kind   graph.Kind
	Config graph.Config
	Inputs map[string]float64
	Event  midi.ControlEvent
}

// Runner executes one invocation.  Run must honor ctx and must not
// block past its configured timeout.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// Registry maps node kinds to their runners.
type Registry map[graph.Kind]Runner

// Mixer is the external volume effector.  The real implementation
// shells out to wpctl or pactl; tests use a fake.
type Mixer interface {
	// SetLevel sets the named sink's level in [0,1].  An empty sink
	// means the system default.
	SetLevel(ctx context.Context, sink string, level float64) error
}

// Standard builds the registry of stock runners with the usual
// timeouts.
func Standard(mixer Mixer) Registry {
	return Registry{
		graph.Volume:       &VolumeRunner{Mixer: mixer},
		graph.ShellCommand: &ShellRunner{Timeout: 5 * time.Second},
		graph.Script: &ScriptRunner{
			Timeout: time.Second,
			Mixer:   mixer,
		},
	}
}

// Failure describes one failed invocation for diagnostics.
type Failure struct {
	Node graph.NodeID
	Kind graph.Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s node %d: %s", f.Kind, f.Node, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// TimedOut reports whether the failure was a timeout.
func (f *Failure) TimedOut() bool {
	return errors.Is(f.Err, Timeout)
}
