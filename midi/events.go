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

// Package midi defines normalized control-surface events and the
// contract for things that produce them.
//
// Raw transport decoding (ALSA, CoreMIDI, whatever) happens elsewhere.
// By the time an event gets here, it's just a device name, a channel, a
// control number, and a value.
package midi

import (
	"context"
	"fmt"
	"time"
)

// EventKind classifies a control event by how its value behaves.
type EventKind string

const (
	// Continuous events carry a value that varies over a range: a
	// fader, a knob, an expression pedal.
	Continuous EventKind = "continuous"

	// Trigger events are discrete: a pad hit, a button press.  The
	// value (velocity, usually) is incidental.
	Trigger EventKind = "trigger"
)

// ControlEvent is one normalized message from a control surface.
type ControlEvent struct {
	Device    string    `json:"device"`
	Channel   int       `json:"channel"`
	Control   int       `json:"control"`
	Value     float64   `json:"value"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the physical-control identity of this event.
func (e ControlEvent) Key() Key {
	return Key{
		Device:  e.Device,
		Channel: e.Channel,
		Control: e.Control,
	}
}

// Key identifies one physical (or virtual) control: the triple that
// bindings are keyed by.
type Key struct {
	Device  string `json:"device"`
	Channel int    `json:"channel"`
	Control int    `json:"control"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Device, k.Channel, k.Control)
}

// Source is an event source adapter: a lazy, infinite, non-restartable
// producer of normalized events for one device (physical or virtual).
//
// Run blocks until the source fails or ctx is canceled.  Implementations
// must emit monotonically non-decreasing timestamps.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(ControlEvent)) error
}
