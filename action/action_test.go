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

package action

import (
	"context"
	"errors"
	"testing"

	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/midi"
)

// fakeMixer records SetLevel calls.
type fakeMixer struct {
	sink  string
	level float64
	calls int
	err   error
}

func (m *fakeMixer) SetLevel(ctx context.Context, sink string, level float64) error {
	m.sink = sink
	m.level = level
	m.calls++
	return m.err
}

func inv(kind graph.Kind, config graph.Config, inputs map[string]float64) Invocation {
	return Invocation{
		Node:   1,
		Kind:   kind,
		Config: config,
		Inputs: inputs,
		Event: midi.ControlEvent{
			Device:  "nano",
			Channel: 1,
			Control: 7,
			Value:   64,
			Kind:    midi.Continuous,
		},
	}
}

func TestVolume(t *testing.T) {
	m := &fakeMixer{}
	r := &VolumeRunner{Mixer: m}

	err := r.Run(context.Background(), inv(graph.Volume,
		graph.Config{"sink": "speakers"},
		map[string]float64{"in": 0.5}))
	if err != nil {
		t.Fatal(err)
	}
	if m.sink != "speakers" || m.level != 0.5 {
		t.Fatalf("SetLevel(%q, %v)", m.sink, m.level)
	}
}

func TestVolumeClamps(t *testing.T) {
	m := &fakeMixer{}
	r := &VolumeRunner{Mixer: m}

	for _, x := range []struct{ in, want float64 }{
		{-0.5, 0},
		{1.5, 1},
	} {
		if err := r.Run(context.Background(), inv(graph.Volume, nil,
			map[string]float64{"in": x.in})); err != nil {
			t.Fatal(err)
		}
		if m.level != x.want {
			t.Fatalf("level %v for input %v", m.level, x.in)
		}
	}
}

func TestVolumeNoValue(t *testing.T) {
	m := &fakeMixer{}
	r := &VolumeRunner{Mixer: m}

	// A trigger with no "in" value is a no-op, not an error.
	if err := r.Run(context.Background(), inv(graph.Volume, nil, nil)); err != nil {
		t.Fatal(err)
	}
	if m.calls != 0 {
		t.Fatal("mixer called with nothing to set")
	}
}

func TestVolumeNoMixer(t *testing.T) {
	r := &VolumeRunner{}
	err := r.Run(context.Background(), inv(graph.Volume, nil,
		map[string]float64{"in": 0.5}))
	if !errors.Is(err, NoMixer) {
		t.Fatalf("got %v", err)
	}
}

func TestRenderTemplate(t *testing.T) {
	x := inv(graph.ShellCommand, nil, nil)

	got := RenderTemplate("notify-send ${device} c${channel}/${control}=${value} (${kind}) #${node} ${mystery}", x)
	want := "notify-send nano c1/7=64 (continuous) #1 "
	if got != want {
		t.Fatalf("rendered %q, wanted %q", got, want)
	}
}

func TestStandardRegistry(t *testing.T) {
	reg := Standard(&fakeMixer{})
	for _, kind := range []graph.Kind{graph.Volume, graph.ShellCommand, graph.Script} {
		if _, have := reg[kind]; !have {
			t.Fatalf("no runner for %s", kind)
		}
	}
}

func TestFailureTimedOut(t *testing.T) {
	f := &Failure{Node: 1, Kind: graph.Script, Err: errors.New("plain")}
	if f.TimedOut() {
		t.Fatal("plain error reported as timeout")
	}
	f.Err = errors.New("wrapped: " + Timeout.Error())
	if f.TimedOut() {
		t.Fatal("string match is not wrapping")
	}
	f.Err = context.DeadlineExceeded
	if f.TimedOut() {
		t.Fatal("DeadlineExceeded is not our Timeout")
	}
}
