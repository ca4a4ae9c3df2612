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

package graph

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind is the closed set of node kinds.  There is deliberately no way
// to register new kinds at runtime: the graph is a wiring surface, not
// a programming language.
type Kind string

const (
	MidiInput    Kind = "midi.input"
	ValueMap     Kind = "value.map"
	Volume       Kind = "action.volume"
	ShellCommand Kind = "action.shell"
	Script       Kind = "action.script"
)

// PortType is the declared value type of a port.  An edge may only
// connect ports of compatible types, where Any is compatible with
// everything.
type PortType string

const (
	Number      PortType = "number"
	TriggerPort PortType = "trigger"
	Any         PortType = "any"
)

// Compatible reports whether a value of type a can flow into a port of
// type b.
func Compatible(a, b PortType) bool {
	if a == Any || b == Any {
		return true
	}
	return a == b
}

// PortSpec declares one port of a node.
type PortSpec struct {
	Name string   `json:"name"`
	Type PortType `json:"type"`
}

// Config is a node's kind-specific configuration.  We use a generic map
// rather than per-kind structs so that configs survive YAML/JSON
// round-trips without registration ceremony; the accessors below do the
// necessary coercion.
type Config map[string]interface{}

// Float fetches a numeric config value, tolerating the int/float64
// ambiguity that comes with parsed JSON and YAML.
func (c Config) Float(key string, def float64) float64 {
	x, have := c[key]
	if !have {
		return def
	}
	switch v := x.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func (c Config) String(key, def string) string {
	if s, is := c[key].(string); is {
		return s
	}
	return def
}

func (c Config) Bool(key string, def bool) bool {
	if b, is := c[key].(bool); is {
		return b
	}
	return def
}

// Copy makes a shallow copy.
func (c Config) Copy() Config {
	acc := make(Config, len(c))
	for k, v := range c {
		acc[k] = v
	}
	return acc
}

// Template describes how to instantiate a node of one kind.
type Template struct {
	Kind  Kind
	Title string

	// Doc is Markdown shown by rendering tools.
	Doc string

	Inputs  []PortSpec
	Outputs []PortSpec

	// DynamicOutputs, if not nil, derives the node's output ports
	// from its config instead of using Outputs.
	DynamicOutputs func(Config) ([]PortSpec, error)

	// Validate rejects a malformed config.  AddNode wraps whatever
	// this returns in an InvalidConfig.
	Validate func(Config) error
}

var templates = map[Kind]*Template{
	MidiInput: {
		Kind:  MidiInput,
		Title: "MIDI Input",
		Doc: "Entry point for control events.  Each configured port " +
			"(`ports: [{name, type}]`) is an output that a physical " +
			"control can be bound to.",
		DynamicOutputs: midiInputPorts,
		Validate: func(c Config) error {
			_, err := midiInputPorts(c)
			return err
		},
	},
	ValueMap: {
		Kind:  ValueMap,
		Title: "Value Map",
		Doc: "Maps `in` from `[inMin,inMax]` to `[outMin,outMax]` with a " +
			"`curve` of `linear`, `log`, `exp`, or `step` (with `steps`).  " +
			"Output is clamped and deterministic.",
		Inputs:   []PortSpec{{Name: "in", Type: Number}},
		Outputs:  []PortSpec{{Name: "out", Type: Number}},
		Validate: validateValueMap,
	},
	Volume: {
		Kind:  Volume,
		Title: "Volume",
		Doc: "Sets the level of the audio `sink` named in the config.  " +
			"The incoming value is clamped to [0,1].",
		Inputs: []PortSpec{{Name: "in", Type: Number}},
	},
	ShellCommand: {
		Kind:  ShellCommand,
		Title: "Shell Command",
		Doc: "Runs the `command` template when triggered.  `${value}`, " +
			"`${control}`, `${channel}`, and `${device}` are substituted " +
			"from the triggering event.",
		Inputs: []PortSpec{{Name: "trigger", Type: Any}},
		Validate: func(c Config) error {
			if strings.TrimSpace(c.String("command", "")) == "" {
				return errors.New("empty command")
			}
			return nil
		},
	},
	Script: {
		Kind:  Script,
		Title: "Script",
		Doc: "Runs the ECMAScript in `source` when triggered, with " +
			"read-only `event`, `node`, and `ctx` in scope.",
		Inputs: []PortSpec{{Name: "trigger", Type: Any}},
		Validate: func(c Config) error {
			if strings.TrimSpace(c.String("source", "")) == "" {
				return errors.New("empty source")
			}
			return nil
		},
	},
}

// TemplateFor returns the template for the given kind.
func TemplateFor(kind Kind) (*Template, bool) {
	t, have := templates[kind]
	return t, have
}

// Kinds returns all node kinds in a stable order.
func Kinds() []Kind {
	return []Kind{MidiInput, ValueMap, Volume, ShellCommand, Script}
}

// IsAction reports whether nodes of this kind perform a side effect
// when they fire.
func (k Kind) IsAction() bool {
	switch k {
	case Volume, ShellCommand, Script:
		return true
	}
	return false
}

func midiInputPorts(c Config) ([]PortSpec, error) {
	x, have := c["ports"]
	if !have {
		return []PortSpec{{Name: "value", Type: Number}}, nil
	}
	xs, is := x.([]interface{})
	if !is {
		return nil, fmt.Errorf("ports is a %T, not a list", x)
	}
	if len(xs) == 0 {
		return nil, errors.New("ports list is empty")
	}
	acc := make([]PortSpec, 0, len(xs))
	seen := make(map[string]bool, len(xs))
	for _, x := range xs {
		m, is := x.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("port entry is a %T, not a map", x)
		}
		spec := PortSpec{
			Name: Config(m).String("name", ""),
			Type: PortType(Config(m).String("type", string(Number))),
		}
		if spec.Name == "" {
			return nil, errors.New("port without a name")
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf(`duplicate port "%s"`, spec.Name)
		}
		seen[spec.Name] = true
		// Port values travel as numbers, so only types a number can
		// satisfy are declarable.
		switch spec.Type {
		case Number, TriggerPort:
		default:
			return nil, fmt.Errorf(`port "%s" has unknown type "%s"`, spec.Name, spec.Type)
		}
		acc = append(acc, spec)
	}
	return acc, nil
}

func validateValueMap(c Config) error {
	if c.Float("inMax", 127) == c.Float("inMin", 0) {
		return errors.New("inMin equals inMax")
	}
	switch curve := c.String("curve", "linear"); curve {
	case "linear", "log", "exp":
	case "step":
		if c.Float("steps", 8) < 1 {
			return errors.New("steps must be at least 1")
		}
	default:
		return fmt.Errorf(`unknown curve "%s"`, curve)
	}
	return nil
}

// MapValue applies a ValueMap node's configured transform: a clamped
// affine map with an optional curve.  The result depends only on the
// config and the input, so repeated identical inputs give identical
// outputs.
func MapValue(c Config, v float64) float64 {
	var (
		inMin  = c.Float("inMin", 0)
		inMax  = c.Float("inMax", 127)
		outMin = c.Float("outMin", 0)
		outMax = c.Float("outMax", 1)
	)

	t := (v - inMin) / (inMax - inMin)
	t = clamp01(t)

	switch c.String("curve", "linear") {
	case "log":
		t = math.Log1p(t * (math.E - 1))
	case "exp":
		t = (math.Exp(t) - 1) / (math.E - 1)
	case "step":
		steps := math.Max(1, c.Float("steps", 8))
		t = math.Round(t*steps) / steps
	}

	out := outMin + t*(outMax-outMin)

	// Clamp against the output range whichever way it's oriented
	// (an inverted range is how you get a reversed fader).
	lo, hi := outMin, outMax
	if hi < lo {
		lo, hi = hi, lo
	}
	return math.Min(hi, math.Max(lo, out))
}

func clamp01(t float64) float64 {
	return math.Min(1, math.Max(0, t))
}
