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

// These errors are user errors, not internal errors.  Structural
// violations are rejected before any mutation, so a caller that sees
// one of these knows the graph is exactly as it was.

import (
	"errors"
	"fmt"
)

var (
	// TypeMismatch occurs when Connect is given ports whose value
	// types are incompatible.
	TypeMismatch = errors.New("port type mismatch")

	// PortOccupied occurs when Connect is given a destination input
	// port that already has an incoming edge (fan-in is 1).
	PortOccupied = errors.New("input port already has an incoming edge")

	// CycleDetected occurs when Connect is given an edge that would
	// make the graph cyclic.
	CycleDetected = errors.New("edge would create a cycle")

	// NotAnEdge occurs when Disconnect is given an unknown EdgeID.
	NotAnEdge = errors.New("no such edge")

	errUnknownKind = errors.New("unknown node kind")
	errNodeExists  = errors.New("node id already in use")
)

// UnknownNode occurs when an operation names a NodeID that isn't in the
// graph.
type UnknownNode struct {
	ID NodeID
}

func (e *UnknownNode) Error() string {
	return fmt.Sprintf("node %d not in graph", e.ID)
}

// UnknownPort occurs when an operation names a port that its node
// doesn't have (or has with the wrong direction).
type UnknownPort struct {
	Ref PortRef
}

func (e *UnknownPort) Error() string {
	return fmt.Sprintf(`node %d has no port "%s"`, e.Ref.Node, e.Ref.Port)
}

// InvalidConfig occurs when AddNode is given a config that is malformed
// for the requested kind.
type InvalidConfig struct {
	Kind Kind
	Err  error
}

func (e *InvalidConfig) Error() string {
	return fmt.Sprintf(`bad config for kind "%s": %s`, e.Kind, e.Err)
}

func (e *InvalidConfig) Unwrap() error {
	return e.Err
}
