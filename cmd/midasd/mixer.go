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
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ExecMixer implements action.Mixer by shelling out to whatever the
// host has: wpctl (PipeWire) or pactl (PulseAudio).
type ExecMixer struct {
	mu      sync.Mutex
	backend string
	probed  bool
}

func (m *ExecMixer) probe() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probed {
		return m.backend
	}
	m.probed = true
	for _, candidate := range []string{"wpctl", "pactl"} {
		if _, err := exec.LookPath(candidate); err == nil {
			m.backend = candidate
			break
		}
	}
	return m.backend
}

func (m *ExecMixer) SetLevel(ctx context.Context, sink string, level float64) error {
	if level < 0 {
		level = 0
	} else if 1 < level {
		level = 1
	}

	backend := m.probe()
	if backend == "" {
		return fmt.Errorf("no volume backend found (want wpctl or pactl)")
	}

	var args []string
	switch backend {
	case "wpctl":
		if sink == "" {
			sink = "@DEFAULT_AUDIO_SINK@"
		}
		args = []string{"set-volume", sink, fmt.Sprintf("%.3f", level)}
	case "pactl":
		if sink == "" {
			sink = "@DEFAULT_SINK@"
		}
		args = []string{"set-sink-volume", sink, fmt.Sprintf("%d%%", int(level*100+0.5))}
	}

	tctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(tctx, backend, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %s: %s", backend, strings.Join(args, " "),
			err, strings.TrimSpace(string(out)))
	}
	return nil
}
