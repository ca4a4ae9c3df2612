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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/midasctl/midas/util"
)

// outputCap bounds how much command output we keep for diagnostics.
const outputCap = 4 * 1024

// ShellRunner launches external commands.  The command is a template
// rendered with event context, run under a wall-clock timeout; the
// process is killed if it exceeds the budget.
type ShellRunner struct {
	// Timeout is the default per-invocation budget.  A node config
	// can shorten or extend it with "timeoutMs".
	Timeout time.Duration
}

func (r *ShellRunner) Run(ctx context.Context, inv Invocation) error {
	command := strings.TrimSpace(inv.Config.String("command", ""))
	if command == "" {
		return nil
	}

	command = RenderTemplate(command, inv)

	timeout := r.Timeout
	if ms := inv.Config.Float("timeoutMs", 0); 0 < ms {
		timeout = time.Duration(ms) * time.Millisecond
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if inv.Config.Bool("shell", true) {
		cmd = exec.CommandContext(tctx, "/bin/sh", "-c", command)
	} else {
		parts := strings.Fields(command)
		cmd = exec.CommandContext(tctx, parts[0], parts[1:]...)
	}

	if dir := inv.Config.String("dir", ""); dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), eventEnv(inv)...)

	var out bytes.Buffer
	cmd.Stdout = &capped{&out}
	cmd.Stderr = &capped{&out}

	err := cmd.Run()

	if tctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s: %s", Timeout, timeout, command)
	}
	if err != nil {
		return fmt.Errorf("command failed: %s: %s", err, strings.TrimSpace(out.String()))
	}

	util.Logf("shell node %d ran %q (%d bytes of output)", inv.Node, command, out.Len())
	return nil
}

// RenderTemplate substitutes ${value}, ${control}, ${channel},
// ${device}, and ${kind} from the triggering event.  Unknown
// references render as empty, same as os.Expand.
func RenderTemplate(s string, inv Invocation) string {
	return os.Expand(s, func(name string) string {
		switch name {
		case "value":
			return trimFloat(inv.Event.Value)
		case "control":
			return strconv.Itoa(inv.Event.Control)
		case "channel":
			return strconv.Itoa(inv.Event.Channel)
		case "device":
			return inv.Event.Device
		case "kind":
			return string(inv.Event.Kind)
		case "node":
			return strconv.Itoa(int(inv.Node))
		}
		return ""
	})
}

func eventEnv(inv Invocation) []string {
	return []string{
		"MIDAS_VALUE=" + trimFloat(inv.Event.Value),
		"MIDAS_CONTROL=" + strconv.Itoa(inv.Event.Control),
		"MIDAS_CHANNEL=" + strconv.Itoa(inv.Event.Channel),
		"MIDAS_DEVICE=" + inv.Event.Device,
		"MIDAS_KIND=" + string(inv.Event.Kind),
		"MIDAS_NODE=" + strconv.Itoa(int(inv.Node)),
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// capped discards writes past outputCap.
type capped struct {
	buf *bytes.Buffer
}

func (c *capped) Write(bs []byte) (int, error) {
	n := len(bs)
	if room := outputCap - c.buf.Len(); 0 < room {
		if room < n {
			bs = bs[:room]
		}
		c.buf.Write(bs)
	}
	return n, nil
}
