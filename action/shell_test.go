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
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/midasctl/midas/graph"
)

func shellInv(command string) Invocation {
	return inv(graph.ShellCommand, graph.Config{"command": command}, nil)
}

func TestShellRun(t *testing.T) {
	r := &ShellRunner{Timeout: 5 * time.Second}

	filename := filepath.Join(t.TempDir(), "out")
	if err := r.Run(context.Background(), shellInv("printf v=${value} > "+filename)); err != nil {
		t.Fatal(err)
	}

	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(bs); got != "v=64" {
		t.Fatalf("command wrote %q", got)
	}
}

func TestShellEnv(t *testing.T) {
	r := &ShellRunner{Timeout: 5 * time.Second}

	filename := filepath.Join(t.TempDir(), "out")
	command := `printf "$MIDAS_DEVICE/$MIDAS_CHANNEL/$MIDAS_CONTROL" > ` + filename
	if err := r.Run(context.Background(), shellInv(command)); err != nil {
		t.Fatal(err)
	}

	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(bs); got != "nano/1/7" {
		t.Fatalf("environment gave %q", got)
	}
}

func TestShellEmptyCommand(t *testing.T) {
	r := &ShellRunner{Timeout: time.Second}
	if err := r.Run(context.Background(), inv(graph.ShellCommand, nil, nil)); err != nil {
		t.Fatal(err)
	}
}

func TestShellFailure(t *testing.T) {
	r := &ShellRunner{Timeout: 5 * time.Second}

	err := r.Run(context.Background(), shellInv("echo oops >&2; exit 3"))
	if err == nil {
		t.Fatal("nonzero exit not reported")
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Fatalf("stderr not captured: %v", err)
	}
}

func TestShellTimeout(t *testing.T) {
	r := &ShellRunner{Timeout: 100 * time.Millisecond}

	then := time.Now()
	err := r.Run(context.Background(), shellInv("sleep 10"))
	if !errors.Is(err, Timeout) {
		t.Fatalf("got %v", err)
	}
	if elapsed := time.Since(then); 5*time.Second < elapsed {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestShellTimeoutOverride(t *testing.T) {
	r := &ShellRunner{Timeout: time.Hour}

	x := shellInv("sleep 10")
	x.Config["timeoutMs"] = 100

	if err := r.Run(context.Background(), x); !errors.Is(err, Timeout) {
		t.Fatalf("got %v", err)
	}
}

func TestCappedOutput(t *testing.T) {
	r := &ShellRunner{Timeout: 5 * time.Second}

	// A torrent of output from a failing command must not balloon the
	// error message.
	err := r.Run(context.Background(),
		shellInv("head -c 100000 /dev/zero | tr '\\0' x; exit 1"))
	if err == nil {
		t.Fatal("wanted an error")
	}
	if outputCap+1024 < len(err.Error()) {
		t.Fatalf("error message is %d bytes", len(err.Error()))
	}
}
