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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"golang.org/x/net/publicsuffix"
)

// InterruptedMessage is the string value a script sees when its budget
// runs out.
var InterruptedMessage = "RuntimeError: timeout"

// ScriptRunner executes user-supplied ECMAScript via Goja.
//
// Each invocation gets a fresh runtime with exactly three read-only
// bindings: the triggering event, the owning node, and a ctx object of
// enumerated host capabilities.  There is no ambient access to the
// process: no filesystem, no environment, and network only through the
// allow-listed fetch capability.
//
// A wall-clock timeout is enforced with the runtime's Interrupt
// mechanism; a script that loops forever is abandoned, reported, and
// affects nothing else.
type ScriptRunner struct {
	// Timeout is the default per-invocation budget.  A node config
	// can adjust it with "timeoutMs".
	Timeout time.Duration

	// Mixer, if not nil, exposes ctx.setVolume to scripts.
	Mixer Mixer

	// AllowHosts enumerates hosts that ctx.fetch may reach.  Empty
	// means fetch is not exposed at all.
	AllowHosts []string

	mu       sync.Mutex
	programs map[string]*goja.Program
	client   *http.Client
}

// compile caches compiled programs by source.  A workspace has few
// distinct scripts but each can fire hundreds of times per second, so
// this matters.
func (r *ScriptRunner) compile(src string) (*goja.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, have := r.programs[src]; have {
		return p, nil
	}

	p, err := goja.Compile("", wrapSrc(src), true)
	if err != nil {
		return nil, fmt.Errorf("script does not compile: %s", err)
	}

	if r.programs == nil {
		r.programs = make(map[string]*goja.Program, 8)
	}
	r.programs[src] = p
	return p, nil
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

func (r *ScriptRunner) Run(ctx context.Context, inv Invocation) (err error) {
	src := inv.Config.String("source", "")
	if strings.TrimSpace(src) == "" {
		return nil
	}

	p, err := r.compile(src)
	if err != nil {
		return err
	}

	timeout := r.Timeout
	if ms := inv.Config.Float("timeoutMs", 0); 0 < ms {
		timeout = time.Duration(ms) * time.Millisecond
	}

	o := goja.New()
	o.Set("event", eventObject(inv))
	o.Set("node", nodeObject(inv))
	o.Set("ctx", r.capabilities(ctx, o, inv))

	// A thrown host capability error surfaces as a Goja panic; keep
	// it an invocation failure, not an engine failure.
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("script panic: %v", x)
		}
	}()

	ictx, cancel := context.WithTimeout(ctx, timeout)
	go func() {
		<-ictx.Done()
		// If Run calls cancel() after RunProgram returns, the
		// interrupt never fires, which is what we want.
		o.Interrupt(InterruptedMessage)
	}()

	_, err = o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return fmt.Errorf("%w after %s", Timeout, timeout)
		}
		return fmt.Errorf("script error: %s", err)
	}
	return nil
}

func eventObject(inv Invocation) map[string]interface{} {
	return map[string]interface{}{
		"device":    inv.Event.Device,
		"channel":   inv.Event.Channel,
		"control":   inv.Event.Control,
		"value":     inv.Event.Value,
		"kind":      string(inv.Event.Kind),
		"timestamp": inv.Event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func nodeObject(inv Invocation) map[string]interface{} {
	return map[string]interface{}{
		"id":     int(inv.Node),
		"kind":   string(inv.Kind),
		"config": map[string]interface{}(inv.Config.Copy()),
		"inputs": inv.Inputs,
	}
}

// capabilities builds the ctx object: the complete enumeration of what
// a script can do to its host.
func (r *ScriptRunner) capabilities(ctx context.Context, o *goja.Runtime, inv Invocation) map[string]interface{} {
	caps := map[string]interface{}{
		"log": func(x interface{}) interface{} {
			switch vv := x.(type) {
			case goja.Value:
				x = vv.Export()
			}
			js, err := json.Marshal(&x)
			if err != nil {
				log.Printf("script node %d log (unmarshalable %T)", inv.Node, x)
			} else {
				log.Printf("script node %d: %s", inv.Node, js)
			}
			return x
		},

		"cronNext": func(x interface{}) interface{} {
			switch vv := x.(type) {
			case goja.Value:
				x = vv.Export()
			}
			expr, is := x.(string)
			if !is {
				protest(o, "cronNext wants a string")
			}
			c, err := cronexpr.Parse(expr)
			if err != nil {
				protest(o, err.Error())
			}
			return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
		},

		"esc": func(x interface{}) interface{} {
			switch vv := x.(type) {
			case goja.Value:
				x = vv.Export()
			}
			s, is := x.(string)
			if !is {
				protest(o, "esc wants a string")
			}
			return url.QueryEscape(s)
		},
	}

	if r.Mixer != nil {
		caps["setVolume"] = func(sink interface{}, level interface{}) interface{} {
			s, _ := export(sink).(string)
			l, is := export(level).(float64)
			if !is {
				if n, isInt := export(level).(int64); isInt {
					l, is = float64(n), true
				}
			}
			if !is {
				protest(o, "setVolume wants a number")
			}
			if err := r.Mixer.SetLevel(ctx, s, l); err != nil {
				protest(o, err.Error())
			}
			return nil
		}
	}

	if 0 < len(r.AllowHosts) {
		caps["fetch"] = func(x interface{}) interface{} {
			u, is := export(x).(string)
			if !is {
				protest(o, "fetch wants a URL string")
			}
			body, err := r.fetch(ctx, u)
			if err != nil {
				protest(o, err.Error())
			}
			return body
		}
	}

	return caps
}

// fetch is the one network capability: GET against an allow-listed
// host, with a shared cookie jar so authenticated endpoints work.
func (r *ScriptRunner) fetch(ctx context.Context, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	allowed := false
	for _, h := range r.AllowHosts {
		if strings.EqualFold(h, u.Hostname()) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf(`host "%s" not in allow list`, u.Hostname())
	}

	r.mu.Lock()
	if r.client == nil {
		jar, err := cookiejar.New(&cookiejar.Options{
			PublicSuffixList: publicsuffix.List,
		})
		if err != nil {
			r.mu.Unlock()
			return "", err
		}
		r.client = &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		}
	}
	client := r.client
	r.mu.Unlock()

	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		return "", err
	}
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch status %s", resp.Status)
	}
	bs, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func export(x interface{}) interface{} {
	if v, is := x.(goja.Value); is {
		return v.Export()
	}
	return x
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}
