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
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketService serves the ops protocol at /api and fans the
// engine's diagnostics out to every connected client.  Editors connect
// here; so can anything that just wants to inject events.
func (s *Service) WebSocketService(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.apiHandler(ctx))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Printf("Service.WebSocketService listening on %s", addr)
	err := server.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// apiHandler upgrades connections and runs the per-connection loops.
func (s *Service) apiHandler(ctx context.Context) http.HandlerFunc {

	var upgrader = websocket.Upgrader{} // use default options

	conns := sync.Map{}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-s.engine.Diagnostics():
				conns.Range(func(k, v interface{}) bool {
					c := v.(chan interface{})
					select {
					case c <- d:
					default:
						log.Printf("%v diagnostics blocked", k)
					}
					return true
				})
			}
		}
	}()

	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Service.WebSocketService connection")

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		ctl := make(chan bool)
		defer close(ctl)

		// out is never closed: the fan-out goroutine may still hold a
		// reference from conns.Range after this handler returns, and a
		// send on a closed channel would take the whole daemon down.
		// The writer exits via ctl, and the channel gets collected.
		out := make(chan interface{}, 32)

		id := c.RemoteAddr().String()
		conns.Store(id, out)
		defer conns.Delete(id)

		go func() {
			mt := websocket.TextMessage

		LOOP:
			for {
				select {
				case <-ctl:
					break LOOP
				case <-ctx.Done():
					break LOOP
				case x := <-out:
					js, err := json.Marshal(&x)
					if err != nil {
						log.Printf("firehose Marshal error %v on %#v", err, x)
						continue
					}
					if err = c.WriteMessage(mt, js); err != nil {
						log.Println("firehose write:", err)
					}
				}
			}
		}()

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read error", err)
				break
			}

			var op Op
			if err := json.Unmarshal(message, &op); err != nil {
				out <- Result{Op: "?", Error: "can't parse: " + err.Error()}
				continue
			}

			out <- s.Do(ctx, op)
		}
	}
}
