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

// Package mqtt is an event source adapter for control surfaces that
// live on the far side of a broker: a phone, another machine, a
// bridge publishing a hardware controller's events as JSON.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mq "github.com/eclipse/paho.mqtt.golang"

	"github.com/midasctl/midas/midi"
	"github.com/midasctl/midas/util"
)

// Source subscribes to one topic and turns its JSON payloads into
// control events.  It satisfies midi.Source, so the engine treats it
// like any other device; attach and detach at runtime as brokers and
// bridges come and go.
type Source struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte

	Username string
	Password string

	// Device overrides the payload's device field, so one topic per
	// controller works even when the bridge doesn't name itself.
	Device string

	mu   sync.Mutex
	last time.Time
}

func (s *Source) Name() string {
	return "mqtt:" + s.Topic
}

// Run connects, subscribes, and forwards events until ctx is canceled
// or the connection fails.  Per the midi.Source contract, Run is not
// restartable; make a new Source to reconnect.
func (s *Source) Run(ctx context.Context, emit func(midi.ControlEvent)) error {
	opts := mq.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.Username = s.Username
	opts.Password = s.Password

	lost := make(chan error, 1)
	opts.SetConnectionLostHandler(func(_ mq.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	client := mq.NewClient(opts)
	if t := client.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.Broker, t.Error())
	}

	handler := func(_ mq.Client, m mq.Message) {
		ev, err := s.Decode(m.Payload())
		if err != nil {
			util.Logf("mqtt source %s bad payload: %s", s.Topic, err)
			return
		}
		emit(ev)
	}

	if t := client.Subscribe(s.Topic, s.QoS, handler); t.Wait() && t.Error() != nil {
		client.Disconnect(100)
		return fmt.Errorf("mqtt subscribe %s: %w", s.Topic, t.Error())
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-lost:
	}

	if t := client.Unsubscribe(s.Topic); t.Wait() && t.Error() != nil {
		util.Logf("mqtt unsubscribe %s: %s", s.Topic, t.Error())
	}
	client.Disconnect(250)
	return err
}

// Decode parses one payload.  Timestamps are clamped to be
// monotonically non-decreasing per source, as the adapter contract
// requires; a missing timestamp means now.
func (s *Source) Decode(bs []byte) (midi.ControlEvent, error) {
	var ev midi.ControlEvent
	if err := json.Unmarshal(bs, &ev); err != nil {
		return ev, err
	}
	if s.Device != "" {
		ev.Device = s.Device
	}
	if ev.Device == "" {
		return ev, fmt.Errorf("event without a device")
	}
	if ev.Kind == "" {
		ev.Kind = midi.Continuous
	}

	s.mu.Lock()
	if ev.Timestamp.IsZero() || ev.Timestamp.Before(s.last) {
		now := time.Now()
		if now.Before(s.last) {
			now = s.last
		}
		ev.Timestamp = now
	}
	s.last = ev.Timestamp
	s.mu.Unlock()

	return ev, nil
}
