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

package midi

import (
	"sort"
	"sync"
)

// Device describes one input device as the rest of the system sees it.
//
// A virtual device aggregates several physical ports under a single
// identity so a split controller (or two controllers) can act as one.
type Device struct {
	Name    string   `json:"name"`
	Port    string   `json:"port"`
	Virtual bool     `json:"virtual,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// DeviceSet tracks the devices known to a running engine.  Devices come
// and go at runtime (hot-plug), so a DeviceSet is safe for concurrent
// use.
type DeviceSet struct {
	sync.Mutex

	devices map[string]Device
}

func NewDeviceSet() *DeviceSet {
	return &DeviceSet{
		devices: make(map[string]Device, 8),
	}
}

// Add registers (or replaces) a device keyed by its port.
func (s *DeviceSet) Add(d Device) {
	s.Lock()
	s.devices[d.Port] = d
	s.Unlock()
}

// Remove forgets a device.  Removing an unknown device is not an error.
func (s *DeviceSet) Remove(port string) {
	s.Lock()
	delete(s.devices, port)
	s.Unlock()
}

// Find returns the device registered at the given port.
func (s *DeviceSet) Find(port string) (Device, bool) {
	s.Lock()
	d, have := s.devices[port]
	s.Unlock()
	return d, have
}

// List returns all known devices ordered by port name.
func (s *DeviceSet) List() []Device {
	s.Lock()
	acc := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		acc = append(acc, d)
	}
	s.Unlock()
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].Port < acc[j].Port
	})
	return acc
}

// Resolve maps a physical port name to the device identities it belongs
// to: the port itself plus any virtual devices that aggregate it.
func (s *DeviceSet) Resolve(port string) []string {
	s.Lock()
	acc := []string{port}
	for _, d := range s.devices {
		if !d.Virtual {
			continue
		}
		for _, src := range d.Sources {
			if src == port {
				acc = append(acc, d.Port)
				break
			}
		}
	}
	s.Unlock()
	return acc
}

// Import replaces the set with the given devices (snapshot restore).
func (s *DeviceSet) Import(devices []Device) {
	s.Lock()
	s.devices = make(map[string]Device, len(devices))
	for _, d := range devices {
		if d.Port == "" {
			continue
		}
		s.devices[d.Port] = d
	}
	s.Unlock()
}
