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

package binding

import (
	"fmt"
	"io/ioutil"
	"sort"

	"github.com/jsccast/yaml"
)

// Profile is a named, reusable set of bindings: one physical controller
// layout that can be applied to different graphs.  Profiles are
// independent of any graph; node ids in a profile are resolved against
// whatever graph is loaded when the profile is applied.
type Profile struct {
	Name     string    `json:"name" yaml:"name"`
	Bindings []Binding `json:"bindings" yaml:"bindings"`
}

// Apply merges the profile's bindings into the table.
func (p *Profile) Apply(t *Table) {
	t.Merge(p.Bindings)
}

// ProfileSet holds named profiles.
type ProfileSet struct {
	m map[string]Profile
}

func NewProfileSet() *ProfileSet {
	return &ProfileSet{
		m: make(map[string]Profile, 8),
	}
}

func (s *ProfileSet) Put(p Profile) {
	s.m[p.Name] = p
}

func (s *ProfileSet) Get(name string) (Profile, bool) {
	p, have := s.m[name]
	return p, have
}

func (s *ProfileSet) Remove(name string) {
	delete(s.m, name)
}

// List returns the profiles ordered by name.
func (s *ProfileSet) List() []Profile {
	acc := make([]Profile, 0, len(s.m))
	for _, p := range s.m {
		acc = append(acc, p)
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].Name < acc[j].Name
	})
	return acc
}

// Load replaces the set's contents (snapshot restore).
func (s *ProfileSet) Load(ps []Profile) {
	s.m = make(map[string]Profile, len(ps))
	for _, p := range ps {
		if p.Name == "" {
			continue
		}
		s.m[p.Name] = p
	}
}

// profilesFile is the on-disk YAML shape.
type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// ReadProfilesFile parses a YAML profiles file.
func ReadProfilesFile(filename string) ([]Profile, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var f profilesFile
	if err = yaml.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("bad profiles file %s: %s", filename, err)
	}
	for _, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile without a name in %s", filename)
		}
	}
	return f.Profiles, nil
}

// WriteProfilesFile renders profiles as YAML.
func WriteProfilesFile(filename string, ps []Profile) error {
	bs, err := yaml.Marshal(&profilesFile{Profiles: ps})
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, bs, 0644)
}
