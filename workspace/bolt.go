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

package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/midasctl/midas/binding"
)

var (
	workspacesBucket = []byte("workspaces")
	profilesBucket   = []byte("profiles")

	// NotFound occurs when a workspace or profile isn't in the store.
	NotFound = errors.New("not found")
)

// Store persists workspace documents and shared profiles in a Bolt
// file.
type Store struct {
	Debug bool

	filename string
	db       *bolt.DB
}

func NewStore(filename string) *Store {
	return &Store{
		filename: filename,
	}
}

func (s *Store) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(workspacesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("workspace.Store."+format, args...)
	}
}

// SaveDoc writes one workspace document under the given id.
func (s *Store) SaveDoc(ctx context.Context, id string, doc *Doc) error {
	s.logf("SaveDoc %s (%d nodes)", id, len(doc.Nodes))
	js, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(workspacesBucket).Put([]byte(id), js)
	})
}

// LoadDoc reads one workspace document.  NotFound if it isn't there.
func (s *Store) LoadDoc(ctx context.Context, id string) (*Doc, error) {
	s.logf("LoadDoc %s", id)
	var doc *Doc
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(workspacesBucket).Get([]byte(id))
		if bs == nil {
			return NotFound
		}
		doc = &Doc{}
		return json.Unmarshal(bs, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveDoc deletes one workspace document.
func (s *Store) RemoveDoc(ctx context.Context, id string) error {
	s.logf("RemoveDoc %s", id)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(workspacesBucket).Delete([]byte(id))
	})
}

// Workspaces lists the stored workspace ids.
func (s *Store) Workspaces(ctx context.Context) ([]string, error) {
	acc := make([]string, 0, 8)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(workspacesBucket).Cursor()
		for id, _ := c.First(); id != nil; id, _ = c.Next() {
			acc = append(acc, string(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// SaveProfile stores a profile independent of any workspace, so one
// controller layout can serve many graphs.
func (s *Store) SaveProfile(ctx context.Context, p binding.Profile) error {
	s.logf("SaveProfile %s", p.Name)
	js, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).Put([]byte(p.Name), js)
	})
}

// LoadProfiles reads all stored profiles.
func (s *Store) LoadProfiles(ctx context.Context) ([]binding.Profile, error) {
	acc := make([]binding.Profile, 0, 8)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(profilesBucket).Cursor()
		for name, bs := c.First(); name != nil; name, bs = c.Next() {
			var p binding.Profile
			if err := json.Unmarshal(bs, &p); err != nil {
				return err
			}
			acc = append(acc, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Checkpoint periodically saves the document snap() produces, and once
// more on the way out, so a clean shutdown never loses work.
func (s *Store) Checkpoint(ctx context.Context, id string, every time.Duration, snap func() *Doc) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.SaveDoc(context.Background(), id, snap()); err != nil {
				log.Printf("workspace.Store final checkpoint error %s", err)
			}
			return
		case <-ticker.C:
			if err := s.SaveDoc(ctx, id, snap()); err != nil {
				log.Printf("workspace.Store checkpoint error %s", err)
			}
		}
	}
}
