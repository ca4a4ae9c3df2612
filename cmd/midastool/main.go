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

// midastool inspects stored workspaces offline.
//
//	midastool -db midas.db -workspace default -render dot | dot -Tpng > g.png
//	midastool -in workspace.json -render html > catalog.html
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/midasctl/midas/tools"
	"github.com/midasctl/midas/workspace"
)

func main() {
	var (
		inFile = flag.String("in", "", "Workspace JSON file to read")
		dbFile = flag.String("db", "", "Bolt file to read instead of -in")
		wsID   = flag.String("workspace", "default", "Workspace id (with -db)")
		render = flag.String("render", "dot", "Output: dot, html, or yaml")
	)
	flag.Parse()

	doc, err := load(*inFile, *dbFile, *wsID)
	if err != nil {
		log.Fatal(err)
	}

	// Check that the document actually reconstructs before rendering
	// it as if it were a workspace.
	if _, _, err := workspace.Import(doc); err != nil {
		log.Fatalf("document doesn't reconstruct: %s", err)
	}

	switch *render {
	case "dot":
		err = tools.Dot(doc, os.Stdout)
	case "html":
		err = tools.HTML(doc, os.Stdout)
	case "yaml":
		err = tools.YAML(doc, os.Stdout)
	default:
		err = fmt.Errorf(`unknown renderer "%s"`, *render)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func load(inFile, dbFile, wsID string) (*workspace.Doc, error) {
	switch {
	case inFile != "":
		bs, err := ioutil.ReadFile(inFile)
		if err != nil {
			return nil, err
		}
		doc := &workspace.Doc{}
		if err := json.Unmarshal(bs, doc); err != nil {
			return nil, err
		}
		return doc, nil
	case dbFile != "":
		store := workspace.NewStore(dbFile)
		if err := store.Open(); err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadDoc(context.Background(), wsID)
	}
	return nil, fmt.Errorf("need -in or -db")
}
