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

// Package tools renders workspace documents for operators: Graphviz
// dot, HTML, and YAML.  Nothing here is on the event path.
package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/midasctl/midas/graph"
	"github.com/midasctl/midas/workspace"
)

// Dot writes a Graphviz rendering of the workspace: one record per
// node, edges labeled with their ports, bindings drawn as dashed
// arrows from controller boxes.
func Dot(doc *workspace.Doc, w io.Writer) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize="10"]
`)

	for _, n := range doc.Nodes {
		label := fmt.Sprintf("%s\\n%s", escape(title(n)), n.Kind)
		fill := "#99ddc8"
		shape := "record"
		if n.Kind.IsAction() {
			fill = "#2d93ad"
			shape = "note"
		}
		fmt.Fprintf(w, "  n%d [label=\"%s\" shape=\"%s\" fillcolor=\"%s\"];\n",
			n.ID, label, shape, fill)
	}

	for _, e := range doc.Edges {
		fmt.Fprintf(w, "  n%d -> n%d [label=\"%s → %s\"];\n",
			e.From.Node, e.To.Node, e.From.Port, e.To.Port)
	}

	for i, b := range doc.Bindings {
		fmt.Fprintf(w, "  c%d [label=\"%s\" shape=\"cds\" fillcolor=\"#eeeeee\"];\n",
			i, b.Key)
		fmt.Fprintf(w, "  c%d -> n%d [style=dashed label=\"%s\"];\n",
			i, b.Node, b.Port)
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// YAML writes the workspace document as YAML, which is a lot easier on
// the eyes than its JSON wire form.
func YAML(doc *workspace.Doc, w io.Writer) error {
	bs, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(bs)
	return err
}

func title(n workspace.NodeSnap) string {
	if n.Title != "" {
		return n.Title
	}
	if t, have := graph.TemplateFor(n.Kind); have {
		return t.Title
	}
	return string(n.Kind)
}

func escape(s string) string {
	s = strings.Replace(s, `"`, `\"`, -1)
	return strings.Replace(s, "\n", " ", -1)
}
