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

package tools

import (
	"fmt"
	"html"
	"io"

	md "github.com/russross/blackfriday/v2"

	"github.com/midasctl/midas/graph"
	. "github.com/midasctl/midas/util/testutil"
	"github.com/midasctl/midas/workspace"
)

// HTML writes a workspace catalog: every node with its kind's
// documentation (the templates' Markdown, rendered), its config, its
// wiring, and the binding table.
func HTML(doc *workspace.Doc, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="workspace">`)

	f(`<div class="nodes"><table>`)
	for _, n := range doc.Nodes {
		f(`<tr class="node"><td><span id="n%d" class="nodeTitle">%s</span></td><td>`,
			n.ID, html.EscapeString(title(n)))
		if t, have := graph.TemplateFor(n.Kind); have && t.Doc != "" {
			f(`<div class="kindDoc doc">%s</div>`, md.Run([]byte(t.Doc)))
		}
		if 0 < len(n.Config) {
			f(`<div class="config"><pre>%s</pre></div>`, html.EscapeString(JS(n.Config)))
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	if 0 < len(doc.Edges) {
		f(`<div class="edges"><table>`)
		for _, e := range doc.Edges {
			f(`<tr><td><a href="#n%d">n%d</a>.%s</td><td>→</td><td><a href="#n%d">n%d</a>.%s</td></tr>`,
				e.From.Node, e.From.Node, html.EscapeString(e.From.Port),
				e.To.Node, e.To.Node, html.EscapeString(e.To.Port))
		}
		f(`</table></div>`)
	}

	if 0 < len(doc.Bindings) {
		f(`<div class="bindings"><table>`)
		for _, b := range doc.Bindings {
			f(`<tr><td><code>%s</code></td><td>→</td><td><a href="#n%d">n%d</a>.%s</td></tr>`,
				html.EscapeString(b.Key.String()), b.Node, b.Node, html.EscapeString(b.Port))
		}
		f(`</table></div>`)
	}

	f(`</div>`)
	return nil
}
