/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"fmt"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/orchestrator"
)

// gypDict is an insertion-ordered string-keyed map: callers insert keys in
// the order they want printed, standing in for pretty_print's ORDER-priority
// key sort since this tool only ever renders the one shape Format builds
// below, never an arbitrary dict.
type gypDict []gypEntry

type gypEntry struct {
	key string
	val interface{} // gypDict, []interface{}, or string
}

// Format renders a FinalValue the way trace_inputs.py's pretty_print
// renders its decoded variables: a GYP/Python literal, not JSON, with
// single-quoted strings and a trailing comma after every entry.
func Format(v *orchestrator.FinalValue) string {
	variables := gypDict{}
	if len(v.Tracked) > 0 {
		variables = append(variables, gypEntry{"isolate_dependency_tracked", stringList(v.Tracked)})
	}
	if len(v.Untracked) > 0 {
		variables = append(variables, gypEntry{"isolate_dependency_untracked", stringList(v.Untracked)})
	}

	condition := []interface{}{
		fmt.Sprintf(`OS=="%s"`, v.Flavor.ConditionOS()),
		gypDict{{key: "variables", val: variables}},
	}
	root := gypDict{{key: "conditions", val: []interface{}{condition}}}

	var b strings.Builder
	b.WriteString("{\n")
	writeDict(&b, "  ", root)
	b.WriteString("}\n")
	return b.String()
}

func writeDict(b *strings.Builder, indent string, d gypDict) {
	for _, e := range d {
		switch val := e.val.(type) {
		case gypDict:
			fmt.Fprintf(b, "%s'%s': {\n", indent, e.key)
			writeDict(b, indent+"  ", val)
			fmt.Fprintf(b, "%s},\n", indent)
		case []interface{}:
			fmt.Fprintf(b, "%s'%s': [\n", indent, e.key)
			writeList(b, indent+"  ", val)
			fmt.Fprintf(b, "%s],\n", indent)
		case string:
			fmt.Fprintf(b, "%s'%s': %s,\n", indent, e.key, pyQuote(val))
		}
	}
}

// writeList handles two shapes: a plain list of strings or dicts (one per
// line), and a list-within-a-list (the single `['OS=="...", {...}]`
// condition tuple), which pretty_print renders with its first elements
// inline rather than one per line.
func writeList(b *strings.Builder, indent string, items []interface{}) {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			fmt.Fprintf(b, "%s%s,\n", indent, pyQuote(v))
		case gypDict:
			fmt.Fprintf(b, "%s{\n", indent)
			writeDict(b, indent+"  ", v)
			fmt.Fprintf(b, "%s},\n", indent)
		case []interface{}:
			b.WriteString(indent + "[")
			for i, inner := range v {
				last := i == len(v)-1
				switch iv := inner.(type) {
				case string:
					b.WriteString(pyQuote(iv))
					if !last {
						b.WriteString(", ")
					}
				case gypDict:
					b.WriteString("{\n")
					writeDict(b, indent+"  ", iv)
					b.WriteString(indent + "}")
					if !last {
						b.WriteString(", ")
					}
				}
			}
			b.WriteString("],\n")
		}
	}
}

// pyQuote renders s as a single-quoted Python string literal, escaping
// backslash before quote so the backslash added in front of each quote is
// not itself doubled.
func pyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func stringList(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
