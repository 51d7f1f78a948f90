// Copyright 2024 The mongoworkflow Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// ExprLabel is the reserved field name a FoldLeft head is projected
// under, and the name map/reduce bodies use for the document they are
// folding. IdLabel is the reserved name for a document's identifier.
const (
	ExprLabel = "value"
	IdLabel   = "_id"
)

// Finalize applies the one-time shape normalizations a merged,
// coalesced workflow still needs before it can be crushed into a task
// tree: dead-field pruning, map-reduce source lowering and FoldLeft
// tail coercion, then (if the resulting shape is staticly known) a
// final Project that pins it down exactly.
func Finalize(op Op) Op {
	op = finish(op)
	op = finalize0(op)
	op = promoteShape(op)
	return op
}

// finish erases Project/Group fields that nothing further down the
// tree could possibly reference, by walking top-down and narrowing the
// required field set every time a stage fully redefines its output
// shape (Project, Group).
func finish(op Op) Op {
	return pruneDeps(op, nil)
}

// pruneDeps rewrites op's subtree so that every Project/Group drops
// the work of computing a field nothing downstream needs. required is
// the set of top-level field names op's own output must supply; nil
// means "unknown, assume everything is needed" (the state at the root,
// and at any node whose downstream dependency set this pass does not
// attempt to characterize precisely).
func pruneDeps(op Op, required map[string]bool) Op {
	switch t := op.(type) {
	case Project:
		entries := t.Shape.Entries()
		if required != nil {
			filtered := entries[:0]
			for _, e := range entries {
				if required[e.Name] {
					filtered = append(filtered, e)
				}
			}
			if len(filtered) > 0 {
				entries = filtered
			}
		}
		need := map[string]bool{}
		for _, e := range entries {
			collectEntryRefs(e, need)
		}
		t.Shape = NewReshape(entries...)
		t.Src = pruneDeps(t.Src, need)
		return t
	case Group:
		need := map[string]bool{}
		collectFieldRefs(t.By, need)
		for _, e := range t.Grouped.Entries() {
			collectFieldRefs(e.Op.Arg, need)
		}
		t.Src = pruneDeps(t.Src, need)
		return t
	case Match:
		if selectorHasWhere(t.Selector) {
			t.Src = pruneDeps(t.Src, nil)
			return t
		}
		need := map[string]bool{}
		collectSelectorRefs(t.Selector, need)
		t.Src = pruneDeps(t.Src, combineRequired(need, required))
		return t
	case Sort:
		need := map[string]bool{}
		for _, k := range t.Keys {
			need[k.Field.Head().ToName().String()] = true
		}
		t.Src = pruneDeps(t.Src, combineRequired(need, required))
		return t
	case Limit:
		t.Src = pruneDeps(t.Src, required)
		return t
	case Skip:
		t.Src = pruneDeps(t.Src, required)
		return t
	case Out:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case Redact:
		need := map[string]bool{}
		collectFieldRefs(t.Expr, need)
		t.Src = pruneDeps(t.Src, combineRequired(need, required))
		return t
	case Unwind:
		need := map[string]bool{t.Field.Head().ToName().String(): true}
		t.Src = pruneDeps(t.Src, combineRequired(need, required))
		return t
	case GeoNear:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case MapOp:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case FlatMapOp:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case SimpleMap:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case ReduceOp:
		t.Src = pruneDeps(t.Src, nil)
		return t
	case FoldLeft:
		t.Head = pruneDeps(t.Head, nil)
		tail := make([]Op, len(t.Tail))
		for i, entry := range t.Tail {
			tail[i] = pruneDeps(entry, nil)
		}
		t.Tail = tail
		return t
	case Join:
		srcs := make([]Op, len(t.Srcs))
		for i, s := range t.Srcs {
			srcs[i] = pruneDeps(s, nil)
		}
		t.Srcs = srcs
		return t
	default:
		return op
	}
}

func combineRequired(own, required map[string]bool) map[string]bool {
	if required == nil {
		return nil
	}
	out := make(map[string]bool, len(own)+len(required))
	for k := range own {
		out[k] = true
	}
	for k := range required {
		out[k] = true
	}
	return out
}

func collectEntryRefs(e ReshapeEntry, out map[string]bool) {
	if e.Nested != nil {
		for _, ne := range e.Nested.Entries() {
			collectEntryRefs(ne, out)
		}
		return
	}
	collectFieldRefs(e.Expr, out)
}

func collectFieldRefs(v bsonval.Value, out map[string]bool) {
	switch t := v.(type) {
	case bsonval.Text:
		s := string(t)
		if strings.HasPrefix(s, "$$") || !strings.HasPrefix(s, "$") {
			return
		}
		p, err := fieldpath.Parse(s[1:])
		if err != nil {
			return
		}
		out[p.Head().ToName().String()] = true
	case bsonval.Document:
		for _, f := range t.Fields() {
			collectFieldRefs(f.Value, out)
		}
	case bsonval.Array:
		for _, e := range t {
			collectFieldRefs(e, out)
		}
	}
}

func collectSelectorRefs(sel Selector, out map[string]bool) {
	switch s := sel.(type) {
	case SelDoc:
		for _, f := range s.Doc.Fields() {
			p, err := fieldpath.Parse(f.Name)
			if err != nil {
				continue
			}
			out[p.Head().ToName().String()] = true
		}
	case SelAnd:
		for _, c := range s.Clauses {
			collectSelectorRefs(c, out)
		}
	case SelOr:
		for _, c := range s.Clauses {
			collectSelectorRefs(c, out)
		}
	case SelNor:
		for _, c := range s.Clauses {
			collectSelectorRefs(c, out)
		}
	}
}

func selectorHasWhere(sel Selector) bool {
	switch s := sel.(type) {
	case SelWhere:
		return true
	case SelAnd:
		return anyHasWhere(s.Clauses)
	case SelOr:
		return anyHasWhere(s.Clauses)
	case SelNor:
		return anyHasWhere(s.Clauses)
	default:
		return false
	}
}

func anyHasWhere(clauses []Selector) bool {
	for _, c := range clauses {
		if selectorHasWhere(c) {
			return true
		}
	}
	return false
}

// finalize0 pushes every map-reduce stage's source down to its raw
// Map/FlatMap form, lowers every SimpleMap itself to Map/FlatMap, and
// coerces every FoldLeft into the shape crush
// expects, walking the whole tree post-order so an inner normalization
// is already settled by the time its parent's rule considers it.
func finalize0(op Op) Op {
	children := op.Children()
	if len(children) > 0 {
		rewritten := make([]Op, len(children))
		for i, c := range children {
			rewritten[i] = finalize0(c)
		}
		op = op.WithChildren(rewritten...)
	}
	switch t := op.(type) {
	case MapOp:
		t.Src = lowerMapReduceSrc(t.Src)
		return t
	case FlatMapOp:
		t.Src = lowerMapReduceSrc(t.Src)
		return t
	case SimpleMap:
		t.Src = lowerMapReduceSrc(t.Src)
		return lowerSimpleMap(t)
	case ReduceOp:
		t.Src = lowerMapReduceSrc(t.Src)
		return t
	case FoldLeft:
		return normalizeFoldLeft(t)
	default:
		return op
	}
}

// lowerMapReduceSrc repeatedly rewrites a map-reduce stage's source
// until it is no longer a Project, an Unwind, or a SimpleMap: each of
// those has a raw-JS equivalent a real map/reduce job can run. A
// Project whose shape buildShapeJS cannot compile is returned as is.
func lowerMapReduceSrc(src Op) Op {
	for {
		switch t := src.(type) {
		case Project:
			js, ok := buildShapeJS(t.Shape)
			if !ok {
				return src
			}
			src = SimpleMap{
				Src:   t.Src,
				Expr:  JSExpr{Params: []string{"key", "value"}, Body: js},
				Scope: Scope{},
			}
		case Unwind:
			src = unwindToSimpleMap(t)
		case SimpleMap:
			return lowerSimpleMap(t)
		default:
			return src
		}
	}
}

func unwindToSimpleMap(u Unwind) SimpleMap {
	identity := JSExpr{Params: []string{"key", "value"}, Body: "value"}
	return SimpleMap{Src: u.Src, Expr: identity, Flatten: []fieldpath.Path{u.Field}, Scope: Scope{}}
}

// lowerSimpleMap compiles a SimpleMap down to its raw Map (no
// flattening) or FlatMap (one or more flattened fields) form.
func lowerSimpleMap(sm SimpleMap) Op {
	if len(sm.Flatten) == 0 {
		fn := JSFunc{
			Params: []string{"key", "value"},
			Body:   fmt.Sprintf("return [[key, (%s)(key, value)]];", sm.Expr.Render()),
		}
		return MapOp{Src: sm.Src, Fn: fn, Scope: sm.Scope}
	}
	var b strings.Builder
	b.WriteString("var __out = []; ")
	writeFlattenLoop(&b, sm.Flatten, 0, sm.Expr, "value")
	b.WriteString("return __out;")
	fn := JSFunc{Params: []string{"key", "value"}, Body: b.String()}
	return FlatMapOp{Src: sm.Src, Fn: fn, Scope: sm.Scope}
}

// writeFlattenLoop emits one forEach per flattened path, each
// producing a shallow-cloned document with that path's value replaced
// by the current array element, then (once every path has been
// visited) evaluating expr against the fully substituted document.
func writeFlattenLoop(b *strings.Builder, paths []fieldpath.Path, i int, expr JSExpr, valueVar string) {
	if i == len(paths) {
		fmt.Fprintf(b, "__out.push([key, (%s)(key, %s)]); ", expr.Render(), valueVar)
		return
	}
	elemVar := "__e" + strconv.Itoa(i)
	nextVar := "__v" + strconv.Itoa(i)
	fmt.Fprintf(b, "(%s || []).forEach(function(%s) { var %s = Object.assign({}, %s, {%s: %s}); ",
		paths[i].ToJSExpr(valueVar), elemVar, nextVar, valueVar, strconv.Quote(paths[i].String()), elemVar)
	writeFlattenLoop(b, paths, i+1, expr, nextVar)
	b.WriteString("}); ")
}

// buildShapeJS compiles shape to a JS object-literal expression when
// every entry is either a bare field rename or a reference-free
// literal; anything richer (a full aggregation expression) would
// require parsing the JS/expression AST this package treats as opaque,
// so such shapes are reported as not JS-expressible.
func buildShapeJS(shape Reshape) (string, bool) {
	entries := shape.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		var valueJS string
		switch {
		case e.Nested != nil:
			nested, ok := buildShapeJS(*e.Nested)
			if !ok {
				return "", false
			}
			valueJS = nested
		default:
			if name, ok := bareFieldRef(e.Expr); ok {
				p, err := fieldpath.Parse(name)
				if err != nil {
					return "", false
				}
				valueJS = p.ToJSExpr("value")
			} else if isPureLiteral(e.Expr) {
				valueJS = e.Expr.JS()
			} else {
				return "", false
			}
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strconv.Quote(e.Name), valueJS))
	}
	return "{" + strings.Join(parts, ", ") + "}", true
}

// isPureLiteral reports whether v contains no field or variable
// reference anywhere in its structure.
func isPureLiteral(v bsonval.Value) bool {
	switch t := v.(type) {
	case bsonval.Text:
		return !strings.HasPrefix(string(t), "$")
	case bsonval.Document:
		for _, f := range t.Fields() {
			if !isPureLiteral(f.Value) {
				return false
			}
		}
		return true
	case bsonval.Array:
		for _, e := range t {
			if !isPureLiteral(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// normalizeFoldLeft wraps the head in {value: $$ROOT} and ensures
// every tail entry ends in a Reduce, appending the default
// object-merging reducer to any that don't.
func normalizeFoldLeft(f FoldLeft) FoldLeft {
	if !isValueWrapped(f.Head) {
		f.Head = Project{
			Src:   f.Head,
			Shape: NewReshape(ReshapeEntry{Name: ExprLabel, Expr: bsonval.Text("$$ROOT")}),
			Id:    IncludeId,
		}
	}
	tail := make([]Op, len(f.Tail))
	for i, entry := range f.Tail {
		if _, ok := entry.(ReduceOp); ok {
			tail[i] = entry
			continue
		}
		tail[i] = ReduceOp{Src: entry, Fn: defaultFoldLeftReduceFn(), Scope: Scope{}}
	}
	f.Tail = tail
	return f
}

// isValueWrapped reports whether op is already exactly the single-field
// `{value: "$$ROOT"}` projection normalizeFoldLeft wraps a head in, so
// re-finalizing an already-normalized FoldLeft doesn't nest a second
// wrapper around it.
func isValueWrapped(op Op) bool {
	p, ok := op.(Project)
	if !ok || p.Id != IncludeId {
		return false
	}
	entries := p.Shape.Entries()
	if len(entries) != 1 || entries[0].Name != ExprLabel || entries[0].Nested != nil {
		return false
	}
	text, ok := entries[0].Expr.(bsonval.Text)
	return ok && string(text) == "$$ROOT"
}

// defaultFoldLeftReduceFn merges every value sharing a key into one
// document, later values' fields winning on collision.
func defaultFoldLeftReduceFn() JSFunc {
	return JSFunc{
		Params: []string{"key", "values"},
		Body:   "var acc = {}; values.forEach(function(v) { for (var k in v) { acc[k] = v[k]; } }); return acc;",
	}
}

// simpleShape reports the known, static set of top-level field names a
// node's output will have, propagating through shape-preserving
// stages. Only Pure(Document), Project and Group have a statically
// known shape here; SimpleMap bodies are opaque JS text and are never
// treated as known-shape, even when they happen to render an object
// literal, since recognizing that would require parsing the JS this
// package deliberately does not parse.
func simpleShape(op Op) ([]string, bool) {
	switch t := op.(type) {
	case Pure:
		doc, ok := t.Value.(bsonval.Document)
		if !ok {
			return nil, false
		}
		names := make([]string, 0, doc.Len())
		for _, f := range doc.Fields() {
			names = append(names, f.Name)
		}
		return names, true
	case Project:
		return t.Shape.Fields(), true
	case Group:
		names := make([]string, 0, t.Grouped.Len()+1)
		names = append(names, IdLabel)
		for _, e := range t.Grouped.Entries() {
			names = append(names, e.Leaf.String())
		}
		return names, true
	case Match:
		return simpleShape(t.Src)
	case Sort:
		return simpleShape(t.Src)
	case Limit:
		return simpleShape(t.Src)
	case Skip:
		return simpleShape(t.Src)
	case Out:
		return simpleShape(t.Src)
	default:
		return nil, false
	}
}

// promoteShape appends a final {f: "$f" for each known field}
// Project with IgnoreId when op's shape is statically known, pinning
// it down exactly for the crush pass.
func promoteShape(op Op) Op {
	names, ok := simpleShape(op)
	if !ok {
		return op
	}
	entries := make([]ReshapeEntry, len(names))
	for i, n := range names {
		entries[i] = ReshapeEntry{Name: n, Expr: bsonval.Text("$" + n)}
	}
	return NewProject(op, NewReshape(entries...), IgnoreId)
}
