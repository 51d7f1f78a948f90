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
	"strings"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// DocVar says "the thing downstream thinks is the document root is
// actually located here". ROOT means no rebasing is needed; the zero
// DocVar is not ROOT.
type DocVar struct {
	base   fieldpath.Path
	isRoot bool
}

// ROOT is the DocVar meaning "no rebasing: the document root is where
// downstream already expects it".
var ROOT = DocVar{isRoot: true}

func NewDocVar(p fieldpath.Path) DocVar { return DocVar{base: p} }

func (d DocVar) IsRoot() bool { return d.isRoot }

func (d DocVar) Path() fieldpath.Path { return d.base }

// Ref renders the DocVar itself as a field reference: "$$ROOT" when
// it points at the document root, "$base" otherwise.
func (d DocVar) Ref() string {
	if d.isRoot {
		return "$$ROOT"
	}
	return d.base.FieldRef()
}

// Field renders the DocVar, extended by a relative path, as a `$`-field
// reference.
func (d DocVar) Field(rel fieldpath.Path) string {
	full := d.rebased(rel)
	if full == nil {
		return rel.FieldRef()
	}
	return full.FieldRef()
}

// Rebase composes two DocVars: "base, then d relative to it". It is
// used when a stage carrying DocVar d is transplanted under a new
// source whose real root is at base.
func (d DocVar) Rebase(base DocVar) DocVar {
	if base.isRoot {
		return d
	}
	if d.isRoot {
		return base
	}
	return DocVar{base: base.base.Concat(d.base)}
}

func (d DocVar) rebased(rel fieldpath.Path) *fieldpath.Path {
	if d.isRoot {
		return &rel
	}
	full := d.base.Concat(rel)
	return &full
}

// PrefixBase returns the rewrite function `f -> base \ f` used to
// rebase every reference inside a stage that is transplanted onto a
// new source whose real document root now lives at base.
func PrefixBase(base DocVar) func(fieldpath.Path) fieldpath.Path {
	return func(p fieldpath.Path) fieldpath.Path {
		if base.isRoot {
			return p
		}
		return base.base.Concat(p)
	}
}

// RewriteRefs applies fn to every field reference (a Text value of the
// form "$a.b.c") inside v, recursing through Document and Array but
// never rewriting variable references ("$$..."), which name something
// other than the document root.
func RewriteRefs(v bsonval.Value, fn func(fieldpath.Path) fieldpath.Path) bsonval.Value {
	switch t := v.(type) {
	case bsonval.Text:
		s := string(t)
		if strings.HasPrefix(s, "$$") || !strings.HasPrefix(s, "$") {
			return v
		}
		p, err := fieldpath.Parse(s[1:])
		if err != nil {
			return v
		}
		return bsonval.Text("$" + fn(p).String())
	case bsonval.Document:
		fields := t.Fields()
		for i, f := range fields {
			fields[i] = bsonval.Field{Name: f.Name, Value: RewriteRefs(f.Value, fn)}
		}
		return bsonval.NewDocument(fields...)
	case bsonval.Array:
		out := make(bsonval.Array, len(t))
		for i, e := range t {
			out[i] = RewriteRefs(e, fn)
		}
		return out
	default:
		return v
	}
}

func rewriteReshape(r Reshape, fn func(fieldpath.Path) fieldpath.Path) Reshape {
	entries := r.Entries()
	for i, e := range entries {
		if e.Nested != nil {
			nested := rewriteReshape(*e.Nested, fn)
			entries[i] = ReshapeEntry{Name: e.Name, Nested: &nested}
		} else {
			entries[i] = ReshapeEntry{Name: e.Name, Expr: RewriteRefs(e.Expr, fn)}
		}
	}
	return Reshape{entries: entries}
}

func rewriteGrouped(g Grouped, fn func(fieldpath.Path) fieldpath.Path) Grouped {
	entries := g.Entries()
	for i, e := range entries {
		entries[i] = GroupedEntry{Leaf: e.Leaf, Op: GroupOp{Name: e.Op.Name, Arg: RewriteRefs(e.Op.Arg, fn)}}
	}
	return Grouped{entries: entries}
}

func rewriteSelector(sel Selector, fn func(fieldpath.Path) fieldpath.Path) Selector {
	switch s := sel.(type) {
	case SelDoc:
		return SelDoc{Doc: RewriteRefs(s.Doc, fn).(bsonval.Document)}
	case SelWhere:
		return s
	case SelAnd:
		return SelAnd{Clauses: rewriteSelectors(s.Clauses, fn)}
	case SelOr:
		return SelOr{Clauses: rewriteSelectors(s.Clauses, fn)}
	case SelNor:
		return SelNor{Clauses: rewriteSelectors(s.Clauses, fn)}
	default:
		return sel
	}
}

func rewriteSelectors(sels []Selector, fn func(fieldpath.Path) fieldpath.Path) []Selector {
	out := make([]Selector, len(sels))
	for i, s := range sels {
		out[i] = rewriteSelector(s, fn)
	}
	return out
}

// RewriteOpRefs applies fn to every field reference a single
// stage holds directly (its own selector/shape/expressions), NOT
// recursing into its source. Stages that produce a fresh root
// (Group, Project) are unaffected by references further upstream.
// Stages with no references of their own are returned unchanged.
func RewriteOpRefs(op Op, fn func(fieldpath.Path) fieldpath.Path) Op {
	switch t := op.(type) {
	case Match:
		t.Selector = rewriteSelector(t.Selector, fn)
		return t
	case Sort:
		keys := make([]SortKey, len(t.Keys))
		for i, k := range t.Keys {
			keys[i] = SortKey{Field: fn(k.Field), Ascending: k.Ascending}
		}
		t.Keys = keys
		return t
	case Project:
		t.Shape = rewriteReshape(t.Shape, fn)
		return t
	case Redact:
		t.Expr = RewriteRefs(t.Expr, fn)
		return t
	case Unwind:
		t.Field = fn(t.Field)
		return t
	case Group:
		t.Grouped = rewriteGrouped(t.Grouped, fn)
		t.By = RewriteRefs(t.By, fn)
		return t
	case GeoNear:
		t.DistanceField = fn(t.DistanceField)
		t.Query = rewriteSelector(t.Query, fn)
		if t.IncludeLocs != nil {
			p := fn(*t.IncludeLocs)
			t.IncludeLocs = &p
		}
		return t
	default:
		return op
	}
}
