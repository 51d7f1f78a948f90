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

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// ReshapeEntry is one field of a Reshape: either a leaf expression or a
// nested Reshape (a sub-document built in place).
type ReshapeEntry struct {
	Name   string
	Expr   bsonval.Value // nil if Nested is set
	Nested *Reshape
}

// Reshape is an ordered mapping from a BsonField.Name to either an
// expression or a nested Reshape; it is Project's shape.
type Reshape struct {
	entries []ReshapeEntry
}

func NewReshape(entries ...ReshapeEntry) Reshape {
	return Reshape{entries: append([]ReshapeEntry{}, entries...)}
}

func (r Reshape) Entries() []ReshapeEntry {
	return append([]ReshapeEntry{}, r.entries...)
}

func (r Reshape) Len() int { return len(r.entries) }

func (r Reshape) Get(name string) (ReshapeEntry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return ReshapeEntry{}, false
}

func (r Reshape) Set(name string, expr bsonval.Value) Reshape {
	out := append([]ReshapeEntry{}, r.entries...)
	for i, e := range out {
		if e.Name == name {
			out[i] = ReshapeEntry{Name: name, Expr: expr}
			return Reshape{entries: out}
		}
	}
	out = append(out, ReshapeEntry{Name: name, Expr: expr})
	return Reshape{entries: out}
}

func (r Reshape) Fields() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// MergeDisjoint merges two Reshapes into one, in (r's fields, then
// o's) order. It fails (ok=false) if the two share any field name,
// since there would be no well-defined winner to preserve.
func (r Reshape) MergeDisjoint(o Reshape) (Reshape, bool) {
	seen := make(map[string]bool, len(r.entries))
	for _, e := range r.entries {
		seen[e.Name] = true
	}
	for _, e := range o.entries {
		if seen[e.Name] {
			return Reshape{}, false
		}
	}
	return Reshape{entries: append(append([]ReshapeEntry{}, r.entries...), o.entries...)}, true
}

// ToBSON renders the Reshape as the value of a $project stage body
// (absent any _id handling, which the caller adds separately).
func (r Reshape) ToBSON() bsonval.Document {
	fields := make([]bsonval.Field, 0, len(r.entries))
	for _, e := range r.entries {
		var v bsonval.Value
		if e.Nested != nil {
			v = e.Nested.ToBSON()
		} else {
			v = e.Expr
		}
		fields = append(fields, bsonval.Field{Name: e.Name, Value: v})
	}
	return bsonval.NewDocument(fields...)
}

// --- Group ---

// GroupOp is one group accumulator, e.g. {"$sum": "$qty"}.
type GroupOp struct {
	Name string // e.g. "$sum", "$push", "$first", "$last", "$max", "$min", "$avg"
	Arg  bsonval.Value
}

func (g GroupOp) ToBSON() bsonval.Value {
	return bsonval.NewDocument(bsonval.Field{Name: g.Name, Value: g.Arg})
}

// GroupedEntry binds one output leaf to the accumulator that computes
// it.
type GroupedEntry struct {
	Leaf fieldpath.Leaf
	Op   GroupOp
}

// Grouped is an ordered mapping from a leaf to a group operator.
type Grouped struct {
	entries []GroupedEntry
}

func NewGrouped(entries ...GroupedEntry) Grouped {
	return Grouped{entries: append([]GroupedEntry{}, entries...)}
}

func (g Grouped) Entries() []GroupedEntry {
	return append([]GroupedEntry{}, g.entries...)
}

func (g Grouped) Len() int { return len(g.entries) }

func (g Grouped) Get(leaf fieldpath.Leaf) (GroupedEntry, bool) {
	for _, e := range g.entries {
		if e.Leaf.Equal(leaf) {
			return e, true
		}
	}
	return GroupedEntry{}, false
}

func (g Grouped) Set(leaf fieldpath.Leaf, op GroupOp) Grouped {
	out := append([]GroupedEntry{}, g.entries...)
	for i, e := range out {
		if e.Leaf.Equal(leaf) {
			out[i] = GroupedEntry{Leaf: leaf, Op: op}
			return Grouped{entries: out}
		}
	}
	out = append(out, GroupedEntry{Leaf: leaf, Op: op})
	return Grouped{entries: out}
}

// Disjoint reports whether g and o share no output leaf.
func (g Grouped) Disjoint(o Grouped) bool {
	for _, e := range o.entries {
		if _, ok := g.Get(e.Leaf); ok {
			return false
		}
	}
	return true
}

func (g Grouped) MergeDisjoint(o Grouped) (Grouped, bool) {
	if !g.Disjoint(o) {
		return Grouped{}, false
	}
	return Grouped{entries: append(append([]GroupedEntry{}, g.entries...), o.entries...)}, true
}

func (g Grouped) ToBSON() bsonval.Document {
	fields := make([]bsonval.Field, 0, len(g.entries))
	for _, e := range g.entries {
		fields = append(fields, bsonval.Field{Name: e.Leaf.String(), Value: e.Op.ToBSON()})
	}
	return bsonval.NewDocument(fields...)
}

// --- Selector ($match body) ---

// Selector is the (recursive) boolean expression a Match stage filters
// on. SelWhere is the one case that disqualifies a Match from pipeline
// execution (see the pipelineability test).
type Selector interface {
	isSelector()
}

// SelDoc is a leaf condition, e.g. {"age": {"$gt": 21}}.
type SelDoc struct {
	Doc bsonval.Document
}

func (SelDoc) isSelector() {}

type SelAnd struct{ Clauses []Selector }

func (SelAnd) isSelector() {}

type SelOr struct{ Clauses []Selector }

func (SelOr) isSelector() {}

type SelNor struct{ Clauses []Selector }

func (SelNor) isSelector() {}

// SelWhere is a raw JS predicate; it can only be executed as a
// map-reduce selection, never inside an aggregation pipeline.
type SelWhere struct{ JS bsonval.JavaScript }

func (SelWhere) isSelector() {}

// Pipelineable reports whether sel can run inside an aggregation
// pipeline: it has no Where clause and every compound sub-selector is
// itself pipelineable.
func Pipelineable(sel Selector) bool {
	switch s := sel.(type) {
	case SelWhere:
		return false
	case SelDoc:
		return true
	case SelAnd:
		return allPipelineable(s.Clauses)
	case SelOr:
		return allPipelineable(s.Clauses)
	case SelNor:
		return allPipelineable(s.Clauses)
	default:
		return true
	}
}

func allPipelineable(clauses []Selector) bool {
	for _, c := range clauses {
		if !Pipelineable(c) {
			return false
		}
	}
	return true
}

// AndSelectors combines a and b into a single selector requiring both,
// flattening into an existing top-level SelAnd on either side rather
// than nesting unboundedly.
func AndSelectors(a, b Selector) Selector {
	var clauses []Selector
	if and, ok := a.(SelAnd); ok {
		clauses = append(clauses, and.Clauses...)
	} else {
		clauses = append(clauses, a)
	}
	if and, ok := b.(SelAnd); ok {
		clauses = append(clauses, and.Clauses...)
	} else {
		clauses = append(clauses, b)
	}
	return SelAnd{Clauses: clauses}
}

func selectorToBSON(sel Selector) bsonval.Value {
	switch s := sel.(type) {
	case SelDoc:
		return s.Doc
	case SelWhere:
		return s.JS
	case SelAnd:
		return combinatorBSON("$and", s.Clauses)
	case SelOr:
		return combinatorBSON("$or", s.Clauses)
	case SelNor:
		return combinatorBSON("$nor", s.Clauses)
	default:
		panic(fmt.Sprintf("workflow: selectorToBSON: unhandled selector %T", sel))
	}
}

func combinatorBSON(op string, clauses []Selector) bsonval.Value {
	arr := make(bsonval.Array, len(clauses))
	for i, c := range clauses {
		arr[i] = selectorToBSON(c)
	}
	return bsonval.NewDocument(bsonval.Field{Name: op, Value: arr})
}

// SelectorBSON renders sel to its BSON $match body.
func SelectorBSON(sel Selector) bsonval.Value { return selectorToBSON(sel) }

// --- Scope (free JS identifiers bound for a map-reduce body) ---

type scopeEntry struct {
	name  string
	value bsonval.Value
}

// Scope is a string -> BSON mapping, merged by left-biased union that
// fails on conflicting definitions (differing values for the same
// name).
type Scope struct {
	entries []scopeEntry
}

func NewScope(pairs ...bsonval.Field) Scope {
	s := Scope{}
	for _, p := range pairs {
		s.entries = append(s.entries, scopeEntry{name: p.Name, value: p.Value})
	}
	return s
}

// NewScopeFromGo builds a Scope from plain Go values — the form a
// caller wiring up a map-reduce job from application code has on hand,
// rather than pre-built bsonval.Value literals. Binding order follows
// the order names is given in, so callers control the rendered BSON
// field order.
func NewScopeFromGo(names []string, vars map[string]interface{}) (Scope, error) {
	s := Scope{}
	for _, name := range names {
		v, err := bsonval.FromAny(vars[name])
		if err != nil {
			return Scope{}, fmt.Errorf("workflow: NewScopeFromGo: binding %q: %w", name, err)
		}
		s.entries = append(s.entries, scopeEntry{name: name, value: v})
	}
	return s, nil
}

func (s Scope) Len() int { return len(s.entries) }

func (s Scope) Lookup(name string) (bsonval.Value, bool) {
	for _, e := range s.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return nil, false
}

// Merge is a left-biased union: entries already in s win. ok is false
// iff some name is bound to two different values across s and o.
func (s Scope) Merge(o Scope) (Scope, bool) {
	out := Scope{entries: append([]scopeEntry{}, s.entries...)}
	for _, e := range o.entries {
		if existing, ok := s.Lookup(e.name); ok {
			if !bsonval.Equal(existing, e.value) {
				return Scope{}, false
			}
			continue
		}
		out.entries = append(out.entries, e)
	}
	return out, true
}

func (s Scope) ToBSON() bsonval.Document {
	fields := make([]bsonval.Field, len(s.entries))
	for i, e := range s.entries {
		fields[i] = bsonval.Field{Name: e.name, Value: e.value}
	}
	return bsonval.NewDocument(fields...)
}

// --- JS function/expression shapes ---
//
// Only the textual shape of these matters here: a full JS parser is
// out of scope, so bodies are opaque strings threaded through string
// composition, never parsed.

// JSFunc is a `function(params...) { body }` declaration used by Map,
// FlatMap and Reduce.
type JSFunc struct {
	Params []string
	Body   string
}

func (f JSFunc) Render() string {
	return fmt.Sprintf("function(%s) { %s }", joinParams(f.Params), f.Body)
}

// JSExpr is a single expression function used by SimpleMap, of the
// same arity as JSFunc but with an implicit `return`.
type JSExpr struct {
	Params []string
	Body   string // a JS expression, not a statement list
}

func (f JSExpr) Render() string {
	return fmt.Sprintf("function(%s) { return %s; }", joinParams(f.Params), f.Body)
}

func joinParams(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
