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

	"github.com/sirupsen/logrus"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// log is the package-wide logger used to trace which coalesce rule
// fired; callers that care can swap it with SetLogger.
var log = logrus.StandardLogger()

// SetLogger redirects the coalesce trace logging.
func SetLogger(l *logrus.Logger) { log = l }

func rule(name string) {
	log.WithField("rule", name).Debug("coalesce: rule fired")
}

// --- smart constructors ---
//
// Every one of these builds the raw node and immediately pushes it
// through coalesce, which inspects only the outermost node and its
// single child. coalesce is not applied recursively onto existing
// children: reaching fixpoint is the smart constructors' job, since
// every child handed to one of these was itself already built through
// a smart constructor.

func NewMatch(src Op, sel Selector) Op {
	return coalesce(Match{Src: src, Selector: sel})
}

func NewSort(src Op, keys []SortKey) Op {
	return coalesce(Sort{Src: src, Keys: keys})
}

func NewLimit(src Op, n int64) Op {
	return coalesce(Limit{Src: src, Count: n})
}

func NewSkip(src Op, n int64) Op {
	return coalesce(Skip{Src: src, Count: n})
}

func NewOut(src Op, collection string) Op {
	return coalesce(Out{Src: src, Collection: collection})
}

func NewProject(src Op, shape Reshape, id IdHandling) Op {
	return coalesce(Project{Src: src, Shape: shape, Id: id})
}

func NewRedact(src Op, expr bsonval.Value) Op {
	return coalesce(Redact{Src: src, Expr: expr})
}

func NewUnwind(src Op, field fieldpath.Path) Op {
	return coalesce(Unwind{Src: src, Field: field})
}

func NewGroup(src Op, grouped Grouped, by bsonval.Value) Op {
	return coalesce(Group{Src: src, Grouped: grouped, By: by})
}

func NewGeoNear(src Op, params GeoNear) Op {
	params.Src = src
	return coalesce(params)
}

func NewMap(src Op, fn JSFunc, scope Scope) Op {
	return coalesce(MapOp{Src: src, Fn: fn, Scope: scope})
}

func NewFlatMap(src Op, fn JSFunc, scope Scope) Op {
	return coalesce(FlatMapOp{Src: src, Fn: fn, Scope: scope})
}

func NewSimpleMap(src Op, expr JSExpr, flatten []fieldpath.Path, scope Scope) Op {
	return coalesce(SimpleMap{Src: src, Expr: expr, Flatten: flatten, Scope: scope})
}

func NewReduce(src Op, fn JSFunc, scope Scope) Op {
	return ReduceOp{Src: src, Fn: fn, Scope: scope}
}

// NewMapFromGo is NewMap for a caller that has its JS scope bindings as
// plain Go values (config, decoded JSON, literals) rather than
// pre-built bsonval.Value scope entries.
func NewMapFromGo(src Op, fn JSFunc, varNames []string, vars map[string]interface{}) (Op, error) {
	scope, err := NewScopeFromGo(varNames, vars)
	if err != nil {
		return nil, err
	}
	return NewMap(src, fn, scope), nil
}

func NewFoldLeft(head Op, tail ...Op) (Op, error) {
	if len(tail) == 0 {
		return nil, ErrEmptyFoldLeftTail.New()
	}
	return coalesce(FoldLeft{Head: head, Tail: tail}), nil
}

func NewJoin(srcs ...Op) (Op, error) {
	if len(srcs) == 0 {
		return nil, ErrEmptyJoin.New()
	}
	return Join{Srcs: srcs}, nil
}

// coalesce is the single dispatcher for rules 1-14 of the ruleset. It
// is idempotent: coalesce(coalesce(op)) == coalesce(op), since a node
// it rewrites is rebuilt from already-normal-form children and none of
// the rules below apply to their own output (each strictly changes the
// node's variant, count of stages, or the numeric parameters of an
// already-innermost stage).
func coalesce(op Op) Op {
	switch t := op.(type) {
	case Match:
		return coalesceMatch(t)
	case Limit:
		return coalesceLimit(t)
	case Skip:
		return coalesceSkip(t)
	case Project:
		return coalesceProject(t)
	case Group:
		return coalesceGroup(t)
	case Out:
		return coalesceOut(t)
	case MapOp:
		return coalesceMap(t)
	case FlatMapOp:
		return coalesceFlatMap(t)
	case SimpleMap:
		return coalesceSimpleMap(t)
	case FoldLeft:
		return coalesceFoldLeft(t)
	default:
		return op
	}
}

// rule 1 + rule 2
func coalesceMatch(m Match) Op {
	switch child := m.Src.(type) {
	case Match:
		rule("match-after-match")
		return Match{Src: child.Src, Selector: AndSelectors(m.Selector, child.Selector)}
	case Sort:
		rule("match-after-sort")
		return Sort{Src: Match{Src: child.Src, Selector: m.Selector}, Keys: child.Keys}
	default:
		return m
	}
}

// rule 5 + rule 6
func coalesceLimit(l Limit) Op {
	switch child := l.Src.(type) {
	case Limit:
		rule("limit-after-limit")
		n := l.Count
		if child.Count < n {
			n = child.Count
		}
		return Limit{Src: child.Src, Count: n}
	case Skip:
		rule("limit-after-skip")
		return Skip{Src: Limit{Src: child.Src, Count: child.Count + l.Count}, Count: child.Count}
	default:
		return l
	}
}

// rule 7
func coalesceSkip(s Skip) Op {
	if child, ok := s.Src.(Skip); ok {
		rule("skip-after-skip")
		return Skip{Src: child.Src, Count: s.Count + child.Count}
	}
	return s
}

// rule 3 + rule 4
func coalesceProject(p Project) Op {
	switch child := p.Src.(type) {
	case Project:
		if merged, ok := inlineProjectIntoProject(p, child); ok {
			rule("project-after-project")
			return merged
		}
		return p
	case Group:
		if p.Id != ExcludeId {
			if merged, ok := inlineProjectIntoGroup(p, child, nil); ok {
				rule("project-after-group")
				return merged
			}
		}
		return p
	case Unwind:
		if grp, ok := child.Src.(Group); ok && p.Id != ExcludeId {
			if merged, ok := inlineProjectIntoGroup(p, grp, &child); ok {
				rule("project-after-unwind-of-group")
				return merged
			}
		}
		return p
	default:
		return p
	}
}

// bareFieldRef reports whether v is a top-level field reference
// "$name" with no further path segments, returning name.
func bareFieldRef(v bsonval.Value) (string, bool) {
	t, ok := v.(bsonval.Text)
	if !ok {
		return "", false
	}
	s := string(t)
	if !strings.HasPrefix(s, "$") || strings.HasPrefix(s, "$$") {
		return "", false
	}
	name := s[1:]
	if name == "" || strings.ContainsAny(name, ".") {
		return "", false
	}
	return name, true
}

// inlineProjectIntoProject composes outer over inner when every outer
// entry is a bare rename of one of inner's fields. If any entry is a
// nested reshape, references a name inner does not define, or
// references something other than a bare top-level field, the
// composition is declined.
func inlineProjectIntoProject(outer Project, inner Project) (Op, bool) {
	composed := NewReshape()
	for _, e := range outer.Shape.Entries() {
		if e.Nested != nil {
			return nil, false
		}
		name, ok := bareFieldRef(e.Expr)
		if !ok {
			return nil, false
		}
		innerEntry, ok := inner.Shape.Get(name)
		if !ok {
			return nil, false
		}
		if innerEntry.Nested != nil {
			composed = composed.appendNested(e.Name, *innerEntry.Nested)
		} else {
			composed = composed.Set(e.Name, innerEntry.Expr)
		}
	}
	return Project{Src: inner.Src, Shape: composed, Id: inner.Id.Coalesce(outer.Id)}, true
}

// inlineProjectIntoGroup implements rules 4: a Project (optionally
// reached through an Unwind) directly over a Group is eliminated by
// renaming the group's own output leaves, when every projected field
// is a pure rename of a group output leaf.
func inlineProjectIntoGroup(outer Project, grp Group, unwind *Unwind) (Op, bool) {
	renamed := NewGrouped()
	for _, e := range outer.Shape.Entries() {
		if e.Nested != nil {
			return nil, false
		}
		name, ok := bareFieldRef(e.Expr)
		if !ok {
			return nil, false
		}
		entry, ok := grp.Grouped.Get(fieldpath.Name(name))
		if !ok {
			return nil, false
		}
		renamed = renamed.Set(fieldpath.Name(e.Name), entry.Op)
	}
	newGroup := Group{Src: grp.Src, Grouped: renamed, By: grp.By}
	if unwind == nil {
		return newGroup, true
	}
	// the unwound field must survive the projection; it is renamed to
	// the outer entry that references it
	head := unwind.Field.Head()
	if head.IsIndex() {
		return nil, false
	}
	for _, e := range outer.Shape.Entries() {
		if name, ok := bareFieldRef(e.Expr); ok && name == head.NameValue() {
			field := fieldpath.FromLeaves(append([]fieldpath.Leaf{fieldpath.Name(e.Name)}, unwind.Field.Leaves()[1:]...)...)
			return Unwind{Src: newGroup, Field: field}, true
		}
	}
	return nil, false
}

// rule 8 + rule 9
func coalesceGroup(g Group) Op {
	if isLiteralNonNull(g.By) {
		rule("group-literal-by")
		g = Group{Src: g.Src, Grouped: g.Grouped, By: bsonval.Null{}}
	}
	if proj, ok := g.Src.(Project); ok {
		if inlined, ok := inlineGroupProjects(g, proj); ok {
			rule("inline-group-projects")
			return inlined
		}
	}
	return g
}

func isLiteralNonNull(v bsonval.Value) bool {
	if _, isNull := v.(bsonval.Null); isNull {
		return false
	}
	if t, ok := v.(bsonval.Text); ok && strings.HasPrefix(string(t), "$") {
		return false
	}
	if _, isDoc := v.(bsonval.Document); isDoc {
		return false // may contain references; leave alone
	}
	if _, isArr := v.(bsonval.Array); isArr {
		return false
	}
	return true
}

// inlineGroupProjects pulls every field the group references (its
// accumulator arguments and its `by` expression) from an immediately
// preceding Project, substituting the Project's expression for the
// bare top-level reference. Declined unless every reference resolves.
func inlineGroupProjects(g Group, proj Project) (Op, bool) {
	sub := func(v bsonval.Value) (bsonval.Value, bool) {
		name, ok := bareFieldRef(v)
		if !ok {
			return v, isPureLiteral(v)
		}
		entry, ok := proj.Shape.Get(name)
		if !ok || entry.Nested != nil {
			return nil, false
		}
		return entry.Expr, true
	}
	newGrouped := NewGrouped()
	for _, e := range g.Grouped.Entries() {
		arg, ok := sub(e.Op.Arg)
		if !ok {
			return nil, false
		}
		newGrouped = newGrouped.Set(e.Leaf, GroupOp{Name: e.Op.Name, Arg: arg})
	}
	by, ok := sub(g.By)
	if !ok {
		return nil, false
	}
	return Group{Src: proj.Src, Grouped: newGrouped, By: by}, true
}

// rule 13
func coalesceOut(o Out) Op {
	if r, ok := o.Src.(Read); ok && r.Collection == o.Collection {
		rule("out-after-read")
		return r
	}
	return o
}

// rule 10 (Map / Map)
func coalesceMap(m MapOp) Op {
	if child, ok := m.Src.(MapOp); ok {
		if scope, ok := m.Scope.Merge(child.Scope); ok {
			rule("map-after-map")
			return MapOp{Src: child.Src, Fn: composeMapMap(m.Fn, child.Fn), Scope: scope}
		}
		log.Debug("coalesce: map-after-map declined: scope conflict")
	}
	return m
}

// rule 10 (FlatMap / Map)
func coalesceFlatMap(fm FlatMapOp) Op {
	switch child := fm.Src.(type) {
	case MapOp:
		if scope, ok := fm.Scope.Merge(child.Scope); ok {
			rule("flatmap-after-map")
			return FlatMapOp{Src: child.Src, Fn: composeFlatMapMap(fm.Fn, child.Fn), Scope: scope}
		}
		log.Debug("coalesce: flatmap-after-map declined: scope conflict")
	case FlatMapOp:
		if scope, ok := fm.Scope.Merge(child.Scope); ok {
			rule("flatmap-after-flatmap")
			return FlatMapOp{Src: child.Src, Fn: composeFlatMapFlatMap(fm.Fn, child.Fn), Scope: scope}
		}
		log.Debug("coalesce: flatmap-after-flatmap declined: scope conflict")
	}
	return fm
}

// rule 11
func coalesceSimpleMap(sm SimpleMap) Op {
	if child, ok := sm.Src.(SimpleMap); ok {
		if scope, ok := sm.Scope.Merge(child.Scope); ok {
			rule("simplemap-after-simplemap")
			return SimpleMap{
				Src:     child.Src,
				Expr:    composeSimpleMapExpr(sm.Expr, child.Expr),
				Flatten: append(append([]fieldpath.Path{}, child.Flatten...), sm.Flatten...),
				Scope:   scope,
			}
		}
		log.Debug("coalesce: simplemap-after-simplemap declined: scope conflict")
	}
	return sm
}

// rule 12
func coalesceFoldLeft(f FoldLeft) Op {
	if inner, ok := f.Head.(FoldLeft); ok {
		rule("foldleft-after-foldleft")
		return FoldLeft{Head: inner.Head, Tail: append(append([]Op{}, inner.Tail...), f.Tail...)}
	}
	return f
}

func (r Reshape) appendNested(name string, nested Reshape) Reshape {
	return Reshape{entries: append(append([]ReshapeEntry{}, r.entries...), ReshapeEntry{Name: name, Nested: &nested})}
}
