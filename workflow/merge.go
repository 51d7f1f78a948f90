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
	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// Bases is the pair of field-path references into a merged workflow
// that let downstream code find what was originally L's and R's root
// document.
type Bases struct {
	Left  DocVar
	Right DocVar
}

// Merge unifies two workflow terms that must feed a common downstream
// consumer. gen is the fresh-name state, threaded explicitly and
// advanced in place; callers that need reproducible output (tests,
// snapshots) must pass a NameGen seeded identically. Merge never
// fails: when no structural pattern applies it falls back to
// FoldLeft-of-projections, which always succeeds.
func Merge(gen *fieldpath.NameGen, l, r Op) (Bases, Op) {
	if StructurallyEqual(l, r) {
		return Bases{Left: ROOT, Right: ROOT}, l
	}
	if bases, op, ok := mergeDispatch(gen, l, r); ok {
		return bases, op
	}
	// delegate: try the mirror image and swap the bases back
	if bases, op, ok := mergeDispatch(gen, r, l); ok {
		return Bases{Left: bases.Right, Right: bases.Left}, op
	}
	return mergeFallback(gen, l, r)
}

func mergeDispatch(gen *fieldpath.NameGen, l, r Op) (Bases, Op, bool) {
	switch lv := l.(type) {
	case Pure:
		return mergePure(gen, lv, r)
	case Project:
		return mergeProject(gen, lv, r)
	case Group:
		return mergeGroup(gen, lv, r)
	case GeoNear:
		return mergeGeoNear(gen, lv, r)
	case Unwind:
		return mergeUnwind(gen, lv, r)
	case SimpleMap:
		return mergeSimpleMap(gen, lv, r)
	case Redact:
		if rv, ok := r.(Redact); ok {
			bases, unified := Merge(gen, lv.Src, rv.Src)
			lb, rb := bases.Left, bases.Right
			unified = Redact{Src: unified, Expr: rewriteWithBase(lv.Expr, lb)}
			unified = Redact{Src: unified, Expr: rewriteWithBase(rv.Expr, rb)}
			return Bases{Left: lb, Right: rb}, unified, true
		}
	case MapOp, FlatMapOp:
		if rv, ok := r.(Project); ok {
			return mergeMapLikeAgainstProject(gen, l, rv)
		}
	case ShapePreserving:
		return mergeShapePreserving(gen, l.(ShapePreserving), r)
	}
	return Bases{}, nil, false
}

// freshNames returns two fresh field names for the "wrap both sides"
// family of patterns, rejecting collisions with each other.
func freshNames(gen *fieldpath.NameGen) (string, string) {
	first := gen.FreshName(nil)
	second := gen.FreshName(map[string]bool{first: true})
	return first, second
}

// Pure, Pure / Pure, R
func mergePure(gen *fieldpath.NameGen, lv Pure, r Op) (Bases, Op, bool) {
	lName, rName := freshNames(gen)
	if rv, ok := r.(Pure); ok {
		merged := Pure{Value: bsonval.NewDocument(
			bsonval.Field{Name: lName, Value: lv.Value},
			bsonval.Field{Name: rName, Value: rv.Value},
		)}
		return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, merged, true
	}
	proj := NewProject(r, NewReshape(
		ReshapeEntry{Name: lName, Expr: litExpr(lv.Value)},
		ReshapeEntry{Name: rName, Expr: bsonval.Text("$$ROOT")},
	), IncludeId)
	return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, proj, true
}

// litExpr wraps a literal BSON value as a $literal expression so it
// cannot be misread as a field reference.
func litExpr(v bsonval.Value) bsonval.Value {
	return bsonval.NewDocument(bsonval.Field{Name: "$literal", Value: v})
}

func rewriteWithBase(v bsonval.Value, base DocVar) bsonval.Value {
	return RewriteRefs(v, PrefixBase(base))
}

// Group, Group (same by) / Group, pipeline-stage
func mergeGroup(gen *fieldpath.NameGen, lv Group, r Op) (Bases, Op, bool) {
	if rv, ok := r.(Group); ok && bsonval.Equal(lv.By, rv.By) {
		if merged, ok := lv.Grouped.MergeDisjoint(rv.Grouped); ok {
			bases, unifiedSrc := Merge(gen, lv.Src, rv.Src)
			grouped := rewriteGrouped(merged, PrefixBase(bases.Left))
			return bases, Group{Src: unifiedSrc, Grouped: grouped, By: rewriteWithBase(lv.By, bases.Left)}, true
		}
		// the two groupings share an output name under the same `by`:
		// this pattern declines. The case below skips Group/Group pairs,
		// so Merge falls back to FoldLeft-of-projections; colliding
		// names are not renamed apart.
	}
	if _, isGroup := r.(Group); !isGroup {
		if rsrc, ok := Src(r); ok {
			lName, rName := freshNames(gen)
			bases, unifiedSrc := Merge(gen, lv, rsrc)
			proj := NewProject(unifiedSrc, NewReshape(
				ReshapeEntry{Name: lName, Expr: bsonval.Text(bases.Left.Ref())},
				ReshapeEntry{Name: rName, Expr: bsonval.Text(bases.Right.Ref())},
			), IgnoreId)
			reparented := RewriteOpRefs(r, PrefixBase(NewDocVar(fieldpath.NamePath(rName))))
			result := reparented.WithChildren(proj)
			return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, result, true
		}
	}
	return Bases{}, nil, false
}

// GeoNear, pipeline-stage
func mergeGeoNear(gen *fieldpath.NameGen, lv GeoNear, r Op) (Bases, Op, bool) {
	if _, isGeoNear := r.(GeoNear); isGeoNear {
		return Bases{}, nil, false // left as a no-op per spec open question
	}
	rsrc, ok := Src(r)
	if !ok {
		return Bases{}, nil, false
	}
	bases, unified := Merge(gen, lv, rsrc)
	reparented := RewriteOpRefs(r, PrefixBase(bases.Right))
	result := reparented.WithChildren(unified)
	return Bases{Left: rootAfterProducer(lv, bases.Left), Right: bases.Right}, result, true
}

// rootAfterProducer returns ROOT for nodes that reset the document
// root (Group, Project); otherwise it returns base unchanged.
func rootAfterProducer(op Op, base DocVar) DocVar {
	switch op.(type) {
	case Group, Project:
		return ROOT
	default:
		return base
	}
}

// Unwind, Unwind / Unwind, *
func mergeUnwind(gen *fieldpath.NameGen, lv Unwind, r Op) (Bases, Op, bool) {
	if rv, ok := r.(Unwind); ok {
		if lv.Field.Equal(rv.Field) {
			bases, unified := Merge(gen, lv.Src, rv.Src)
			return bases, Unwind{Src: unified, Field: PrefixBase(bases.Left)(lv.Field)}, true
		}
		bases, unified := Merge(gen, lv.Src, rv.Src)
		result := Unwind{Src: Unwind{Src: unified, Field: PrefixBase(bases.Left)(lv.Field)}, Field: PrefixBase(bases.Right)(rv.Field)}
		return bases, result, true
	}
	bases, unified := Merge(gen, lv.Src, r)
	field := PrefixBase(bases.Left)(lv.Field)
	if bases.Left.Path().Equal(bases.Right.Path()) {
		lName, rName := freshNames(gen)
		unified = NewProject(unified, NewReshape(
			ReshapeEntry{Name: lName, Expr: bsonval.Text(bases.Left.Ref())},
			ReshapeEntry{Name: rName, Expr: bsonval.Text(bases.Right.Ref())},
		), IgnoreId)
		bases = Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}
		field = PrefixBase(bases.Left)(lv.Field)
	}
	return bases, Unwind{Src: unified, Field: field}, true
}

// SimpleMap (flatten=[]) x SimpleMap (flatten=[]) / SimpleMap, *
func mergeSimpleMap(gen *fieldpath.NameGen, lv SimpleMap, r Op) (Bases, Op, bool) {
	lName, rName := freshNames(gen)
	if rv, ok := r.(SimpleMap); ok && len(lv.Flatten) == 0 && len(rv.Flatten) == 0 {
		scope, ok := lv.Scope.Merge(rv.Scope)
		if !ok {
			return Bases{}, nil, false
		}
		_, unified := Merge(gen, lv.Src, rv.Src)
		expr := JSExpr{
			Params: []string{"key", "value"},
			Body: "{" + lName + ": (" + wrapSingleArg(lv.Expr) + ")(value), " +
				rName + ": (" + wrapSingleArg(rv.Expr) + ")(value)}",
		}
		return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, SimpleMap{Src: unified, Expr: expr, Scope: scope}, true
	}
	bases, unified := Merge(gen, lv.Src, r)
	expr := JSExpr{Params: []string{"key", "value"}, Body: "{" + lName + ": (" + wrapSingleArg(lv.Expr) + ")(value), " + rName + ": value}"}
	return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, SimpleMap{Src: unified, Expr: expr, Flatten: lv.Flatten, Scope: lv.Scope}, true
}

// Map/FlatMap, Project
func mergeMapLikeAgainstProject(gen *fieldpath.NameGen, l Op, rv Project) (Bases, Op, bool) {
	lName, rName := freshNames(gen)
	bases, unified := Merge(gen, l, rv.Src)
	rshape := rewriteReshape(rv.Shape, PrefixBase(bases.Right))
	proj := NewProject(unified, NewReshape(
		ReshapeEntry{Name: lName, Expr: bsonval.Text(bases.Left.Ref())},
		ReshapeEntry{Name: rName, Nested: &rshape},
	), rv.Id)
	return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, proj, true
}

// Project, Project / Project, pipeline / Project, SourceOp
func mergeProject(gen *fieldpath.NameGen, lv Project, r Op) (Bases, Op, bool) {
	if rv, ok := r.(Project); ok {
		if combined, ok := lv.Shape.MergeDisjoint(rv.Shape); ok && StructurallyEqual(lv.Src, rv.Src) {
			return Bases{Left: ROOT, Right: ROOT}, Project{Src: lv.Src, Shape: combined, Id: lv.Id.Merge(rv.Id)}, true
		}
		lName, rName := freshNames(gen)
		bases, unified := Merge(gen, lv.Src, rv.Src)
		proj := NewProject(unified, NewReshape(
			ReshapeEntry{Name: lName, Nested: ptrReshape(rewriteReshape(lv.Shape, PrefixBase(bases.Left)))},
			ReshapeEntry{Name: rName, Nested: ptrReshape(rewriteReshape(rv.Shape, PrefixBase(bases.Right)))},
		), IncludeId)
		return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, proj, true
	}
	if lsrc, ok := Src(lv); ok && StructurallyEqual(lsrc, r) {
		lName, rName := freshNames(gen)
		proj := NewProject(lsrc, NewReshape(
			ReshapeEntry{Name: lName, Nested: &lv.Shape},
			ReshapeEntry{Name: rName, Expr: bsonval.Text("$$ROOT")},
		), IncludeId)
		return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, proj, true
	}
	lName, rName := freshNames(gen)
	bases, unified := Merge(gen, lv.Src, r)
	shape := rewriteReshape(lv.Shape, PrefixBase(bases.Left))
	proj := NewProject(unified, NewReshape(
		ReshapeEntry{Name: lName, Nested: &shape},
		ReshapeEntry{Name: rName, Expr: bsonval.Text(bases.Right.Ref())},
	), lv.Id.Merge(IncludeId))
	return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, proj, true
}

func ptrReshape(r Reshape) *Reshape { return &r }

// ShapePreservingF(ls), R: reparent the shape-preserving stage over
// the unified (ls, R) source.
func mergeShapePreserving(gen *fieldpath.NameGen, lv ShapePreserving, r Op) (Bases, Op, bool) {
	lsrc, ok := Src(lv)
	if !ok {
		return Bases{}, nil, false
	}
	bases, unified := Merge(gen, lsrc, r)
	reparented := RewriteOpRefs(lv, PrefixBase(bases.Left)).WithChildren(unified)
	return Bases{Left: bases.Left, Right: bases.Right}, reparented, true
}

// mergeFallback is the universal, always-succeeding pattern: project
// both sides under fresh names and compose with FoldLeft.
func mergeFallback(gen *fieldpath.NameGen, l, r Op) (Bases, Op) {
	lName, rName := freshNames(gen)
	lProj := NewProject(l, NewReshape(ReshapeEntry{Name: lName, Expr: bsonval.Text("$$ROOT")}), IncludeId)
	rProj := NewProject(r, NewReshape(ReshapeEntry{Name: rName, Expr: bsonval.Text("$$ROOT")}), IncludeId)
	fl, err := NewFoldLeft(lProj, rProj)
	if err != nil {
		// unreachable: NewFoldLeft with a non-empty tail never errors
		panic(err)
	}
	return Bases{Left: NewDocVar(fieldpath.NamePath(lName)), Right: NewDocVar(fieldpath.NamePath(rName))}, fl
}
