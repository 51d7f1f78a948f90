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

// StructurallyEqual reports whether a and b are the same workflow term,
// field for field, used by merge's "L = R structurally" pattern (spec
// §4.2, first row of the pattern table).
func StructurallyEqual(a, b Op) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Pure:
		bv, ok := b.(Pure)
		return ok && bsonval.Equal(av.Value, bv.Value)
	case Read:
		bv, ok := b.(Read)
		return ok && av.Collection == bv.Collection
	case Match:
		bv, ok := b.(Match)
		return ok && selectorsEqual(av.Selector, bv.Selector) && StructurallyEqual(av.Src, bv.Src)
	case Sort:
		bv, ok := b.(Sort)
		if !ok || len(av.Keys) != len(bv.Keys) || !StructurallyEqual(av.Src, bv.Src) {
			return false
		}
		for i := range av.Keys {
			if av.Keys[i].Ascending != bv.Keys[i].Ascending || !av.Keys[i].Field.Equal(bv.Keys[i].Field) {
				return false
			}
		}
		return true
	case Limit:
		bv, ok := b.(Limit)
		return ok && av.Count == bv.Count && StructurallyEqual(av.Src, bv.Src)
	case Skip:
		bv, ok := b.(Skip)
		return ok && av.Count == bv.Count && StructurallyEqual(av.Src, bv.Src)
	case Out:
		bv, ok := b.(Out)
		return ok && av.Collection == bv.Collection && StructurallyEqual(av.Src, bv.Src)
	case Project:
		bv, ok := b.(Project)
		return ok && av.Id == bv.Id && reshapesEqual(av.Shape, bv.Shape) && StructurallyEqual(av.Src, bv.Src)
	case Redact:
		bv, ok := b.(Redact)
		return ok && bsonval.Equal(av.Expr, bv.Expr) && StructurallyEqual(av.Src, bv.Src)
	case Unwind:
		bv, ok := b.(Unwind)
		return ok && av.Field.Equal(bv.Field) && StructurallyEqual(av.Src, bv.Src)
	case Group:
		bv, ok := b.(Group)
		return ok && groupedEqual(av.Grouped, bv.Grouped) && bsonval.Equal(av.By, bv.By) && StructurallyEqual(av.Src, bv.Src)
	case GeoNear:
		bv, ok := b.(GeoNear)
		if !ok || av.Near != bv.Near || !av.DistanceField.Equal(bv.DistanceField) ||
			av.Spherical != bv.Spherical || av.UniqueDocs != bv.UniqueDocs ||
			(av.Limit == nil) != (bv.Limit == nil) || (av.Limit != nil && *av.Limit != *bv.Limit) ||
			(av.MaxDistance == nil) != (bv.MaxDistance == nil) || (av.MaxDistance != nil && *av.MaxDistance != *bv.MaxDistance) ||
			(av.DistanceMultiplier == nil) != (bv.DistanceMultiplier == nil) ||
			(av.DistanceMultiplier != nil && *av.DistanceMultiplier != *bv.DistanceMultiplier) ||
			(av.IncludeLocs == nil) != (bv.IncludeLocs == nil) || (av.IncludeLocs != nil && !av.IncludeLocs.Equal(*bv.IncludeLocs)) ||
			(av.Query == nil) != (bv.Query == nil) || (av.Query != nil && !selectorsEqual(av.Query, bv.Query)) {
			return false
		}
		return StructurallyEqual(av.Src, bv.Src)
	case MapOp:
		bv, ok := b.(MapOp)
		return ok && jsFuncEqual(av.Fn, bv.Fn) && scopesEqual(av.Scope, bv.Scope) && StructurallyEqual(av.Src, bv.Src)
	case FlatMapOp:
		bv, ok := b.(FlatMapOp)
		return ok && jsFuncEqual(av.Fn, bv.Fn) && scopesEqual(av.Scope, bv.Scope) && StructurallyEqual(av.Src, bv.Src)
	case SimpleMap:
		bv, ok := b.(SimpleMap)
		return ok && jsExprEqual(av.Expr, bv.Expr) && pathsEqual(av.Flatten, bv.Flatten) && scopesEqual(av.Scope, bv.Scope) && StructurallyEqual(av.Src, bv.Src)
	case ReduceOp:
		bv, ok := b.(ReduceOp)
		return ok && jsFuncEqual(av.Fn, bv.Fn) && scopesEqual(av.Scope, bv.Scope) && StructurallyEqual(av.Src, bv.Src)
	case FoldLeft:
		bv, ok := b.(FoldLeft)
		if !ok || len(av.Tail) != len(bv.Tail) || !StructurallyEqual(av.Head, bv.Head) {
			return false
		}
		for i := range av.Tail {
			if !StructurallyEqual(av.Tail[i], bv.Tail[i]) {
				return false
			}
		}
		return true
	case Join:
		bv, ok := b.(Join)
		if !ok || len(av.Srcs) != len(bv.Srcs) {
			return false
		}
		for i := range av.Srcs {
			if !StructurallyEqual(av.Srcs[i], bv.Srcs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func reshapesEqual(a, b Reshape) bool {
	ae, be := a.Entries(), b.Entries()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if ae[i].Name != be[i].Name {
			return false
		}
		if (ae[i].Nested == nil) != (be[i].Nested == nil) {
			return false
		}
		if ae[i].Nested != nil {
			if !reshapesEqual(*ae[i].Nested, *be[i].Nested) {
				return false
			}
		} else if !bsonval.Equal(ae[i].Expr, be[i].Expr) {
			return false
		}
	}
	return true
}

func groupedEqual(a, b Grouped) bool {
	ae, be := a.Entries(), b.Entries()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if !ae[i].Leaf.Equal(be[i].Leaf) || ae[i].Op.Name != be[i].Op.Name || !bsonval.Equal(ae[i].Op.Arg, be[i].Op.Arg) {
			return false
		}
	}
	return true
}

func scopesEqual(a, b Scope) bool {
	ae, be := a.entries, b.entries
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if ae[i].name != be[i].name || !bsonval.Equal(ae[i].value, be[i].value) {
			return false
		}
	}
	return true
}

func pathsEqual(a, b []fieldpath.Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func selectorsEqual(a, b Selector) bool {
	return bsonval.Equal(SelectorBSON(a), SelectorBSON(b))
}

func jsFuncEqual(a, b JSFunc) bool {
	return a.Render() == b.Render()
}

func jsExprEqual(a, b JSExpr) bool {
	return a.Render() == b.Render()
}
