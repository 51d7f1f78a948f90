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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/slamdata/mongoworkflow/bsonval"
)

func opComparer() cmp.Option {
	return cmp.Comparer(func(a, b Op) bool { return StructurallyEqual(a, b) })
}

func ageGt(n int32) Selector {
	return SelDoc{Doc: bsonval.NewDocument(bsonval.Field{
		Name:  "age",
		Value: bsonval.NewDocument(bsonval.Field{Name: "$gt", Value: bsonval.Int32(n)}),
	})}
}

func nameEq(s string) Selector {
	return SelDoc{Doc: bsonval.NewDocument(bsonval.Field{Name: "name", Value: bsonval.Text(s)})}
}

// adjacent matches fold into a single Match on the conjunction.
func TestCoalesceAdjacentMatch(t *testing.T) {
	base := Read{Collection: "people"}
	got := NewMatch(NewMatch(base, ageGt(21)), nameEq("ana"))

	var want Op = Match{Src: base, Selector: AndSelectors(nameEq("ana"), ageGt(21))}
	if diff := cmp.Diff(want, got, opComparer()); diff != "" {
		t.Fatalf("coalesced match mismatch (-want +got):\n%s", diff)
	}
}

// Limit after Skip reorders to Skip(Limit(...)) so the limit applies to
// the post-skip window, not the whole stream.
func TestCoalesceLimitAfterSkip(t *testing.T) {
	base := Read{Collection: "people"}
	got := NewLimit(NewSkip(base, 10), 5)

	var want Op = Skip{Src: Limit{Src: base, Count: 15}, Count: 10}
	if diff := cmp.Diff(want, got, opComparer()); diff != "" {
		t.Fatalf("coalesced limit-after-skip mismatch (-want +got):\n%s", diff)
	}
}

func TestCoalesceLimitAfterLimitTakesMin(t *testing.T) {
	base := Read{Collection: "people"}
	got := NewLimit(NewLimit(base, 5), 20)
	require.Equal(t, Limit{Src: base, Count: 5}, got)
}

func TestCoalesceSkipAfterSkipSums(t *testing.T) {
	base := Read{Collection: "people"}
	got := NewSkip(NewSkip(base, 5), 10)
	require.Equal(t, Skip{Src: base, Count: 15}, got)
}

// coalesce is idempotent: re-running it on already-normal-form output
// changes nothing.
func TestCoalesceIdempotent(t *testing.T) {
	base := Read{Collection: "people"}
	once := NewMatch(NewMatch(base, ageGt(21)), nameEq("ana"))
	twice := coalesce(once)
	if diff := cmp.Diff(once, twice, opComparer()); diff != "" {
		t.Fatalf("coalesce not idempotent (-once +twice):\n%s", diff)
	}
}

func TestIdHandlingMerge(t *testing.T) {
	require.Equal(t, IncludeId, IncludeId.Merge(ExcludeId))
	require.Equal(t, IncludeId, ExcludeId.Merge(IncludeId))
	require.Equal(t, ExcludeId, ExcludeId.Merge(IgnoreId))
	require.Equal(t, ExcludeId, IgnoreId.Merge(ExcludeId))
}

func TestIdHandlingCoalesce(t *testing.T) {
	require.Equal(t, ExcludeId, IgnoreId.Coalesce(ExcludeId))
	require.Equal(t, IncludeId, IgnoreId.Coalesce(IncludeId))
	require.Equal(t, ExcludeId, ExcludeId.Coalesce(IgnoreId))
}

// Map-after-Map (rule 10) composes the child's Fn and the parent's Fn
// into a single function that still conforms to the
// `(key, value) -> [[key, value], ...]` convention: it must flatten
// over the child's list of pairs, not destructure a single one, since
// that is the list-of-pairs form finalize.go's lowerSimpleMap produces
// and render.go's native map body expects when it later consumes
// this Fn via .forEach.
func TestCoalesceMapAfterMapFlattensPairLists(t *testing.T) {
	base := Read{Collection: "people"}
	inner := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.a]];"}
	outer := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.b]];"}

	got := NewMap(NewMap(base, inner, Scope{}), outer, Scope{})

	mapped, ok := got.(MapOp)
	require.True(t, ok, "expected coalesced Map-after-Map to stay a MapOp, got %T", got)
	require.Equal(t, base, mapped.Src)
	require.Equal(t, composePairLists(outer, inner).Render(), mapped.Fn.Render())
	require.Contains(t, mapped.Fn.Render(), ".forEach(function(__kv)",
		"composed Fn must flatten the inner Fn's list of pairs, not destructure a bare pair")
}

// FlatMap-after-Map (rule 10) uses the exact same flattening
// composition as Map-after-Map: FlatMap carries no different calling
// convention for its Fn than Map does.
func TestCoalesceFlatMapAfterMapFlattensPairLists(t *testing.T) {
	base := Read{Collection: "people"}
	inner := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.a]];"}
	outer := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.b], [key, value.c]];"}

	got := NewFlatMap(NewMap(base, inner, Scope{}), outer, Scope{})

	fm, ok := got.(FlatMapOp)
	require.True(t, ok, "expected coalesced FlatMap-after-Map to stay a FlatMapOp, got %T", got)
	require.Equal(t, base, fm.Src)
	require.Equal(t, composePairLists(outer, inner).Render(), fm.Fn.Render())
}

// FlatMap-after-FlatMap (rule 10) is Kleisli composition over the
// array monad, using the same flattening shape.
func TestCoalesceFlatMapAfterFlatMapFlattensPairLists(t *testing.T) {
	base := Read{Collection: "people"}
	inner := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.a], [key, value.b]];"}
	outer := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value.c]];"}

	got := NewFlatMap(NewFlatMap(base, inner, Scope{}), outer, Scope{})

	fm, ok := got.(FlatMapOp)
	require.True(t, ok, "expected coalesced FlatMap-after-FlatMap to stay a FlatMapOp, got %T", got)
	require.Equal(t, base, fm.Src)
	require.Equal(t, composePairLists(outer, inner).Render(), fm.Fn.Render())
}
