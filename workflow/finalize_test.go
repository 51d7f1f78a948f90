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

	"github.com/stretchr/testify/require"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/fieldpath"
)

// A FoldLeft whose tail entries aren't ReduceOp yet gets every tail
// entry wrapped in one, and its head wrapped so it reads from $ROOT.
func TestFinalizeNormalizesFoldLeftTail(t *testing.T) {
	head := Read{Collection: "left"}
	tailSrc := Read{Collection: "right"}
	fl, err := NewFoldLeft(head, tailSrc)
	require.NoError(t, err)

	out := Finalize(fl)
	finalized, ok := out.(FoldLeft)
	require.True(t, ok, "expected Finalize(FoldLeft) to stay a FoldLeft, got %T", out)
	require.Len(t, finalized.Tail, 1)
	_, ok = finalized.Tail[0].(ReduceOp)
	require.True(t, ok, "expected tail entry to be normalized to a ReduceOp, got %T", finalized.Tail[0])
}

// Finalize is idempotent: finalizing an already-finalized term changes
// nothing further.
func TestFinalizeIdempotent(t *testing.T) {
	head := Read{Collection: "left"}
	tailSrc := Read{Collection: "right"}
	fl, err := NewFoldLeft(head, tailSrc)
	require.NoError(t, err)

	once := Finalize(fl)
	twice := Finalize(once)
	require.True(t, StructurallyEqual(once, twice), "Finalize not idempotent: %#v vs %#v", once, twice)
}

// A Group with a known output shape gets a terminal Project naming its
// surviving fields (_id plus every grouped entry).
func TestFinalizePromotesKnownShape(t *testing.T) {
	grouped := NewGroup(Read{Collection: "people"},
		NewGrouped(GroupedEntry{Leaf: fieldpath.Name("first"), Op: GroupOp{Name: "$first", Arg: bsonval.Text("$name")}}),
		bsonval.Null{})

	out := Finalize(grouped)
	proj, ok := out.(Project)
	require.True(t, ok, "expected Finalize to promote a terminal Project, got %T", out)
	require.ElementsMatch(t, []string{IdLabel, "first"}, proj.Shape.Fields())
}
