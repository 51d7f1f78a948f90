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

// Merging a term with itself is the StructurallyEqual shortcut: both
// bases are ROOT and no fresh names are allocated.
func TestMergeIdenticalPures(t *testing.T) {
	gen := fieldpath.NewNameGen()
	w := Pure{Value: bsonval.NewDocument(bsonval.Field{Name: "a", Value: bsonval.Int32(1)})}

	bases, merged := Merge(gen, w, w)
	require.Equal(t, Bases{Left: ROOT, Right: ROOT}, bases)
	require.True(t, StructurallyEqual(w, merged))
	require.EqualValues(t, 0, gen.Counter())
}

// Distinct Reads fall back to the FoldLeft-of-projections case, which
// always succeeds rather than returning an error.
func TestMergeDistinctReadsFallsBackToFoldLeft(t *testing.T) {
	gen := fieldpath.NewNameGen()
	l := Read{Collection: "left"}
	r := Read{Collection: "right"}

	_, merged := Merge(gen, l, r)
	_, ok := merged.(FoldLeft)
	require.True(t, ok, "expected fallback merge to produce a FoldLeft, got %T", merged)
}

// Merge of two distinct Pures (S3): mergePure wraps each side's value
// under a freshly-generated field, starting the NameGen's counter at
// __sd_tmp_0, __sd_tmp_1 — no FoldLeft needed since Pure/Pure unifies
// directly into a single merged Pure document.
func TestMergeTwoPuresWrapsUnderFreshNames(t *testing.T) {
	gen := fieldpath.NewNameGen()
	l := Pure{Value: bsonval.NewDocument(bsonval.Field{Name: "a", Value: bsonval.Int32(1)})}
	r := Pure{Value: bsonval.NewDocument(bsonval.Field{Name: "b", Value: bsonval.Int32(2)})}

	bases, merged := Merge(gen, l, r)

	require.Equal(t, Bases{
		Left:  NewDocVar(fieldpath.NamePath("__sd_tmp_0")),
		Right: NewDocVar(fieldpath.NamePath("__sd_tmp_1")),
	}, bases)

	want := Pure{Value: bsonval.NewDocument(
		bsonval.Field{Name: "__sd_tmp_0", Value: l.Value},
		bsonval.Field{Name: "__sd_tmp_1", Value: r.Value},
	)}
	require.True(t, StructurallyEqual(want, merged), "got %#v", merged)
	require.EqualValues(t, 2, gen.Counter())
}
