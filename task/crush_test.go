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

package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/workflow"
)

// A Match whose selector is a raw JS predicate can't run inside an
// aggregation pipeline, so it crushes to a map-reduce job carrying the
// selector as its query.
func TestCrushWhereMatchForcesMapReduce(t *testing.T) {
	src := workflow.Read{Collection: "people"}
	sel := workflow.SelWhere{JS: bsonval.JavaScript("this.age > 21")}
	m := workflow.Match{Src: src, Selector: sel}

	_, got, err := Crush(m)
	require.NoError(t, err)

	mrt, ok := got.(MapReduceTask)
	require.True(t, ok, "expected Match(Where) to crush to a MapReduceTask, got %T", got)
	require.Equal(t, sel, mrt.Spec.Selection)
	readSrc, ok := mrt.Source.(ReadTask)
	require.True(t, ok, "expected map-reduce source to be the bare ReadTask, got %T", mrt.Source)
	require.Equal(t, "people", readSrc.Collection)
}

// A Match whose selector is an ordinary document predicate stays a
// pipeline stage.
func TestCrushDocMatchStaysPipeline(t *testing.T) {
	src := workflow.Read{Collection: "people"}
	sel := workflow.SelDoc{Doc: bsonval.NewDocument(bsonval.Field{Name: "age", Value: bsonval.Int32(21)})}
	m := workflow.Match{Src: src, Selector: sel}

	_, got, err := Crush(m)
	require.NoError(t, err)

	pt, ok := got.(PipelineTask)
	require.True(t, ok, "expected Match(Doc) to crush to a PipelineTask, got %T", got)
	require.Len(t, pt.Stages, 1)
}

// A SimpleMap reaching Crush unlowered (Finalize skipped) is reported
// as a structural impossibility, never a panic.
func TestCrushUnloweredSimpleMapReturnsError(t *testing.T) {
	sm := workflow.SimpleMap{
		Src:  workflow.Read{Collection: "people"},
		Expr: workflow.JSExpr{Params: []string{"key", "value"}, Body: "value"},
	}
	_, _, err := Crush(sm)
	require.Error(t, err)
	require.True(t, ErrUnlowered.Is(err), "expected ErrUnlowered, got %v", err)
}

// FoldLeft crushes its head and tail into a FoldLeftTask, with each
// tail entry's output routed to the shared accumulator collection.
func TestCrushFoldLeft(t *testing.T) {
	head := workflow.Read{Collection: "left"}
	tailSrc := workflow.ReduceOp{
		Src: workflow.Read{Collection: "right"},
		Fn:  workflow.JSFunc{Params: []string{"key", "values"}, Body: "return values[0];"},
	}
	fl := workflow.FoldLeft{Head: head, Tail: []workflow.Op{tailSrc}}

	_, got, err := Crush(fl)
	require.NoError(t, err)

	flt, ok := got.(FoldLeftTask)
	require.True(t, ok, "expected FoldLeft to crush to a FoldLeftTask, got %T", got)
	require.Len(t, flt.Tail, 1)
	require.Equal(t, FoldOutputCollection, flt.Tail[0].Spec.Out.Collection)
}
