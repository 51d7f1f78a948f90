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
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/slamdata/mongoworkflow/workflow"
)

// FoldOutputCollection is the reserved temp collection every FoldLeft
// tail entry accumulates its reduce output into.
const FoldOutputCollection = "__sd_tmp_fold_out"

// Crush is the paramorphic lowering of a (merged, finalized) workflow
// term to its executable task tree. It assumes Finalize has already
// run: a SimpleMap reaching crush, or a FoldLeft tail entry that does
// not crush to a map-reduce job, is a structural impossibility, reported as an error
// (never a panic) whose chain names every node on the path down to the
// one that violated the invariant.
func Crush(op workflow.Op) (workflow.DocVar, WorkflowTask, error) {
	switch t := op.(type) {
	case workflow.Pure:
		return workflow.ROOT, PureTask{Value: t.Value}, nil
	case workflow.Read:
		return workflow.ROOT, ReadTask{Collection: t.Collection}, nil
	case workflow.Match:
		if !workflow.Pipelineable(t.Selector) {
			return crushWhereMatch(t)
		}
		return crushPipeline(t)
	case workflow.MapOp:
		return crushMapReduce(t)
	case workflow.FlatMapOp:
		return crushMapReduce(t)
	case workflow.ReduceOp:
		return crushMapReduce(t)
	case workflow.SimpleMap:
		return workflow.DocVar{}, nil, ErrUnlowered.New(t)
	case workflow.FoldLeft:
		return crushFoldLeft(t)
	case workflow.Join:
		return crushJoin(t)
	default:
		if _, ok := op.(workflow.PipelineF); ok {
			return crushPipeline(op)
		}
		return workflow.DocVar{}, nil, ErrCannotCrush.New(op)
	}
}

// crushPipeline walks down a chain of pipeline stages, collecting each
// one (with its own Src cleared) until it reaches a source or a node
// that can't be folded into the same aggregation request — a Match
// whose selector isn't pipelineable, or a non-PipelineF node, both of
// which are crushed recursively and become this chain's Source.
func crushPipeline(op workflow.Op) (workflow.DocVar, WorkflowTask, error) {
	var stages []workflow.Op
	cur := op
	for {
		pf, ok := cur.(workflow.PipelineF)
		if !ok {
			break
		}
		if m, ok := cur.(workflow.Match); ok && !workflow.Pipelineable(m.Selector) {
			break
		}
		src, ok := workflow.Src(cur)
		if !ok {
			break
		}
		stages = append(stages, pf.WithChildren(nil))
		cur = src
	}
	for i, j := 0, len(stages)-1; i < j; i, j = i+1, j-1 {
		stages[i], stages[j] = stages[j], stages[i]
	}
	base, source, err := Crush(cur)
	if err != nil {
		return workflow.DocVar{}, nil, errors.Wrapf(err, "crushing pipeline source of %T", op)
	}
	if len(stages) == 0 {
		return base, source, nil
	}
	return base, PipelineTask{Source: source, Stages: stages}, nil
}

func crushWhereMatch(m workflow.Match) (workflow.DocVar, WorkflowTask, error) {
	base, srcTask, err := Crush(m.Src)
	if err != nil {
		return workflow.DocVar{}, nil, errors.Wrap(err, "crushing Match(Where) source")
	}
	if mrt, ok := srcTask.(MapReduceTask); ok && mrt.Spec.Selection == nil &&
		mrt.Spec.Reduce == nil && mrt.Spec.Finalizer == nil {
		mrt.Spec.Selection = m.Selector
		return base, mrt, nil
	}
	reduce := identityReduceJS()
	return base, MapReduceTask{
		Source: srcTask,
		Spec:   MapReduce{Map: identityMapJS(), Reduce: &reduce, Selection: m.Selector},
	}, nil
}

func identityMapJS() workflow.JSFunc {
	return workflow.JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value]];"}
}

func identityReduceJS() workflow.JSFunc {
	return workflow.JSFunc{Params: []string{"key", "values"}, Body: "return values[0];"}
}

// mapReduceParts extracts the pieces common to every MapReduceF node.
func mapReduceParts(op workflow.Op) (fn workflow.JSFunc, scope workflow.Scope, src workflow.Op, isReduce bool) {
	switch t := op.(type) {
	case workflow.MapOp:
		return t.Fn, t.Scope, t.Src, false
	case workflow.FlatMapOp:
		return t.Fn, t.Scope, t.Src, false
	case workflow.ReduceOp:
		return t.Fn, t.Scope, t.Src, true
	default:
		panic(fmt.Sprintf("task: mapReduceParts: unreachable for %T", op))
	}
}

// crushMapReduce handles every MapReduceF node: Map/FlatMap (isReduce
// false) or Reduce (isReduce true). If the already-crushed source is
// itself an unfinished MapReduceTask (no reduce/finalizer yet) with a
// compatible scope, this composes into it instead of nesting a new
// job; otherwise it starts a fresh MapReduceTask, inlining a trailing
// Match/Sort/Limit-only pipeline into selection/inputSort/limit.
func crushMapReduce(op workflow.Op) (workflow.DocVar, WorkflowTask, error) {
	fn, scope, src, isReduce := mapReduceParts(op)
	base, srcTask, err := Crush(src)
	if err != nil {
		return workflow.DocVar{}, nil, errors.Wrapf(err, "crushing %T source", op)
	}

	if mrt, ok := srcTask.(MapReduceTask); ok && mrt.Spec.Finalizer == nil && mrt.Spec.Reduce == nil {
		if merged, ok := mrt.Spec.Scope.Merge(scope); ok {
			if isReduce {
				mrt.Spec.Reduce = &fn
			} else {
				mrt.Spec.Map = composeMapFns(mrt.Spec.Map, fn)
			}
			mrt.Spec.Scope = merged
			return base, mrt, nil
		}
	}

	inlinedSrc, sel, sortKeys, limit := inlineShortPipeline(srcTask)
	spec := MapReduce{Scope: scope, Selection: sel, InputSort: sortKeys, Limit: limit}
	if isReduce {
		spec.Map = identityMapJS()
		spec.Reduce = &fn
	} else {
		spec.Map = fn
	}
	return base, MapReduceTask{Source: inlinedSrc, Spec: spec}, nil
}

// composeMapFns builds the abstract map function equivalent to running
// a then b over each emitted pair in turn.
func composeMapFns(a, b workflow.JSFunc) workflow.JSFunc {
	body := fmt.Sprintf(
		"var __out = []; (%s)(key, value).forEach(function(p) { (%s)(p[0], p[1]).forEach(function(q) { __out.push(q); }); }); return __out;",
		a.Render(), b.Render(),
	)
	return workflow.JSFunc{Params: []string{"key", "value"}, Body: body}
}

// inlineShortPipeline unwraps a PipelineTask made up solely of
// Match/Sort/Limit stages into the (source, selection, sort, limit)
// a map-reduce job's own options can express directly, avoiding a
// separate aggregation request just to filter/sort/limit its input.
// Any other stage shape is left untouched.
func inlineShortPipeline(t WorkflowTask) (WorkflowTask, workflow.Selector, []workflow.SortKey, *int64) {
	pt, ok := t.(PipelineTask)
	if !ok {
		return t, nil, nil, nil
	}
	var sel workflow.Selector
	var sortKeys []workflow.SortKey
	var limit *int64
	for _, stage := range pt.Stages {
		switch s := stage.(type) {
		case workflow.Match:
			if sel == nil {
				sel = s.Selector
			} else {
				sel = workflow.AndSelectors(sel, s.Selector)
			}
		case workflow.Sort:
			sortKeys = s.Keys
		case workflow.Limit:
			c := s.Count
			limit = &c
		default:
			return t, nil, nil, nil
		}
	}
	return pt.Source, sel, sortKeys, limit
}

func crushFoldLeft(f workflow.FoldLeft) (workflow.DocVar, WorkflowTask, error) {
	headBase, headTask, err := Crush(f.Head)
	if err != nil {
		return workflow.DocVar{}, nil, errors.Wrap(err, "crushing FoldLeft head")
	}
	tail := make([]MapReduceTask, len(f.Tail))
	var errs error
	for i, entry := range f.Tail {
		_, t, err := Crush(entry)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "crushing FoldLeft tail entry %d", i))
			continue
		}
		mrt, ok := t.(MapReduceTask)
		if !ok {
			errs = multierror.Append(errs, ErrInvalidFoldLeft.New(i, t))
			continue
		}
		mrt.Spec.Out = &Out{Collection: FoldOutputCollection, Action: ActionReduce, NonAtomic: true}
		tail[i] = mrt
	}
	if errs != nil {
		return workflow.DocVar{}, nil, errs
	}
	return headBase, FoldLeftTask{Head: headTask, Tail: tail}, nil
}

func crushJoin(j workflow.Join) (workflow.DocVar, WorkflowTask, error) {
	tasks := make([]WorkflowTask, len(j.Srcs))
	var errs error
	for i, s := range j.Srcs {
		_, t, err := Crush(s)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "crushing Join branch %d", i))
			continue
		}
		tasks[i] = t
	}
	if errs != nil {
		return workflow.DocVar{}, nil, errs
	}
	return workflow.ROOT, JoinTask{Srcs: tasks}, nil
}
