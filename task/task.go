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

// Package task is the executable task tree a workflow crushes down to,
// and its BSON rendering: the driver-facing output of the compiler.
package task

import (
	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/workflow"
)

// WorkflowTask is a node of the crushed task tree.
type WorkflowTask interface {
	isTask()
}

// PureTask always yields exactly one document.
type PureTask struct {
	Value bsonval.Value
}

func (PureTask) isTask() {}

// ReadTask streams Collection's documents.
type ReadTask struct {
	Collection string
}

func (ReadTask) isTask() {}

// PipelineTask runs Stages, in order, as a single aggregation request
// against Source. Each entry of Stages is a pipeline-stage Op with its
// own Src left unset (cleared during crush) — only its own fields
// matter; render.RenderStage turns each into its one-key BSON body.
type PipelineTask struct {
	Source WorkflowTask
	Stages []workflow.Op
}

func (PipelineTask) isTask() {}

// OutAction is the action a map-reduce's named output collection takes
// when it already has data in it.
type OutAction int

const (
	ActionReduce OutAction = iota
	ActionMerge
	ActionReplace
)

// Out describes a map-reduce job's destination collection.
type Out struct {
	Collection string
	Action     OutAction
	NonAtomic  bool
}

// MapReduce is a map/reduce job specification. Map is kept in its
// abstract form — a `function(key, value)` returning an array of
// `[key, value]` pairs — through crush; render.RenderMapReduce compiles
// it to the native `emit`-calling map function the server expects.
type MapReduce struct {
	Map       workflow.JSFunc
	Reduce    *workflow.JSFunc
	Finalizer *workflow.JSFunc
	Selection workflow.Selector
	InputSort []workflow.SortKey
	Limit     *int64
	Scope     workflow.Scope
	Out       *Out
}

// MapReduceTask runs a MapReduce job over Source.
type MapReduceTask struct {
	Source WorkflowTask
	Spec   MapReduce
}

func (MapReduceTask) isTask() {}

// FoldLeftTask runs Head, then feeds its output into each Tail entry in
// turn; every Tail entry is itself a map-reduce job writing into a
// shared accumulating output collection (see crush.FoldOutputCollection).
type FoldLeftTask struct {
	Head WorkflowTask
	Tail []MapReduceTask
}

func (FoldLeftTask) isTask() {}

// JoinTask runs every entry of Srcs; combining their results is left to
// the driver.
type JoinTask struct {
	Srcs []WorkflowTask
}

func (JoinTask) isTask() {}
