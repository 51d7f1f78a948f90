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

	"github.com/pkg/errors"

	"github.com/slamdata/mongoworkflow/bsonval"
	"github.com/slamdata/mongoworkflow/workflow"
)

// RenderStage serializes a single pipeline-stage Op (its own Src is
// ignored — PipelineTask.Stages entries already have it cleared) to
// the one-key document `$op: body` the aggregation pipeline expects.
// An unrecognized stage type is a structural impossibility — every
// stage Crush ever puts in a PipelineTask.Stages is one RenderStage
// knows — so it is reported as ErrCannotRender, not a panic.
func RenderStage(op workflow.Op) (bsonval.Document, error) {
	switch t := op.(type) {
	case workflow.Match:
		return stage("$match", workflow.SelectorBSON(t.Selector)), nil
	case workflow.Sort:
		return stage("$sort", sortDoc(t.Keys)), nil
	case workflow.Limit:
		return stage("$limit", bsonval.Int64(t.Count)), nil
	case workflow.Skip:
		return stage("$skip", bsonval.Int64(t.Count)), nil
	case workflow.Out:
		return stage("$out", bsonval.Text(t.Collection)), nil
	case workflow.Project:
		return stage("$project", projectBody(t)), nil
	case workflow.Redact:
		return stage("$redact", t.Expr), nil
	case workflow.Unwind:
		return stage("$unwind", bsonval.Text(t.Field.FieldRef())), nil
	case workflow.Group:
		return stage("$group", groupBody(t)), nil
	case workflow.GeoNear:
		return stage("$geoNear", geoNearBody(t)), nil
	default:
		return nil, ErrCannotRender.New(op)
	}
}

func stage(name string, body bsonval.Value) bsonval.Document {
	return bsonval.NewDocument(bsonval.Field{Name: name, Value: body})
}

// RenderPipeline serializes every stage of a PipelineTask, in order.
func RenderPipeline(stages []workflow.Op) (bsonval.Array, error) {
	arr := make(bsonval.Array, len(stages))
	for i, s := range stages {
		doc, err := RenderStage(s)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering stage %d", i)
		}
		arr[i] = doc
	}
	return arr, nil
}

func projectBody(p workflow.Project) bsonval.Document {
	fields := p.Shape.ToBSON().Fields()
	if p.Id == workflow.ExcludeId {
		fields = append(fields, bsonval.Field{Name: workflow.IdLabel, Value: bsonval.Bool(false)})
	}
	return bsonval.NewDocument(fields...)
}

func groupBody(g workflow.Group) bsonval.Document {
	fields := []bsonval.Field{{Name: workflow.IdLabel, Value: g.By}}
	fields = append(fields, g.Grouped.ToBSON().Fields()...)
	return bsonval.NewDocument(fields...)
}

func sortDoc(keys []workflow.SortKey) bsonval.Document {
	fields := make([]bsonval.Field, len(keys))
	for i, k := range keys {
		dir := bsonval.Int32(1)
		if !k.Ascending {
			dir = bsonval.Int32(-1)
		}
		fields[i] = bsonval.Field{Name: k.Field.String(), Value: dir}
	}
	return bsonval.NewDocument(fields...)
}

// geoNearBody serializes every present optional field in the fixed
// order a $geoNear stage requires: near, distanceField, limit,
// maxDistance, query, spherical, distanceMultiplier, includeLocs,
// uniqueDocs.
func geoNearBody(g workflow.GeoNear) bsonval.Document {
	fields := []bsonval.Field{
		{Name: "near", Value: bsonval.Array{bsonval.Double(g.Near[0]), bsonval.Double(g.Near[1])}},
		{Name: "distanceField", Value: bsonval.Text(g.DistanceField.String())},
	}
	if g.Limit != nil {
		fields = append(fields, bsonval.Field{Name: "limit", Value: bsonval.Int64(*g.Limit)})
	}
	if g.MaxDistance != nil {
		fields = append(fields, bsonval.Field{Name: "maxDistance", Value: bsonval.Double(*g.MaxDistance)})
	}
	if g.Query != nil {
		fields = append(fields, bsonval.Field{Name: "query", Value: workflow.SelectorBSON(g.Query)})
	}
	fields = append(fields, bsonval.Field{Name: "spherical", Value: bsonval.Bool(g.Spherical)})
	if g.DistanceMultiplier != nil {
		fields = append(fields, bsonval.Field{Name: "distanceMultiplier", Value: bsonval.Double(*g.DistanceMultiplier)})
	}
	if g.IncludeLocs != nil {
		fields = append(fields, bsonval.Field{Name: "includeLocs", Value: bsonval.Text(g.IncludeLocs.String())})
	}
	fields = append(fields, bsonval.Field{Name: "uniqueDocs", Value: bsonval.Bool(g.UniqueDocs)})
	return bsonval.NewDocument(fields...)
}

// RenderMapReduce serializes a MapReduce spec to the document shape
// the server's mapReduce command expects. Map is compiled from its
// abstract `(key, value) -> [[key, value], ...]` form to the native,
// no-argument, emit-calling function form the command requires; a
// document's own _id is used as the grouping key for the initial map.
func RenderMapReduce(spec MapReduce) bsonval.Document {
	fields := []bsonval.Field{
		{Name: "map", Value: bsonval.JavaScript(renderNativeMap(spec.Map).Render())},
	}
	if spec.Reduce != nil {
		fields = append(fields, bsonval.Field{Name: "reduce", Value: bsonval.JavaScript(spec.Reduce.Render())})
	}
	if spec.Finalizer != nil {
		fields = append(fields, bsonval.Field{Name: "finalize", Value: bsonval.JavaScript(spec.Finalizer.Render())})
	}
	if spec.Selection != nil {
		fields = append(fields, bsonval.Field{Name: "query", Value: workflow.SelectorBSON(spec.Selection)})
	}
	if len(spec.InputSort) > 0 {
		fields = append(fields, bsonval.Field{Name: "sort", Value: sortDoc(spec.InputSort)})
	}
	if spec.Limit != nil {
		fields = append(fields, bsonval.Field{Name: "limit", Value: bsonval.Int64(*spec.Limit)})
	}
	if spec.Scope.Len() > 0 {
		fields = append(fields, bsonval.Field{Name: "scope", Value: spec.Scope.ToBSON()})
	}
	if spec.Out != nil {
		fields = append(fields, bsonval.Field{Name: "out", Value: outBSON(*spec.Out)})
	}
	return bsonval.NewDocument(fields...)
}

func renderNativeMap(fn workflow.JSFunc) workflow.JSFunc {
	body := fmt.Sprintf(
		"(%s)(this[%q], this).forEach(function(p) { emit(p[0], p[1]); });",
		fn.Render(), workflow.IdLabel,
	)
	return workflow.JSFunc{Body: body}
}

func outBSON(o Out) bsonval.Value {
	actionName := "reduce"
	switch o.Action {
	case ActionMerge:
		actionName = "merge"
	case ActionReplace:
		actionName = "replace"
	}
	fields := []bsonval.Field{{Name: actionName, Value: bsonval.Text(o.Collection)}}
	if o.NonAtomic {
		fields = append(fields, bsonval.Field{Name: "nonAtomic", Value: bsonval.Bool(true)})
	}
	return bsonval.NewDocument(fields...)
}
