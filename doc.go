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

// Package mongoworkflow compiles a logical query plan into an executable
// task tree of document-database primitives (aggregation pipeline stages
// and map/reduce jobs).
//
// The pipeline is: a caller builds a workflow.Op tree through the smart
// constructors in package workflow (which coalesce algebraically on every
// call), merges branches that feed a shared consumer with workflow.Merge,
// finalizes the result with workflow.Finalize, and lowers it to a
// task.WorkflowTask with task.Crush. Compile ties the last two steps
// together for the common case.
package mongoworkflow
