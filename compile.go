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

package mongoworkflow

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/slamdata/mongoworkflow/task"
	"github.com/slamdata/mongoworkflow/workflow"
)

// Options configures a Compile call.
type Options struct {
	// Log receives one entry per compilation naming the workflow's
	// shape before and after finalize; nil disables this tracing.
	Log *logrus.Entry
}

// Compile finalizes op (shape normalization, dead-field pruning) and
// crushes the result into the task tree a driver executes. It does not
// merge branches: callers that are compiling more than one logical
// source sharing a consumer must call workflow.Merge themselves first.
func Compile(op workflow.Op, opts Options) (workflow.DocVar, task.WorkflowTask, error) {
	finalized := workflow.Finalize(op)
	if opts.Log != nil {
		opts.Log.WithFields(logrus.Fields{
			"before": fmt.Sprintf("%T", op),
			"after":  fmt.Sprintf("%T", finalized),
		}).Debug("mongoworkflow: compiled workflow")
	}
	return task.Crush(finalized)
}
