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

import errors "gopkg.in/src-d/go-errors.v1"

// Structural-impossibility error kinds: a caller that hits one handed
// crush a tree that violated an invariant finalize was supposed to
// establish (a SimpleMap that was never lowered, a FoldLeft tail entry
// that isn't a map-reduce job, a node with no known crush rule).
var (
	ErrUnlowered       = errors.NewKind("%T reached crush unlowered: finalize must run first")
	ErrInvalidFoldLeft = errors.NewKind("FoldLeft tail entry %d crushed to %T, not a map-reduce task: finalize must run before crush")
	ErrCannotCrush     = errors.NewKind("no crush rule for node of type %T")
	ErrCannotRender    = errors.NewKind("no render rule for node of type %T")
)
