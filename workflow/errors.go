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

import errors "gopkg.in/src-d/go-errors.v1"

// Structural-impossibility error kinds: a caller that hits one violated
// an invariant (e.g. constructed a FoldLeft with no tail). The only
// other errors this package returns come from NewScopeFromGo and
// NewMapFromGo, for a Go value FromAny cannot convert. Declinable rewrites (a scope
// conflict, a non-mergeable shape) never surface as an error; they
// just leave the original tree in place.
var (
	ErrEmptyFoldLeftTail = errors.NewKind("FoldLeft requires at least one tail entry")
	ErrEmptyJoin         = errors.NewKind("Join requires at least one source")
)
