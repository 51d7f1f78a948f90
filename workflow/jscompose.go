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

import "fmt"

// composePairLists builds the function for `outer` applied after
// `inner`, both of arity `(key, value) -> [[key, value], ...]` — the
// same list-of-pairs convention render.go's native map compiles from
// and lowerSimpleMap produces. inner's result list is flattened:
// outer runs once per pair inner emits, and its own list output is
// concatenated into the composed result. Map and FlatMap share this
// exact convention (a map's "single result" is just a one-element
// list), so one flattening composition serves both.
func composePairLists(outer, inner JSFunc) JSFunc {
	body := fmt.Sprintf(
		"var __out = []; (%s)(key, value).forEach(function(__kv) { __out = __out.concat((%s).apply(null, __kv)); }); return __out;",
		inner.Render(), outer.Render(),
	)
	return JSFunc{Params: []string{"key", "value"}, Body: body}
}

// composeMapMap is rule 10 (Map after Map).
func composeMapMap(outer, inner JSFunc) JSFunc {
	return composePairLists(outer, inner)
}

// composeFlatMapMap is rule 10 (FlatMap after Map).
func composeFlatMapMap(outer, inner JSFunc) JSFunc {
	return composePairLists(outer, inner)
}

// composeFlatMapFlatMap is rule 10 (FlatMap after FlatMap): Kleisli
// composition over the array monad.
func composeFlatMapFlatMap(outer, inner JSFunc) JSFunc {
	return composePairLists(outer, inner)
}

// composeSimpleMapExpr composes two SimpleMap expression functions:
// outer runs on the result of inner, i.e. outer >>> inner in pipeline
// order (inner's source feeds outer).
func composeSimpleMapExpr(outer, inner JSExpr) JSExpr {
	body := fmt.Sprintf(
		"(%s)((%s)(key, value))",
		wrapSingleArg(outer), inner.Render(),
	)
	return JSExpr{Params: []string{"key", "value"}, Body: body}
}

func wrapSingleArg(e JSExpr) string {
	return fmt.Sprintf("function(__v) { return (%s)(key, __v); }", e.Render())
}
