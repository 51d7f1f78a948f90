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

package fieldpath

import "strconv"

// TmpNamePrefix is the reserved prefix for every synthesized temporary
// field name. Callers must never use it for user-visible fields.
const TmpNamePrefix = "__sd_tmp_"

// NameGen is the single stateful primitive in the compiler: a counter
// threaded explicitly (by mutable reference) through merge so that
// fresh-name choices are deterministic given a starting counter and a
// collision set. It is never a package-level/global generator.
type NameGen struct {
	counter uint64
}

// NewNameGen returns a generator starting at 0.
func NewNameGen() *NameGen { return &NameGen{} }

// FreshName returns the next name in __sd_tmp_0, __sd_tmp_1, ... not
// present in collisions, advancing the counter past every name it
// skipped as well as the one it returns.
func (g *NameGen) FreshName(collisions map[string]bool) string {
	for {
		name := TmpNamePrefix + strconv.FormatUint(g.counter, 10)
		g.counter++
		if collisions == nil || !collisions[name] {
			return name
		}
	}
}

// FreshIndex returns the next value in 0, 1, 2, ... not present in
// collisions (keyed by its decimal string), with the same semantics as
// FreshName.
func (g *NameGen) FreshIndex(collisions map[string]bool) int {
	for {
		idx := g.counter
		g.counter++
		if collisions == nil || !collisions[strconv.FormatUint(idx, 10)] {
			return int(idx)
		}
	}
}

// Counter reports the generator's current position, mostly useful in
// tests that pin behavior against a specific starting state.
func (g *NameGen) Counter() uint64 { return g.counter }

// GenUniqNames returns n distinct fresh names, none of which is in
// collisions, using a NameGen seeded at 0. It is deterministic given n
// and collisions.
func GenUniqNames(n int, collisions map[string]bool) []string {
	g := NewNameGen()
	out := make([]string, n)
	for i := range out {
		out[i] = g.FreshName(collisions)
	}
	return out
}
