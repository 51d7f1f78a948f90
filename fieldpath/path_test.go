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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathString(t *testing.T) {
	p := FromLeaves(Name("a"), Name("b"), Index(3))
	require.Equal(t, "a.b.3", p.String())
	require.Equal(t, "$a.b.3", p.FieldRef())
	require.Equal(t, "$$a.b.3", p.VarRef())
}

func TestPathConcatFlatten(t *testing.T) {
	a := NamePath("a")
	b := FromLeaves(Name("b"), Index(2))
	got := a.Concat(b).Flatten()
	require.Equal(t, append(a.Flatten(), b.Flatten()...), got)
}

func TestPathParent(t *testing.T) {
	p := FromLeaves(Name("a"), Name("b"))
	parent, ok := p.Parent()
	require.True(t, ok)
	require.Equal(t, "a", parent.String())

	_, ok = NamePath("a").Parent()
	require.False(t, ok)
}

func TestPathStartsWith(t *testing.T) {
	p := FromLeaves(Name("a"), Name("b"), Name("c"))
	require.True(t, p.StartsWith(FromLeaves(Name("a"), Name("b"))))
	require.False(t, p.StartsWith(FromLeaves(Name("a"), Name("x"))))
}

func TestLeafNameIndexNotEqual(t *testing.T) {
	require.False(t, Name("3").Equal(Index(3)))
	require.True(t, Index(3).ToName().Equal(Name("3")))
}

func TestToJSExpr(t *testing.T) {
	p := FromLeaves(Name("a"), Name("b"), Index(3))
	require.Equal(t, "doc.a.b[3]", p.ToJSExpr("doc"))
}

func TestParseRoundTrip(t *testing.T) {
	p := FromLeaves(Name("a"), Index(3), Name("c"))
	got, err := Parse(p.String())
	require.NoError(t, err)
	require.True(t, got.Equal(p))
}

func TestGenUniqNamesDeterministic(t *testing.T) {
	names := GenUniqNames(3, nil)
	require.Equal(t, []string{"__sd_tmp_0", "__sd_tmp_1", "__sd_tmp_2"}, names)

	collide := map[string]bool{"__sd_tmp_1": true}
	names2 := GenUniqNames(2, collide)
	require.Equal(t, []string{"__sd_tmp_0", "__sd_tmp_2"}, names2)
}

func TestNameGenThreaded(t *testing.T) {
	g := NewNameGen()
	require.Equal(t, "__sd_tmp_0", g.FreshName(nil))
	require.Equal(t, "__sd_tmp_1", g.FreshName(nil))
	require.Equal(t, uint64(2), g.Counter())
}
