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

// Package fieldpath is the field-path algebra: ordered, non-empty
// sequences of name/index leaves, with concatenation, prefix tests and
// a deterministic fresh-name generator.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Leaf is either a Name or an Index. Name("3") and Index(3) are never
// equal except through the explicit, one-directional ToName coercion:
// a bare Path equality check treats indices as comparable only to
// indices and names only to names.
type Leaf struct {
	name    string
	index   int
	isIndex bool
}

func Name(s string) Leaf { return Leaf{name: s} }
func Index(i int) Leaf   { return Leaf{index: i, isIndex: true} }

func (l Leaf) IsIndex() bool { return l.isIndex }

func (l Leaf) NameValue() string {
	if l.isIndex {
		panic("fieldpath: NameValue called on an Index leaf")
	}
	return l.name
}

func (l Leaf) IndexValue() int {
	if !l.isIndex {
		panic("fieldpath: IndexValue called on a Name leaf")
	}
	return l.index
}

// ToName coerces an Index leaf to the Name leaf with its decimal
// rendering; a Name leaf is returned unchanged. This is the only
// direction in which Name("3") and Index(3) are considered related.
func (l Leaf) ToName() Leaf {
	if l.isIndex {
		return Name(strconv.Itoa(l.index))
	}
	return l
}

func (l Leaf) Equal(o Leaf) bool {
	if l.isIndex != o.isIndex {
		return false
	}
	if l.isIndex {
		return l.index == o.index
	}
	return l.name == o.name
}

func (l Leaf) String() string {
	if l.isIndex {
		return strconv.Itoa(l.index)
	}
	return l.name
}

// Path is a non-empty sequence of leaves. The zero value is invalid;
// construct one with FromLeaf/FromLeaves/NamePath.
type Path struct {
	leaves []Leaf
}

// FromLeaf builds a single-leaf Path.
func FromLeaf(l Leaf) Path { return Path{leaves: []Leaf{l}} }

// FromLeaves builds a Path from a non-empty slice, copying it.
func FromLeaves(leaves ...Leaf) Path {
	if len(leaves) == 0 {
		panic("fieldpath: Path must have at least one leaf")
	}
	cp := make([]Leaf, len(leaves))
	copy(cp, leaves)
	return Path{leaves: cp}
}

// NamePath is shorthand for FromLeaf(Name(s)).
func NamePath(s string) Path { return FromLeaf(Name(s)) }

func (p Path) Leaves() []Leaf {
	out := make([]Leaf, len(p.leaves))
	copy(out, p.leaves)
	return out
}

func (p Path) Flatten() []Leaf { return p.Leaves() }

func (p Path) Head() Leaf { return p.leaves[0] }

func (p Path) Last() Leaf { return p.leaves[len(p.leaves)-1] }

// Concat appends another path's leaves (the `\` operator).
func (p Path) Concat(q Path) Path {
	return Path{leaves: append(append([]Leaf{}, p.leaves...), q.leaves...)}
}

// Extend appends bare leaves (the `\\` operator).
func (p Path) Extend(leaves ...Leaf) Path {
	return Path{leaves: append(append([]Leaf{}, p.leaves...), leaves...)}
}

// Parent drops the last leaf. ok is false iff p has only one leaf (a
// path has no parent path, since paths are non-empty).
func (p Path) Parent() (Path, bool) {
	if len(p.leaves) == 1 {
		return Path{}, false
	}
	return Path{leaves: p.leaves[:len(p.leaves)-1]}, true
}

// StartsWith reports whether prefix's leaves are a leading subsequence
// of p's leaves.
func (p Path) StartsWith(prefix Path) bool {
	if len(prefix.leaves) > len(p.leaves) {
		return false
	}
	for i, l := range prefix.leaves {
		if !l.Equal(p.leaves[i]) {
			return false
		}
	}
	return true
}

// Equal is leaf-wise structural equality (no Name/Index coercion).
func (p Path) Equal(o Path) bool {
	if len(p.leaves) != len(o.leaves) {
		return false
	}
	for i, l := range p.leaves {
		if !l.Equal(o.leaves[i]) {
			return false
		}
	}
	return true
}

// String renders the path dot-separated; an index at any position
// renders as its decimal, same as a name would.
func (p Path) String() string {
	parts := make([]string, len(p.leaves))
	for i, l := range p.leaves {
		parts[i] = l.String()
	}
	return strings.Join(parts, ".")
}

// FieldRef renders the `$`-prefixed field reference form.
func (p Path) FieldRef() string { return "$" + p.String() }

// VarRef renders the `$$`-prefixed variable reference form.
func (p Path) VarRef() string { return "$$" + p.String() }

// Parse reconstructs a Path from its dot-separated rendering. Every
// leaf that parses as a non-negative base-10 integer becomes an Index
// leaf; everything else becomes a Name leaf. This is the inverse of
// String for paths built without deliberately numeric field names.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("fieldpath: empty path")
	}
	parts := strings.Split(s, ".")
	leaves := make([]Leaf, len(parts))
	for i, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 && strconv.Itoa(n) == part {
			leaves[i] = Index(n)
		} else {
			leaves[i] = Name(part)
		}
	}
	return Path{leaves: leaves}, nil
}

// ToJSExpr compiles the JS property-access expression that reads this
// path off of arg, e.g. Parse("a.b").ToJSExpr("doc") == "doc.a.b" and
// a path through an Index leaf renders as bracket indexing,
// e.g. "doc.a[3]".
func (p Path) ToJSExpr(arg string) string {
	var b strings.Builder
	b.WriteString(arg)
	for _, l := range p.leaves {
		if l.isIndex {
			fmt.Fprintf(&b, "[%d]", l.index)
		} else {
			b.WriteByte('.')
			b.WriteString(l.name)
		}
	}
	return b.String()
}
