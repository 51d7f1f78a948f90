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

package bsonval

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Field is one ordered (key, value) pair of a Document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered mapping from string to Value. Insertion order is
// significant and preserved through every transformation.
type Document struct {
	fields []Field
}

// NewDocument builds a Document from fields, in the given order.
func NewDocument(fields ...Field) Document {
	d := Document{fields: make([]Field, len(fields))}
	copy(d.fields, fields)
	return d
}

func (Document) Code() Code { return CodeDocument }

func (d Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d Document) Len() int { return len(d.fields) }

// Lookup returns the value bound to name and whether it was present.
func (d Document) Lookup(name string) (Value, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set returns a new Document with name bound to v, replacing an existing
// binding in place (preserving its position) or appending a new one.
func (d Document) Set(name string, v Value) Document {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	for i, f := range out {
		if f.Name == name {
			out[i].Value = v
			return Document{fields: out}
		}
	}
	out = append(out, Field{Name: name, Value: v})
	return Document{fields: out}
}

func (d Document) JS() string {
	parts := make([]string, len(d.fields))
	for i, f := range d.fields {
		parts[i] = fmt.Sprintf("%s: %s", quoteJSKey(f.Name), f.Value.JS())
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (Document) isValue() {}

func quoteJSKey(name string) string {
	return quoteJS(name)
}

// Array is an ordered sequence of Values.
type Array []Value

func (Array) Code() Code { return CodeArray }
func (a Array) JS() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.JS()
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}
func (Array) isValue() {}

// Binary is an immutable byte sequence. Two Binary values compare equal
// iff their content is equal, never by identity.
type Binary struct {
	Subtype byte
	Data    []byte
}

func (Binary) Code() Code { return CodeBinary }
func (b Binary) JS() string {
	return fmt.Sprintf("BinData(%d, %q)", b.Subtype, hex.EncodeToString(b.Data))
}
func (Binary) isValue() {}

// ObjectID is a 12-byte identifier. It compares by byte content.
type ObjectID [12]byte

func (ObjectID) Code() Code { return CodeObjectID }
func (o ObjectID) JS() string {
	return fmt.Sprintf("ObjectId(%q)", hex.EncodeToString(o[:]))
}
func (ObjectID) isValue() {}

// ObjectIDFromHex parses the 24-character hex form of an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var o ObjectID
	b, err := hex.DecodeString(s)
	if err != nil {
		return o, fmt.Errorf("bsonval: invalid ObjectId hex %q: %w", s, err)
	}
	if len(b) != 12 {
		return o, fmt.Errorf("bsonval: ObjectId hex %q must decode to 12 bytes, got %d", s, len(b))
	}
	copy(o[:], b)
	return o, nil
}

// Equal reports whether a and b are the same BSON value. Binary and
// ObjectID compare by byte content; Document comparison is order
// sensitive (insertion order is semantically significant).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Code() != b.Code() {
		return false
	}
	switch av := a.(type) {
	case Binary:
		bv := b.(Binary)
		return av.Subtype == bv.Subtype && bytes.Equal(av.Data, bv.Data)
	case ObjectID:
		bv := b.(ObjectID)
		return av == bv
	case Document:
		bv := b.(Document)
		if av.Len() != bv.Len() {
			return false
		}
		for i, f := range av.fields {
			g := bv.fields[i]
			if f.Name != g.Name || !Equal(f.Value, g.Value) {
				return false
			}
		}
		return true
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case JavaScriptScope:
		bv := b.(JavaScriptScope)
		return av.Code == bv.Code && Equal(av.Scope, bv.Scope)
	default:
		return a == b
	}
}
