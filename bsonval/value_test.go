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
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"
)

func TestObjectIDRoundTrip(t *testing.T) {
	const hex = "507f1f77bcf86cd799439011"
	oid, err := ObjectIDFromHex(hex)
	require.NoError(t, err)

	repr := Repr(oid)
	got, err := FromRepr(repr)
	require.NoError(t, err)
	require.True(t, Equal(oid, got))
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := NewDocument(
		Field{Name: "a", Value: Int32(1)},
		Field{Name: "b", Value: Text("hi")},
		Field{Name: "c", Value: NewDocument(Field{Name: "d", Value: Bool(true)})},
	)
	got, err := FromRepr(Repr(doc))
	require.NoError(t, err)
	require.True(t, Equal(doc, got))
}

func TestArrayRoundTrip(t *testing.T) {
	arr := Array{Int32(1), Text("x"), Null{}}
	got, err := FromRepr(Repr(arr))
	require.NoError(t, err)
	require.True(t, Equal(arr, got))
}

func TestBinaryEqualityByContent(t *testing.T) {
	a := Binary{Subtype: 0, Data: []byte{1, 2, 3}}
	b := Binary{Subtype: 0, Data: []byte{1, 2, 3}}
	require.True(t, Equal(a, b))
	require.False(t, Equal(a, Binary{Subtype: 0, Data: []byte{1, 2, 4}}))
}

func TestUUIDToBinaryRoundTrip(t *testing.T) {
	u := uuid.NewV4()
	bin := UUIDToBinary(u)
	require.Equal(t, 16, len(bin.Data))

	got, err := BinaryToUUID(bin)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestJSLiterals(t *testing.T) {
	require.Equal(t, "NumberInt(3)", Int32(3).JS())
	require.Equal(t, "NumberLong(3)", Int64(3).JS())
	require.Equal(t, "MinKey", MinKey{}.JS())
	require.Equal(t, "MaxKey", MaxKey{}.JS())
	require.Equal(t, "undefined", NA{}.JS())
	require.Equal(t, "Timestamp(1, 2)", Timestamp{Seconds: 1, Ordinal: 2}.JS())
}

func TestFromAnyNumericWidening(t *testing.T) {
	v, err := FromAny(int8(3))
	require.NoError(t, err)
	require.Equal(t, Int64(3), v)

	v, err = FromAny("42")
	require.NoError(t, err)
	require.Equal(t, Text("42"), v)

	v, err = FromAny(float32(1.5))
	require.NoError(t, err)
	require.Equal(t, Double(1.5), v)
}

func TestFromAnyMapOrdersFieldsByKey(t *testing.T) {
	v, err := FromAny(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	doc, ok := v.(Document)
	require.True(t, ok)
	fields := doc.Fields()
	require.Equal(t, "a", fields[0].Name)
	require.Equal(t, "b", fields[1].Name)
}

func TestFromAnyRejectsUnsupportedType(t *testing.T) {
	_, err := FromAny(make(chan int))
	require.Error(t, err)
}

func TestJavaScriptScopeJSDropsScope(t *testing.T) {
	s := JavaScriptScope{
		Code:  JavaScript("function() { return x; }"),
		Scope: NewDocument(Field{Name: "x", Value: Int32(1)}),
	}
	require.Equal(t, "function() { return x; }", s.JS())
}
