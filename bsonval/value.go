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

// Package bsonval is the tagged-variant BSON value model: every value
// round-trips to a wire document representation (go.mongodb.org's bson
// types) and to a mongo-shell JS expression.
package bsonval

import (
	"fmt"
	"time"
)

// Code is the BSON wire type tag, preserved verbatim from the BSON spec
// for compatibility with tools that inspect it.
type Code byte

const (
	CodeDouble           Code = 1
	CodeText             Code = 2
	CodeDocument         Code = 3
	CodeArray            Code = 4
	CodeBinary           Code = 5
	CodeObjectID         Code = 7
	CodeBool             Code = 8
	CodeDate             Code = 9
	CodeNull             Code = 10
	CodeRegex            Code = 11
	CodeJavaScript       Code = 13
	CodeSymbol           Code = 14
	CodeJavaScriptScope  Code = 15
	CodeInt32            Code = 16
	CodeTimestamp        Code = 17
	CodeInt64            Code = 18
	CodeMinKey           Code = 255
	CodeMaxKey           Code = 127
	// CodeNA has no wire tag: it is a placeholder for a value this model
	// cannot represent. It renders as the JS `undefined` literal.
	CodeNA Code = 0
)

// Value is the tagged-variant BSON value. Every concrete case below
// implements it; the zero value of any case is meaningful except where
// noted (e.g. a zero-length Document, Array or Binary is valid).
type Value interface {
	// Code returns the wire type tag of this variant.
	Code() Code
	// JS renders the mongo-shell JS expression for this value.
	JS() string
	isValue()
}

// --- scalar variants ---

type Double float64

func (Double) Code() Code    { return CodeDouble }
func (d Double) JS() string  { return fmt.Sprintf("%v", float64(d)) }
func (Double) isValue()      {}

type Text string

func (Text) Code() Code   { return CodeText }
func (t Text) JS() string { return quoteJS(string(t)) }
func (Text) isValue()     {}

type Bool bool

func (Bool) Code() Code { return CodeBool }
func (b Bool) JS() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) isValue() {}

// Date is an instant at millisecond precision.
type Date time.Time

func (Date) Code() Code { return CodeDate }
func (d Date) JS() string {
	return fmt.Sprintf("ISODate(%s)", quoteJS(time.Time(d).UTC().Format("2006-01-02T15:04:05.000Z")))
}
func (Date) isValue() {}

type Null struct{}

func (Null) Code() Code  { return CodeNull }
func (Null) JS() string  { return "null" }
func (Null) isValue()    {}

// Regex carries a pattern and its option flags (e.g. "im").
type Regex struct {
	Pattern string
	Options string
}

func (Regex) Code() Code    { return CodeRegex }
func (r Regex) JS() string  { return fmt.Sprintf("/%s/%s", r.Pattern, r.Options) }
func (Regex) isValue()      {}

// JavaScript is a bare JS expression/function body; only its textual
// shape matters here, never its parsed AST.
type JavaScript string

func (JavaScript) Code() Code  { return CodeJavaScript }
func (j JavaScript) JS() string { return string(j) }
func (JavaScript) isValue()    {}

type Symbol string

func (Symbol) Code() Code   { return CodeSymbol }
func (s Symbol) JS() string { return quoteJS(string(s)) }
func (Symbol) isValue()     {}

// JavaScriptScope pairs a JS expression with a Document of free-variable
// bindings. The JS() projection deliberately drops the Scope: round-trip
// through that pair is lossy by design (see Design Notes).
type JavaScriptScope struct {
	Code  JavaScript
	Scope Document
}

func (JavaScriptScope) Code() Code { return CodeJavaScriptScope }
func (s JavaScriptScope) JS() string { return s.Code.JS() }
func (JavaScriptScope) isValue()     {}

type Int32 int32

func (Int32) Code() Code    { return CodeInt32 }
func (i Int32) JS() string  { return fmt.Sprintf("NumberInt(%d)", int32(i)) }
func (Int32) isValue()      {}

// Timestamp is an (epoch-seconds, ordinal) pair, distinct from Date.
type Timestamp struct {
	Seconds int32
	Ordinal int32
}

func (Timestamp) Code() Code { return CodeTimestamp }
func (t Timestamp) JS() string {
	return fmt.Sprintf("Timestamp(%d, %d)", t.Seconds, t.Ordinal)
}
func (Timestamp) isValue() {}

type Int64 int64

func (Int64) Code() Code   { return CodeInt64 }
func (i Int64) JS() string { return fmt.Sprintf("NumberLong(%d)", int64(i)) }
func (Int64) isValue()     {}

type MinKey struct{}

func (MinKey) Code() Code { return CodeMinKey }
func (MinKey) JS() string { return "MinKey" }
func (MinKey) isValue()   {}

type MaxKey struct{}

func (MaxKey) Code() Code { return CodeMaxKey }
func (MaxKey) JS() string { return "MaxKey" }
func (MaxKey) isValue()   {}

// NA stands in for any value this model cannot represent. It has no wire
// type; it exists only so a partial conversion can still produce a Value.
type NA struct{}

func (NA) Code() Code { return CodeNA }
func (NA) JS() string { return "undefined" }
func (NA) isValue()   {}

func quoteJS(s string) string {
	return fmt.Sprintf("%q", s)
}
