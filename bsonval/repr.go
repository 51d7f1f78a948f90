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
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repr converts v to its wire document representation: the native Go
// value the mongo-driver bson encoder expects. JavaScript and
// JavaScriptScope have no wire representation accepted by ordinary
// collections (they only ever appear inside map/reduce bodies) and
// convert to bson.JavaScript/bson.CodeWithScope so callers that do ship
// them (e.g. a $function body) still get a sensible encoding.
func Repr(v Value) interface{} {
	switch t := v.(type) {
	case Double:
		return float64(t)
	case Text:
		return string(t)
	case Document:
		d := bson.D{}
		for _, f := range t.fields {
			d = append(d, bson.E{Key: f.Name, Value: Repr(f.Value)})
		}
		return d
	case Array:
		a := bson.A{}
		for _, e := range t {
			a = append(a, Repr(e))
		}
		return a
	case Binary:
		return bson.Binary{Subtype: t.Subtype, Data: append([]byte(nil), t.Data...)}
	case ObjectID:
		return bson.ObjectID(t)
	case Bool:
		return bool(t)
	case Date:
		return bson.NewDateTimeFromTime(time.Time(t))
	case Null:
		return nil
	case Regex:
		return bson.Regex{Pattern: t.Pattern, Options: t.Options}
	case JavaScript:
		return bson.JavaScript(string(t))
	case Symbol:
		return bson.Symbol(string(t))
	case JavaScriptScope:
		return bson.CodeWithScope{Code: bson.JavaScript(string(t.Code)), Scope: Repr(t.Scope)}
	case Int32:
		return int32(t)
	case Timestamp:
		return bson.Timestamp{T: uint32(t.Seconds), I: uint32(t.Ordinal)}
	case Int64:
		return int64(t)
	case MinKey:
		return bson.MinKey{}
	case MaxKey:
		return bson.MaxKey{}
	case NA:
		return bson.Undefined{}
	default:
		panic(fmt.Sprintf("bsonval: Repr: unhandled value type %T", v))
	}
}

// FromRepr reconstructs a Value from a wire representation produced by
// the mongo-driver bson decoder (or by Repr itself). It is the left
// inverse of Repr; JavaScript and JavaScriptScope round-trip as well,
// the latter keeping its scope through bson.CodeWithScope.
func FromRepr(r interface{}) (Value, error) {
	switch t := r.(type) {
	case nil:
		return Null{}, nil
	case float64:
		return Double(t), nil
	case float32:
		return Double(t), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case int32:
		return Int32(t), nil
	case int:
		return Int32(t), nil
	case int64:
		return Int64(t), nil
	case time.Time:
		return Date(t), nil
	case bson.DateTime:
		return Date(t.Time()), nil
	case bson.ObjectID:
		return ObjectID(t), nil
	case bson.Binary:
		return Binary{Subtype: t.Subtype, Data: t.Data}, nil
	case bson.Regex:
		return Regex{Pattern: t.Pattern, Options: t.Options}, nil
	case bson.Symbol:
		return Symbol(t), nil
	case bson.Timestamp:
		return Timestamp{Seconds: int32(t.T), Ordinal: int32(t.I)}, nil
	case bson.MinKey:
		return MinKey{}, nil
	case bson.MaxKey:
		return MaxKey{}, nil
	case bson.Undefined:
		return NA{}, nil
	case bson.JavaScript:
		return JavaScript(t), nil
	case bson.CodeWithScope:
		scope, err := FromRepr(t.Scope)
		if err != nil {
			return nil, err
		}
		doc, ok := scope.(Document)
		if !ok {
			return nil, fmt.Errorf("bsonval: FromRepr: CodeWithScope scope did not decode to a Document")
		}
		return JavaScriptScope{Code: JavaScript(t.Code), Scope: doc}, nil
	case bson.D:
		fields := make([]Field, 0, len(t))
		for _, e := range t {
			fv, err := FromRepr(e.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: e.Key, Value: fv})
		}
		return NewDocument(fields...), nil
	case bson.M:
		return nil, fmt.Errorf("bsonval: FromRepr: bson.M has no defined field order, use bson.D")
	case bson.A:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			ev, err := FromRepr(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	case []interface{}:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			ev, err := FromRepr(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("bsonval: FromRepr: unhandled wire type %T", r)
	}
}

// FromAny builds a Value from an arbitrary, loosely-typed Go value —
// the shape a caller assembling map-reduce scope bindings or literal
// query arguments from application code actually has on hand (config
// values, JSON-decoded numbers, string-typed flags), as opposed to the
// driver's own wire types FromRepr decodes. Integer kinds are widened
// through cast's permissive conversions rather than a rigid type
// switch, so 3 and int8(3) land on the same Int64 Value; a string,
// numeric or not, stays Text. A float that carries no fractional part still
// becomes Double: narrowing it to Int32/Int64 would silently change a
// field's wire type tag based on the value rather than the caller's
// intent.
func FromAny(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case time.Time:
		return Date(t), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := cast.ToInt64E(t)
		if err != nil {
			return nil, fmt.Errorf("bsonval: FromAny: %w", err)
		}
		return Int64(n), nil
	case float32, float64:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return nil, fmt.Errorf("bsonval: FromAny: %w", err)
		}
		return Double(f), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(t))
		for _, k := range keys {
			fv, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: k, Value: fv})
		}
		return NewDocument(fields...), nil
	case []interface{}:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	default:
		s, err := cast.ToStringE(t)
		if err != nil {
			return nil, fmt.Errorf("bsonval: FromAny: unsupported type %T", v)
		}
		return Text(s), nil
	}
}
