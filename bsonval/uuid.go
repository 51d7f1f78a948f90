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
	"strconv"

	uuid "github.com/satori/go.uuid"
)

// legacyUUIDSubtype is the old (subtype 3) binary subtype historically
// used for UUID values; kept here because the byte order below only
// makes sense tagged with it.
const legacyUUIDSubtype = 0x03

// UUIDToBinary converts a UUID to a 16-byte Binary value. The byte order
// is NOT the UUID's natural big-endian RFC 4122 layout: each 8-byte half
// is reversed independently (LSB-then-MSB within the half), matching the
// legacy driver encoding this model preserves for round-trip fidelity.
// See Design Notes: this oddity is documented, not "fixed".
func UUIDToBinary(u uuid.UUID) Binary {
	raw := u.Bytes()
	out := make([]byte, 16)
	reverseInto(out[0:8], raw[0:8])
	reverseInto(out[8:16], raw[8:16])
	return Binary{Subtype: legacyUUIDSubtype, Data: out}
}

// BinaryToUUID is the inverse of UUIDToBinary for a legacy-subtype
// Binary value of the expected length.
func BinaryToUUID(b Binary) (uuid.UUID, error) {
	if len(b.Data) != 16 {
		return uuid.UUID{}, errUUIDLength(len(b.Data))
	}
	raw := make([]byte, 16)
	reverseInto(raw[0:8], b.Data[0:8])
	reverseInto(raw[8:16], b.Data[8:16])
	return uuid.FromBytes(raw)
}

func reverseInto(dst, src []byte) {
	for i := range src {
		dst[i] = src[len(src)-1-i]
	}
}

type errUUIDLength int

func (e errUUIDLength) Error() string {
	return "bsonval: UUID binary must be 16 bytes, got " + strconv.Itoa(int(e))
}
