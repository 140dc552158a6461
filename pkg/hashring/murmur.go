// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package hashring

// hashSeed, hashMultiplier and hashShift match the bespoke 64-bit recurrence
// documented in the glossary. This is not the standard MurmurHash2/3
// algorithm; it must be reproduced bit-for-bit to interoperate with the
// reference implementation, so it is hand-written rather than delegated to
// an ecosystem hashing library (none implements this exact variant).
const (
	hashSeed       uint64 = 0x1234ABCD
	hashMultiplier uint64 = 0xc6a4a7935bd1e995
	hashShift      uint   = 47
)

// hash64 computes the bespoke MurmurHash-style digest of key: for each byte
// b, h = (h + (b & 0xFF)) * m; h ^= h >> r; then three finalization rounds
// of h *= m; h ^= h >> r.
func hash64(key string) uint64 {
	h := hashSeed
	for i := 0; i < len(key); i++ {
		h = (h + uint64(key[i]&0xFF)) * hashMultiplier
		h ^= h >> hashShift
	}
	for i := 0; i < 3; i++ {
		h *= hashMultiplier
		h ^= h >> hashShift
	}
	return h
}
