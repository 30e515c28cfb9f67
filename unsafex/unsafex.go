/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package unsafex

import "unsafe"

// SliceData returns the data pointer of b, even when len(b) is zero.
// It is unsafe.SliceData for toolchains before go1.20, except that a nil b returns nil.
func SliceData(b []byte) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&b))
}

// AddrOf returns the address of the first byte of b as an integer.
// Unlike &b[0] it does not panic when len(b) is zero.
func AddrOf(b []byte) uintptr {
	return uintptr(SliceData(b))
}
