/*
 * Copyright 2020 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package countingreader contains readers that keep track of how many bytes have passed through them.
package countingreader

import (
	"io"
	"sync/atomic"
)

// Reader counts the bytes read through it and optionally stops at a limit.
// A record payload is bounded this way by its declared Content-Length.
type Reader struct {
	src   io.Reader
	n     int64
	limit int64
}

// New returns a Reader counting the bytes read from r.
func New(r io.Reader) *Reader {
	return NewLimited(r, -1)
}

// NewLimited returns a Reader counting the bytes read from r. After limit bytes
// it reports io.EOF even when r has more data. A negative limit means no limit.
func NewLimited(r io.Reader, limit int64) *Reader {
	return &Reader{src: r, limit: limit}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.limit < 0 {
		n, err := r.src.Read(p)
		atomic.AddInt64(&r.n, int64(n))
		return n, err
	}

	left := r.Remaining()
	if left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > left {
		p = p[:left]
	}
	n, err := r.src.Read(p)
	if atomic.AddInt64(&r.n, int64(n)) >= r.limit && err == nil {
		err = io.EOF
	}
	return n, err
}

// N returns the number of bytes read so far.
func (r *Reader) N() int64 {
	return atomic.LoadInt64(&r.n)
}

// Remaining returns the number of bytes left before the limit, or -1 when unlimited.
func (r *Reader) Remaining() int64 {
	if r.limit < 0 {
		return -1
	}
	return r.limit - r.N()
}

// Limit returns the limit given to NewLimited, or -1 if there is none.
func (r *Reader) Limit() int64 {
	return r.limit
}
