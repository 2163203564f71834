/*
 * Copyright 2024 National Library of Norway.
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

package countingreader

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nlnwa/warcio/pkg/diagnostics"
)

// DefaultReadAheadSize is the size of the read-ahead region used by NewPushback.
const DefaultReadAheadSize = 16 * 1024

const maxConsecutiveEmptyReads = 100

var errNegativeRead = errors.New("countingreader: source returned negative count from Read")

// ErrCapacityExceeded is returned when more bytes are pushed back or peeked than the reader can hold.
var ErrCapacityExceeded = diagnostics.ErrCapacityExceeded

// PushbackReader is a buffered reader which counts consumed bytes and allows a bounded
// number of bytes to be pushed back.
//
// The buffer is split in two regions. The first PushbackSize bytes are reserved for
// pushed back data, the rest holds data read ahead from the source. The source is only
// read when the read-ahead region is exhausted.
//
// Two counters are maintained. Consumed is the total number of bytes handed out minus
// the bytes pushed back. Counter moves by the same amount, but can be reset with
// SetCounter to measure offsets relative to some position, like the start of a record.
//
// PushbackReader implements io.ByteReader, so decompressors reading from it never
// read beyond the end of their compressed stream.
type PushbackReader struct {
	src      io.Reader
	buf      []byte
	size     int   // pushback capacity
	pos      int   // next byte to hand out
	end      int   // end of valid data in buf
	err      error // sticky error from src
	consumed int64
	counter  int64
}

// NewPushback returns a PushbackReader reading from r which can push back up to size bytes.
func NewPushback(r io.Reader, size int) (*PushbackReader, error) {
	return NewPushbackSize(r, size, DefaultReadAheadSize)
}

// NewPushbackSize is like NewPushback, but with a read-ahead region of readAhead bytes.
func NewPushbackSize(r io.Reader, size, readAhead int) (*PushbackReader, error) {
	if r == nil {
		return nil, diagnostics.Usagef("pushback reader needs a source")
	}
	if size <= 0 {
		return nil, diagnostics.Usagef("pushback size must be positive, was %d", size)
	}
	if readAhead <= 0 {
		return nil, diagnostics.Usagef("read-ahead size must be positive, was %d", readAhead)
	}
	return &PushbackReader{
		src:  r,
		buf:  make([]byte, size+readAhead),
		size: size,
		pos:  size,
		end:  size,
	}, nil
}

// fill reads a new chunk into the read-ahead region. The caller must ensure that all buffered data is consumed.
func (r *PushbackReader) fill() {
	r.pos = r.size
	r.end = r.size
	for i := maxConsecutiveEmptyReads; i > 0; i-- {
		n, err := r.src.Read(r.buf[r.size:])
		if n < 0 {
			panic(errNegativeRead)
		}
		r.end += n
		if err != nil {
			r.err = err
			return
		}
		if n > 0 {
			return
		}
	}
	r.err = io.ErrNoProgress
}

func (r *PushbackReader) count(n int) {
	r.consumed += int64(n)
	r.counter += int64(n)
}

func (r *PushbackReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= r.end {
		if r.err != nil {
			return 0, r.err
		}
		if len(p) >= len(r.buf)-r.size {
			// Large read with nothing buffered. Read directly into p.
			n, err := r.src.Read(p)
			if n < 0 {
				panic(errNegativeRead)
			}
			r.count(n)
			if err != nil {
				r.err = err
				if n == 0 {
					return 0, err
				}
			}
			return n, nil
		}
		r.fill()
		if r.pos >= r.end {
			return 0, r.err
		}
	}
	n := copy(p, r.buf[r.pos:r.end])
	r.pos += n
	r.count(n)
	return n, nil
}

// ReadByte reads a single byte.
func (r *PushbackReader) ReadByte() (byte, error) {
	if r.pos >= r.end {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
		if r.pos >= r.end {
			return 0, r.err
		}
	}
	c := r.buf[r.pos]
	r.pos++
	r.count(1)
	return c, nil
}

// Unread pushes p back so that the next read returns the bytes of p in order.
//
// ErrCapacityExceeded is returned if p is larger than the pushback size, larger than the
// room in front of the unread data, or larger than the number of bytes consumed so far.
func (r *PushbackReader) Unread(p []byte) error {
	n := len(p)
	if n == 0 {
		return nil
	}
	if n > r.size || n > r.pos || int64(n) > r.consumed {
		return fmt.Errorf("%w: cannot push back %d bytes (size: %d, room: %d, consumed: %d)",
			ErrCapacityExceeded, n, r.size, r.pos, r.consumed)
	}
	r.pos -= n
	copy(r.buf[r.pos:], p)
	r.count(-n)
	return nil
}

// Skip discards up to n bytes and returns the number of bytes actually skipped.
// Reaching the end of the source is not an error.
func (r *PushbackReader) Skip(n int64) (int64, error) {
	var skipped int64
	for skipped < n {
		if r.pos >= r.end {
			if r.err != nil {
				break
			}
			r.fill()
			continue
		}
		k := int64(r.end - r.pos)
		if k > n-skipped {
			k = n - skipped
		}
		r.pos += int(k)
		r.count(int(k))
		skipped += k
	}
	if skipped < n && r.err != nil && r.err != io.EOF {
		return skipped, r.err
	}
	return skipped, nil
}

// ReadRawLine reads until and including the first '\n'.
// If the source ends before a '\n', the data read so far is returned together with the error (often io.EOF).
func (r *PushbackReader) ReadRawLine() ([]byte, error) {
	var line []byte
	for {
		if r.pos >= r.end {
			if r.err == nil {
				r.fill()
			}
			if r.pos >= r.end {
				return line, r.err
			}
		}
		if i := bytes.IndexByte(r.buf[r.pos:r.end], '\n'); i >= 0 {
			line = append(line, r.buf[r.pos:r.pos+i+1]...)
			r.pos += i + 1
			r.count(i + 1)
			return line, nil
		}
		line = append(line, r.buf[r.pos:r.end]...)
		r.count(r.end - r.pos)
		r.pos = r.end
	}
}

// ReadLine reads a line and strips the trailing line terminator.
// A final line without terminator is returned without error. io.EOF is only returned
// when the source is exhausted before any byte is read.
func (r *PushbackReader) ReadLine() (string, error) {
	line, err := r.ReadRawLine()
	if len(line) == 0 {
		return "", err
	}
	if err == io.EOF {
		err = nil
	}
	return string(bytes.TrimRight(line, "\r\n")), err
}

// ReadFully reads exactly len(p) bytes or nothing at all.
//
// If the source ends before p is filled, every byte read is pushed back and 0 is returned
// with io.EOF if no byte was available, or io.ErrUnexpectedEOF otherwise.
// len(p) must not exceed the pushback size.
func (r *PushbackReader) ReadFully(p []byte) (int, error) {
	if len(p) > r.size {
		return 0, fmt.Errorf("%w: cannot read fully %d bytes with pushback size %d", ErrCapacityExceeded, len(p), r.size)
	}
	n, err := io.ReadFull(r, p)
	if err == nil {
		return n, nil
	}
	if n > 0 {
		if uerr := r.Unread(p[:n]); uerr != nil {
			return 0, uerr
		}
	}
	return 0, err
}

// Peek fills p with upcoming bytes without consuming them.
// It returns the number of bytes available, with io.EOF if that is less than len(p).
// len(p) must not exceed the pushback size.
func (r *PushbackReader) Peek(p []byte) (int, error) {
	if len(p) > r.size {
		return 0, fmt.Errorf("%w: cannot peek %d bytes with pushback size %d", ErrCapacityExceeded, len(p), r.size)
	}
	n, err := io.ReadFull(r, p)
	if n > 0 {
		if uerr := r.Unread(p[:n]); uerr != nil {
			return 0, uerr
		}
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Consumed gets the number of bytes consumed from this reader.
func (r *PushbackReader) Consumed() int64 {
	return r.consumed
}

// Counter gets the resettable byte counter.
func (r *PushbackReader) Counter() int64 {
	return r.counter
}

// SetCounter sets the resettable byte counter.
func (r *PushbackReader) SetCounter(n int64) {
	r.counter = n
}

// PushbackSize gets the maximum number of bytes that can be pushed back in one call.
func (r *PushbackReader) PushbackSize() int {
	return r.size
}

// Buffered returns the number of bytes that can be read without reading from the source.
func (r *PushbackReader) Buffered() int {
	return r.end - r.pos
}
