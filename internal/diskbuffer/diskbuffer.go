/*
 * Copyright 2021 National Library of Norway.
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

// Package diskbuffer implements a spool buffer which holds data in memory up to a
// configured size and overflows the rest to a temporary file.
package diskbuffer

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

const tmpFilePrefix = "tmp-diskbuffer-"

// ErrMaxSizeExceeded is returned when the maximum allowed buffer size is reached when writing
type ErrMaxSizeExceeded int64

func (e ErrMaxSizeExceeded) Error() string {
	return fmt.Sprintf("diskbuffer.Buffer: maximum size %d exceeded", e)
}

var errClosed = errors.New("diskbuffer.Buffer: buffer is closed")

// Buffer is a write once, read many buffer. Data is appended with Write or ReadFrom
// and read back from the start with Read or WriteTo.
type Buffer struct {
	opts     options
	mem      []byte
	file     *os.File
	fileSize int64
	off      int64 // read offset
	closed   bool
}

// New creates a new Buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		opts: defaultOptions(),
	}
	for _, opt := range opts {
		opt.apply(&b.opts)
	}
	if b.opts.maxTotalBytes > 0 && b.opts.maxMemBytes > b.opts.maxTotalBytes {
		b.opts.maxMemBytes = b.opts.maxTotalBytes
	}
	hint := b.opts.memBufferSizeHint
	if hint > b.opts.maxMemBytes {
		hint = b.opts.maxMemBytes
	}
	if hint > 0 {
		b.mem = make([]byte, 0, hint)
	}
	return b
}

// Size returns the number of bytes written to the buffer.
func (b *Buffer) Size() int64 {
	return int64(len(b.mem)) + b.fileSize
}

// InMemory reports whether all data is held in memory.
func (b *Buffer) InMemory() bool {
	return b.file == nil
}

func (b *Buffer) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("size: %d, off: %d (mem: %d/%d, disk: %d)", b.Size(), b.off, len(b.mem), b.opts.maxMemBytes, b.fileSize)
}

// Write appends the contents of p to the buffer. If the total size limit is reached,
// as much as fits is written and ErrMaxSizeExceeded is returned.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if b.closed {
		return 0, errClosed
	}
	var exceeded error
	if b.opts.maxTotalBytes > 0 {
		if free := b.opts.maxTotalBytes - b.Size(); int64(len(p)) > free {
			p = p[:free]
			exceeded = ErrMaxSizeExceeded(b.opts.maxTotalBytes)
		}
	}

	if b.file == nil {
		free := b.opts.maxMemBytes - int64(len(b.mem))
		if int64(len(p)) <= free {
			b.mem = append(b.mem, p...)
			return len(p), exceeded
		}
		b.mem = append(b.mem, p[:free]...)
		n = int(free)
		p = p[free:]
		if b.file, err = os.CreateTemp(b.opts.tmpDir, tmpFilePrefix); err != nil {
			return n, err
		}
		log.Debugf("diskbuffer: spilling to %s after %d bytes", b.file.Name(), len(b.mem))
	}

	m, err := b.file.WriteAt(p, b.fileSize)
	b.fileSize += int64(m)
	n += m
	if err == nil {
		err = exceeded
	}
	return n, err
}

// WriteString appends the contents of s to the buffer.
func (b *Buffer) WriteString(s string) (n int, err error) {
	return b.Write([]byte(s))
}

// ReadFrom reads data from r until EOF and appends it to the buffer.
// The return value n is the number of bytes read. Any error except io.EOF
// encountered during the read is also returned.
func (b *Buffer) ReadFrom(r io.Reader) (n int64, err error) {
	p := make([]byte, 32*1024)
	for {
		m, rerr := r.Read(p)
		if m > 0 {
			w, werr := b.Write(p[:m])
			n += int64(w)
			if werr != nil {
				return n, werr
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}

// Read reads the next len(p) bytes from the buffer or until the buffer is drained.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if b.closed {
		return 0, errClosed
	}
	if b.off >= b.Size() {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	memLen := int64(len(b.mem))
	if b.off < memLen {
		n = copy(p, b.mem[b.off:])
		b.off += int64(n)
		p = p[n:]
	}
	if len(p) > 0 && b.file != nil && b.off >= memLen {
		m, ferr := b.file.ReadAt(p, b.off-memLen)
		b.off += int64(m)
		n += m
		if ferr != nil && ferr != io.EOF {
			return n, ferr
		}
	}
	return n, nil
}

// Rewind sets the read offset to the start of the buffer.
func (b *Buffer) Rewind() {
	b.off = 0
}

// WriteTo writes the unread data to w.
func (b *Buffer) WriteTo(w io.Writer) (n int64, err error) {
	if b.closed {
		return 0, errClosed
	}
	memLen := int64(len(b.mem))
	if b.off < memLen {
		m, err := w.Write(b.mem[b.off:])
		n += int64(m)
		b.off += int64(m)
		if err != nil {
			return n, err
		}
	}
	if b.file != nil && b.off < b.Size() {
		m, err := io.Copy(w, io.NewSectionReader(b.file, b.off-memLen, b.Size()-b.off))
		n += m
		b.off += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close releases memory and removes the temporary file, if any.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem = nil
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	if err := b.file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
