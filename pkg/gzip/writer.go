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

package gzip

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/nlnwa/warcio/pkg/diagnostics"
)

var (
	errExtraTooLong = diagnostics.Usagef("gzip extra field longer than 65535 bytes")
	errNotLatin1    = diagnostics.Usagef("gzip name and comment must be representable in ISO 8859-1")
	errNulInString  = diagnostics.Usagef("gzip name and comment must not contain NUL")
)

// Writer writes a sequence of gzip members.
type Writer struct {
	out             *countingWriter
	bw              *bufio.Writer
	level           int
	compressor      *flate.Writer
	compressorLevel int
	entry           *Entry
	entries         int
	startOffset     int64
	closed          bool
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewWriter creates a Writer writing gzip members to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, diagnostics.Usagef("gzip writer needs a sink")
	}
	return &Writer{out: &countingWriter{w: w}, level: DefaultCompression, startOffset: -1}, nil
}

// NewWriterSize creates a Writer with an output buffer of the given size.
// Buffered data is flushed by Flush and Close.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, diagnostics.Usagef("gzip writer needs a sink")
	}
	if size <= 0 {
		return nil, diagnostics.Usagef("buffer size must be positive, was %d", size)
	}
	bw := bufio.NewWriterSize(w, size)
	return &Writer{out: &countingWriter{w: bw}, bw: bw, level: DefaultCompression, startOffset: -1}, nil
}

// SetCompressionLevel sets the level used for entries created after the call.
func (z *Writer) SetCompressionLevel(level int) error {
	if level < HuffmanOnly || level > BestCompression {
		return diagnostics.Usagef("invalid compression level %d", level)
	}
	z.level = level
	return nil
}

func (z *Writer) CompressionLevel() int {
	return z.level
}

// WriteEntryHeader starts a new member with the given header.
//
// A zero Magic or Method in h means gzip magic and deflate. Flags for Extra, Name and
// Comment are set when those fields are present. If FlagHeaderCRC is set, the header
// checksum is computed. The previous entry must be closed.
func (z *Writer) WriteEntryHeader(h Header) (*Entry, error) {
	if z.closed {
		return nil, fmt.Errorf("%w: writer is closed", ErrIllegalState)
	}
	if z.entry != nil && !z.entry.closed {
		return nil, fmt.Errorf("%w: entry at offset %d is not closed", ErrIllegalState, z.entry.StartOffset)
	}
	if h.Magic != 0 && h.Magic != Magic {
		return nil, diagnostics.Usagef("invalid gzip magic %#04x", h.Magic)
	}
	if h.Method != 0 && h.Method != MethodDeflate {
		return nil, diagnostics.Usagef("unsupported compression method %d", h.Method)
	}
	if h.HasReservedFlags() {
		return nil, diagnostics.Usagef("reserved gzip flags set: %#02x", h.Flags&flagReserved)
	}
	b, flags, err := h.marshal()
	if err != nil {
		return nil, err
	}

	e := &Entry{Header: h, w: z, StartOffset: z.out.n}
	e.Magic = Magic
	e.Method = MethodDeflate
	e.Flags = flags
	if flags&FlagHeaderCRC != 0 {
		e.HeaderCRC16 = le.Uint16(b[len(b)-2:])
	}

	if _, err := z.out.Write(b); err != nil {
		return nil, err
	}
	if z.compressor == nil || z.compressorLevel != z.level {
		fw, err := flate.NewWriter(z.out, z.level)
		if err != nil {
			return nil, err
		}
		z.compressor = fw
		z.compressorLevel = z.level
	} else {
		z.compressor.Reset(z.out)
	}
	z.entry = e
	z.entries++
	z.startOffset = e.StartOffset
	return e, nil
}

func (z *Writer) deflate(e *Entry, p []byte) (int, error) {
	n, err := z.compressor.Write(p)
	e.ComputedCRC32 = crc32.Update(e.ComputedCRC32, crc32.IEEETable, p[:n])
	e.UncompressedSize += int64(n)
	return n, err
}

func (z *Writer) finishEntry(e *Entry) error {
	if err := z.compressor.Close(); err != nil {
		return err
	}
	e.ComputedISize = uint32(e.UncompressedSize)
	e.CRC32 = e.ComputedCRC32
	e.ISize = e.ComputedISize

	var t [trailerSize]byte
	le.PutUint32(t[0:4], e.CRC32)
	le.PutUint32(t[4:8], e.ISize)
	if _, err := z.out.Write(t[:]); err != nil {
		return err
	}
	e.Consumed = z.out.n - e.StartOffset
	e.done = true
	return nil
}

// StartOffset returns the offset of the current or last entry, or -1 if none was written.
func (z *Writer) StartOffset() int64 {
	return z.startOffset
}

// Offset returns the number of bytes written, including buffered bytes.
func (z *Writer) Offset() int64 {
	return z.out.n
}

// Entries returns the number of entries started.
func (z *Writer) Entries() int {
	return z.entries
}

// Flush writes buffered data to the underlying writer.
func (z *Writer) Flush() error {
	if z.bw != nil {
		return z.bw.Flush()
	}
	return nil
}

// Close closes the open entry, if any, and flushes buffered data.
// The underlying writer is not closed. Closing a closed writer does nothing.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	if z.entry != nil && !z.entry.closed {
		if err := z.entry.Close(); err != nil {
			return err
		}
	}
	z.closed = true
	return z.Flush()
}
