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
	"fmt"
	"io"

	"github.com/nlnwa/warcio/pkg/diagnostics"
)

// ErrIllegalState is returned when an entry or stream is used in a way its current state does not allow.
var ErrIllegalState = diagnostics.ErrIllegalState

// Entry is one gzip member.
//
// Entries are created by Reader.Next and Writer.WriteEntryHeader and belong to the
// Reader or Writer that created them. The payload stream of an entry can be opened
// once. An entry is closed once and never reopened.
type Entry struct {
	Header

	CRC32            uint32 // CRC32 from the trailer
	ISize            uint32 // uncompressed size modulo 2^32 from the trailer
	ComputedCRC32    uint32
	ComputedISize    uint32
	UncompressedSize int64
	StartOffset      int64 // offset of the first header byte
	Consumed         int64 // compressed size on disk including header and trailer, valid when the entry is done

	diag   diagnostics.Diagnostics
	r      *Reader
	w      *Writer
	er     *EntryReader
	ew     *EntryWriter
	opened bool // payload stream handed out
	done   bool // trailer read or written, or payload given up
	closed bool
}

// Diagnostics returns the problems found in this entry.
func (e *Entry) Diagnostics() *diagnostics.Diagnostics {
	return &e.diag
}

// IsCompliant reports whether the entry has no error diagnostics.
func (e *Entry) IsCompliant() bool {
	return !e.diag.HasErrors()
}

func (e *Entry) IsClosed() bool {
	return e.closed
}

// Reader returns the decompressed payload of an entry returned by Reader.Next.
// It can only be called once.
func (e *Entry) Reader() (*EntryReader, error) {
	if e.r == nil {
		return nil, fmt.Errorf("%w: entry was not created by a reader", ErrIllegalState)
	}
	if e.opened || e.closed {
		return nil, fmt.Errorf("%w: payload of entry at offset %d already opened", ErrIllegalState, e.StartOffset)
	}
	e.opened = true
	e.er = &EntryReader{e: e}
	return e.er, nil
}

// Writer returns the sink for uncompressed payload of an entry returned by Writer.WriteEntryHeader.
// It can only be called once.
func (e *Entry) Writer() (*EntryWriter, error) {
	if e.w == nil {
		return nil, fmt.Errorf("%w: entry was not created by a writer", ErrIllegalState)
	}
	if e.opened || e.closed {
		return nil, fmt.Errorf("%w: payload of entry at offset %d already opened", ErrIllegalState, e.StartOffset)
	}
	e.opened = true
	e.ew = &EntryWriter{e: e}
	return e.ew, nil
}

// WriteFrom compresses everything read from r into this entry.
//
// Together with EntryReader it clones entries: the payload of a read entry is
// decompressed and recompressed with the writer's current compression level.
func (e *Entry) WriteFrom(r io.Reader) (int64, error) {
	if e.w == nil || e.closed {
		return 0, fmt.Errorf("%w: entry is not writable", ErrIllegalState)
	}
	if e.ew == nil {
		e.opened = true
		e.ew = &EntryWriter{e: e}
	}
	return io.Copy(e.ew, r)
}

// Close closes the entry.
//
// For a read entry the rest of the payload is skipped and the trailer is validated.
// For a written entry the compressed stream is flushed and the trailer is written.
// Closing a closed entry does nothing.
func (e *Entry) Close() error {
	if e.closed {
		return nil
	}
	if e.r != nil {
		if !e.done {
			if e.er == nil {
				e.opened = true
				e.er = &EntryReader{e: e}
			}
			if _, err := io.Copy(io.Discard, e.er); err != nil {
				return err
			}
		}
		if !e.IsCompliant() {
			e.r.nonCompliant = true
		}
	} else if !e.done {
		if err := e.w.finishEntry(e); err != nil {
			return err
		}
	}
	e.closed = true
	if e.er != nil {
		e.er.closed = true
	}
	if e.ew != nil {
		e.ew.closed = true
	}
	return nil
}

// EntryReader reads the decompressed payload of an entry.
type EntryReader struct {
	e      *Entry
	closed bool
}

func (er *EntryReader) Read(p []byte) (int, error) {
	if er.closed || er.e.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	return er.e.r.inflate(er.e, p)
}

// Available returns 1 while the entry has undecompressed data left and 0 after the end of the member.
func (er *EntryReader) Available() int {
	if er.closed || er.e.done {
		return 0
	}
	return 1
}

// Close skips the rest of the payload and closes the entry.
func (er *EntryReader) Close() error {
	if er.closed {
		return nil
	}
	return er.e.Close()
}

// EntryWriter compresses payload into an entry.
type EntryWriter struct {
	e      *Entry
	closed bool
}

func (ew *EntryWriter) Write(p []byte) (int, error) {
	if ew.closed || ew.e.done {
		return 0, fmt.Errorf("%w: write to closed entry", ErrIllegalState)
	}
	return ew.e.w.deflate(ew.e, p)
}

// Close finishes the entry.
func (ew *EntryWriter) Close() error {
	return ew.e.Close()
}
