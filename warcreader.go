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

package warcio

import (
	"fmt"
	"io"

	"github.com/nlnwa/warcio/pkg/diagnostics"
)

// Reader reads WARC records.
//
// A sequential Reader created with NewReader iterates over all records of a source
// with Next. A random access Reader created with NewRandomAccessReader reads one
// record at a time from sources positioned at a record with NextAt.
type Reader struct {
	opts         *options
	stream       *recordStream
	randomAccess bool
	record       *Record
	diag         diagnostics.Diagnostics
	nonCompliant bool
	records      int
	startOffset  int64
	consumed     int64
	closed       bool
}

// NewReader creates a Reader iterating over the records in r.
//
// The framing is detected from the first bytes of r unless set with WithFraming.
// Closing the Reader does not close r.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return newReader(r, 0, opts...)
}

// newReader creates a sequential Reader over r where the first byte of r is at offset base in the file.
func newReader(r io.Reader, base int64, opts ...Option) (*Reader, error) {
	if r == nil {
		return nil, diagnostics.Usagef("reader needs a source")
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	wr := &Reader{opts: o, startOffset: -1}
	if wr.stream, err = newRecordStream(r, base, o.bufferSize, o, wr); err != nil {
		return nil, err
	}
	return wr, nil
}

// NewRandomAccessReader creates a Reader for use with NextAt.
func NewRandomAccessReader(opts ...Option) (*Reader, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Reader{opts: o, randomAccess: true, startOffset: -1}, nil
}

// Next returns the next record, or io.EOF when there are no more records.
//
// The previous record is closed first.
func (wr *Reader) Next() (*Record, error) {
	if wr.randomAccess {
		return nil, fmt.Errorf("%w: Next called on random access reader", ErrIllegalState)
	}
	if wr.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrIllegalState)
	}
	if err := wr.closeRecord(); err != nil {
		return nil, err
	}
	return wr.next()
}

// NextAt reads the record starting at the current position of src. offset is the position
// of src in the file and is used for reporting only. Use -1 if it is not known.
//
// The previous record is closed first.
func (wr *Reader) NextAt(src io.Reader, offset int64) (*Record, error) {
	return wr.NextAtSize(src, offset, wr.opts.bufferSize)
}

// NextAtSize is like NextAt, but reads src through a buffer of the given size.
func (wr *Reader) NextAtSize(src io.Reader, offset int64, bufferSize int) (*Record, error) {
	if !wr.randomAccess {
		return nil, fmt.Errorf("%w: NextAt called on sequential reader", ErrIllegalState)
	}
	if wr.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrIllegalState)
	}
	if src == nil {
		return nil, diagnostics.Usagef("NextAt needs a source")
	}
	if offset < -1 {
		return nil, diagnostics.Usagef("invalid offset: %d", offset)
	}
	if bufferSize <= 0 {
		return nil, diagnostics.Usagef("invalid buffer size: %d", bufferSize)
	}
	if err := wr.closeRecord(); err != nil {
		return nil, err
	}
	var err error
	if wr.stream, err = newRecordStream(src, offset, bufferSize, wr.opts, wr); err != nil {
		return nil, err
	}
	return wr.next()
}

func (wr *Reader) next() (*Record, error) {
	rec, err := wr.stream.next()
	if err != nil {
		if err == io.EOF {
			wr.consumed = wr.stream.consumed()
		}
		return nil, err
	}
	wr.record = rec
	wr.records++
	wr.startOffset = rec.startOffset
	return rec, nil
}

func (wr *Reader) closeRecord() error {
	if wr.record == nil {
		return nil
	}
	err := wr.record.Close()
	wr.record = nil
	return err
}

// recordClosed is called when a record read by this reader is closed.
func (wr *Reader) recordClosed(rec *Record) {
	if !rec.IsCompliant() {
		wr.nonCompliant = true
	}
	wr.consumed = wr.stream.consumed()
}

// SetDigestEnabled turns computing and validating digests of the given kind on or off
// for records returned after the call.
func (wr *Reader) SetDigestEnabled(kind DigestKind, enabled bool) {
	if kind == DigestPayload {
		wr.opts.payloadDigest = enabled
	} else {
		wr.opts.blockDigest = enabled
	}
}

// SetDigestAlgorithm sets the algorithm used for digests not declared in a record.
func (wr *Reader) SetDigestAlgorithm(name string) error {
	if !IsSupportedDigestAlgorithm(name) {
		return fmt.Errorf("%w '%s'", ErrUnsupportedDigest, name)
	}
	wr.opts.digestAlgorithm = normalizeAlgorithm(name)
	return nil
}

// SetDigestEncoding sets the encoding of digests computed for records without a declared digest.
func (wr *Reader) SetDigestEncoding(encoding DigestEncoding) error {
	if encoding < Base16 || encoding > Base64 {
		return diagnostics.Usagef("invalid digest encoding: %d", encoding)
	}
	wr.opts.digestEncoding = encoding
	return nil
}

// StartOffset is the offset of the current record, or of the last record after Close.
// It is -1 before the first record and when the offset is unknown.
func (wr *Reader) StartOffset() int64 {
	return wr.startOffset
}

// Consumed is the offset in the file after the last consumed byte.
func (wr *Reader) Consumed() int64 {
	if wr.stream == nil || wr.closed {
		return wr.consumed
	}
	return wr.stream.consumed()
}

// Offset is the offset in the file after the last closed record.
func (wr *Reader) Offset() int64 {
	return wr.consumed
}

// IsCompressed reports whether records are read from gzip members.
func (wr *Reader) IsCompressed() bool {
	return wr.stream != nil && wr.stream.framing == FramingGzip
}

// RecordCount is the number of records returned by the reader.
func (wr *Reader) RecordCount() int {
	return wr.records
}

// Diagnostics returns problems found outside of records, like data between records.
func (wr *Reader) Diagnostics() *diagnostics.Diagnostics {
	return &wr.diag
}

// IsCompliant reports whether the reader and all closed records have no error diagnostics.
func (wr *Reader) IsCompliant() bool {
	if wr.nonCompliant || wr.diag.HasErrors() {
		return false
	}
	if wr.stream != nil && wr.stream.gz != nil && !wr.stream.gz.IsCompliant() {
		return false
	}
	return true
}

// Close closes the current record. Offsets and compliance stay available.
// The source is not closed. Closing a closed reader does nothing.
func (wr *Reader) Close() error {
	if wr.closed {
		return nil
	}
	err := wr.closeRecord()
	if wr.stream != nil {
		wr.consumed = wr.stream.consumed()
		if wr.stream.gz != nil {
			_ = wr.stream.gz.Close()
			wr.diag.AddAll(wr.stream.gz.Diagnostics())
			wr.stream.gz.Diagnostics().Reset()
		}
	}
	wr.closed = true
	return err
}
