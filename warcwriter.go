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

package warcio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/nlnwa/warcio/internal/diskbuffer"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/nlnwa/warcio/pkg/gzip"
	log "github.com/sirupsen/logrus"
)

// UnknownLength is given to Writer.WriteHeader when the content length is not known in advance.
const UnknownLength int64 = -1

type writeState uint8

const (
	stateInit writeState = iota
	stateHeaderWritten
	statePayloadWritten
	stateRecordClosed
)

func (s writeState) String() string {
	switch s {
	case stateHeaderWritten:
		return "header written"
	case statePayloadWritten:
		return "payload written"
	case stateRecordClosed:
		return "record closed"
	default:
		return "init"
	}
}

// WriteResponse describes a record written by a Writer.
type WriteResponse struct {
	RecordID      string // WARC-Record-ID of the record
	Offset        int64  // offset of the record in the file
	Size          int64  // bytes written to the file for this record
	ContentLength int64  // length of the content block
	BlockDigest   string // WARC-Block-Digest as written, if any
	PayloadDigest string // WARC-Payload-Digest as written, if any
	diag          diagnostics.Diagnostics
}

// Diagnostics returns problems found while writing the record, like a content length
// different from the declared one.
func (r *WriteResponse) Diagnostics() *diagnostics.Diagnostics {
	return &r.diag
}

func (r *WriteResponse) IsCompliant() bool {
	return !r.diag.HasErrors()
}

func (r *WriteResponse) String() string {
	return fmt.Sprintf("record %s at offset %d, size %d", r.RecordID, r.Offset, r.Size)
}

// Writer writes WARC records.
//
// A record is written with WriteHeader, followed by any number of WritePayload or
// StreamPayload calls, and finished with CloseRecord. Calling WriteHeader after payload
// closes the previous record.
type Writer struct {
	opts         *options
	out          *countingWriter
	bw           *bufio.Writer
	gz           *gzip.Writer
	entry        *gzip.Entry
	sink         io.Writer
	state        writeState
	version      *WarcVersion
	header       *WarcFields
	declared     int64
	written      int64
	deferred     bool
	spool        *diskbuffer.Buffer
	digests      *digestAccumulator
	current      *WriteResponse
	response     *WriteResponse
	records      int
	nonCompliant bool
	closed       bool
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

// NewWriter creates a Writer writing records to w.
//
// Records are compressed as one gzip member each unless WithCompression(false) is given.
// Closing the Writer flushes buffered data but does not close w.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	if w == nil {
		return nil, diagnostics.Usagef("writer needs a sink")
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	ww := &Writer{opts: o, declared: UnknownLength}
	if o.compress {
		if ww.gz, err = gzip.NewWriterSize(w, o.bufferSize); err != nil {
			return nil, err
		}
		if err = ww.gz.SetCompressionLevel(o.compressionLevel); err != nil {
			return nil, err
		}
	} else {
		ww.bw = bufio.NewWriterSize(w, o.bufferSize)
		ww.out = &countingWriter{w: ww.bw}
	}
	return ww, nil
}

// IsCompressed reports whether records are written as gzip members.
func (ww *Writer) IsCompressed() bool {
	return ww.gz != nil
}

// SetDigestEnabled turns computing digests of the given kind on or off for records
// started after the call. Enabled digests not declared in the header are computed and added.
func (ww *Writer) SetDigestEnabled(kind DigestKind, enabled bool) {
	if kind == DigestPayload {
		ww.opts.payloadDigest = enabled
	} else {
		ww.opts.blockDigest = enabled
	}
}

// SetDigestAlgorithm sets the algorithm of computed digests.
func (ww *Writer) SetDigestAlgorithm(name string) error {
	if !IsSupportedDigestAlgorithm(name) {
		return fmt.Errorf("%w '%s'", ErrUnsupportedDigest, name)
	}
	ww.opts.digestAlgorithm = normalizeAlgorithm(name)
	return nil
}

// WriteHeader starts a new record.
//
// contentLength is the length of the content block, or UnknownLength to take it from the
// Content-Length field or, if that is missing, from the payload written before CloseRecord.
// A nil version means the version given with WithVersion.
//
// When the length is unknown or an enabled digest is not declared in fields, the header
// is held back and the payload is spooled until CloseRecord. Nothing is written if an
// error is returned.
func (ww *Writer) WriteHeader(version *WarcVersion, fields *WarcFields, contentLength int64) error {
	if ww.closed {
		return fmt.Errorf("%w: writer is closed", ErrIllegalState)
	}
	if fields == nil {
		return diagnostics.Usagef("record header needs fields")
	}
	if contentLength < UnknownLength {
		return diagnostics.Usagef("invalid content length: %d", contentLength)
	}
	switch ww.state {
	case stateHeaderWritten:
		return ErrBackToBackHeaders
	case statePayloadWritten:
		if err := ww.CloseRecord(); err != nil {
			return err
		}
	}

	header := fields.Clone()
	if contentLength >= 0 {
		header.SetInt64(ContentLength, contentLength)
	} else if header.Has(ContentLength) {
		cl, err := header.GetInt64(ContentLength)
		if err != nil || cl < 0 {
			return diagnostics.Usagef("invalid Content-Length field: %q", header.Get(ContentLength))
		}
		contentLength = cl
	}
	if version == nil {
		version = ww.opts.warcVersion
	}

	resp := &WriteResponse{RecordID: header.Get(WarcRecordID), ContentLength: contentLength}
	rt := stringToRecordType(header.Get(WarcType))
	digests := newDigestAccumulator(header, rt, ww.opts, &resp.diag)
	deferred := contentLength < 0 ||
		(digests.block != nil && !digests.blockDeclared) ||
		(digests.payload != nil && !digests.payloadDeclared)

	ww.version = version
	ww.header = header
	ww.declared = contentLength
	ww.written = 0
	ww.digests = digests
	ww.current = resp
	ww.deferred = deferred
	ww.state = stateHeaderWritten

	if deferred {
		log.Debugf("deferring header of record %s", resp.RecordID)
		ww.spool = diskbuffer.New(ww.opts.spoolOptions...)
		return nil
	}
	return ww.startRecord()
}

// startRecord opens the record in the output and writes the header.
func (ww *Writer) startRecord() error {
	if ww.gz != nil {
		entry, err := ww.gz.WriteEntryHeader(gzip.NewHeader())
		if err != nil {
			return err
		}
		ew, err := entry.Writer()
		if err != nil {
			return err
		}
		ww.entry = entry
		ww.sink = ew
		ww.current.Offset = entry.StartOffset
	} else {
		ww.sink = ww.out
		ww.current.Offset = ww.out.n
	}

	if _, err := io.WriteString(ww.sink, ww.version.String()+crlf); err != nil {
		return err
	}
	if _, err := ww.header.Write(ww.sink); err != nil {
		return err
	}
	_, err := io.WriteString(ww.sink, crlf)
	return err
}

// WritePayload writes part of the content block of the current record.
func (ww *Writer) WritePayload(p []byte) (int, error) {
	if err := ww.checkPayload(); err != nil {
		return 0, err
	}
	ww.state = statePayloadWritten
	var n int
	var err error
	if ww.deferred {
		n, err = ww.spool.Write(p)
	} else {
		n, err = ww.sink.Write(p)
	}
	_, _ = ww.digests.Write(p[:n])
	ww.written += int64(n)
	return n, err
}

// StreamPayload writes everything read from r to the content block of the current record.
func (ww *Writer) StreamPayload(r io.Reader) (int64, error) {
	if err := ww.checkPayload(); err != nil {
		return 0, err
	}
	ww.state = statePayloadWritten
	return io.Copy(payloadWriter{ww}, r)
}

func (ww *Writer) checkPayload() error {
	if ww.closed {
		return fmt.Errorf("%w: writer is closed", ErrIllegalState)
	}
	if ww.state != stateHeaderWritten && ww.state != statePayloadWritten {
		return ErrHeaderRequired
	}
	return nil
}

type payloadWriter struct {
	ww *Writer
}

func (p payloadWriter) Write(b []byte) (int, error) {
	return p.ww.WritePayload(b)
}

// CloseRecord finishes the current record. Closing a closed record does nothing.
func (ww *Writer) CloseRecord() error {
	switch ww.state {
	case stateInit:
		return ErrNothingToClose
	case stateRecordClosed:
		return nil
	}

	resp := ww.current
	if ww.deferred {
		if err := ww.writeDeferred(); err != nil {
			return err
		}
	} else {
		ww.digests.validate(ww.header, &resp.diag)
	}
	if ww.written != ww.declared {
		resp.diag.AddError(diagnostics.InvalidExpected, ContentLength,
			fmt.Sprintf("declared %d", ww.declared), fmt.Sprintf("written %d", ww.written))
	}

	if _, err := io.WriteString(ww.sink, crlfcrlf); err != nil {
		return err
	}
	if ww.entry != nil {
		if err := ww.entry.Close(); err != nil {
			return err
		}
		resp.Size = ww.entry.Consumed
		ww.entry = nil
	} else {
		resp.Size = ww.out.n - resp.Offset
	}

	resp.BlockDigest = ww.header.Get(WarcBlockDigest)
	resp.PayloadDigest = ww.header.Get(WarcPayloadDigest)
	if resp.ContentLength < 0 {
		resp.ContentLength = ww.written
	}
	if !resp.IsCompliant() {
		ww.nonCompliant = true
	}
	ww.response = resp
	ww.records++
	ww.state = stateRecordClosed
	return nil
}

// writeDeferred completes the held back header and writes it followed by the spooled payload.
func (ww *Writer) writeDeferred() error {
	defer func() {
		_ = ww.spool.Close()
		ww.spool = nil
	}()

	if ww.declared < 0 {
		ww.declared = ww.written
		ww.header.Set(ContentLength, strconv.FormatInt(ww.written, 10))
	}
	if d := ww.digests.block; d != nil && !ww.digests.blockDeclared {
		ww.header.Set(WarcBlockDigest, d.format())
	}
	if d := ww.digests.payload; d != nil && !ww.digests.payloadDeclared {
		ww.header.Set(WarcPayloadDigest, d.format())
	}
	ww.digests.validate(ww.header, &ww.current.diag)

	if err := ww.startRecord(); err != nil {
		return err
	}
	_, err := ww.spool.WriteTo(ww.sink)
	return err
}

// Response returns the description of the last closed record, or nil if no record was closed.
func (ww *Writer) Response() *WriteResponse {
	return ww.response
}

// RecordCount returns the number of closed records.
func (ww *Writer) RecordCount() int {
	return ww.records
}

// Offset returns the number of bytes written, including buffered bytes.
func (ww *Writer) Offset() int64 {
	if ww.gz != nil {
		return ww.gz.Offset()
	}
	return ww.out.n
}

// IsCompliant reports whether all closed records were written without error diagnostics.
func (ww *Writer) IsCompliant() bool {
	return !ww.nonCompliant
}

// Flush writes buffered data to the underlying writer.
func (ww *Writer) Flush() error {
	if ww.gz != nil {
		return ww.gz.Flush()
	}
	return ww.bw.Flush()
}

// Close closes the current record and flushes buffered data. The underlying writer is not closed.
// Closing a closed writer does nothing.
func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	if ww.state == stateHeaderWritten || ww.state == statePayloadWritten {
		if err := ww.CloseRecord(); err != nil {
			return err
		}
	}
	ww.closed = true
	if ww.gz != nil {
		return ww.gz.Close()
	}
	return ww.bw.Flush()
}
