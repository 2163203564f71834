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
	"strings"

	"github.com/nlnwa/warcio/pkg/countingreader"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/nlnwa/warcio/pkg/gzip"
	"github.com/nlnwa/whatwg-url/url"
)

// Record is a WARC record read by a Reader.
//
// The payload must be read before the next record is requested. Close skips the
// rest of the payload, validates digests and reads the end of record marker.
type Record struct {
	version       *WarcVersion
	header        *WarcFields
	recordType    RecordType
	startOffset   int64
	headerLength  int64
	contentLength int64
	size          int64
	diag          diagnostics.Diagnostics
	stream        *recordStream
	cur           *countingreader.PushbackReader
	entry         *gzip.Entry
	payload       *Payload
	digests       *digestAccumulator
	closed        bool
}

func (wr *Record) Version() *WarcVersion { return wr.version }

func (wr *Record) Type() RecordType { return wr.recordType }

func (wr *Record) WarcHeader() *WarcFields { return wr.header }

// StartOffset is the offset of the record in the file. For compressed files this is
// the offset of the gzip member. It is -1 if unknown.
func (wr *Record) StartOffset() int64 { return wr.startOffset }

// ContentLength is the declared length of the content block, or -1 if missing or invalid.
func (wr *Record) ContentLength() int64 { return wr.contentLength }

// HeaderLength is the length of the uncompressed header including the empty line ending it.
func (wr *Record) HeaderLength() int64 { return wr.headerLength }

// Size is the number of bytes the record occupies in the file. Valid after Close.
func (wr *Record) Size() int64 { return wr.size }

// Payload returns the content block of the record.
func (wr *Record) Payload() *Payload { return wr.payload }

// IsCompressed reports whether the record was read from a gzip member.
func (wr *Record) IsCompressed() bool { return wr.entry != nil }

// Entry returns the gzip member holding the record, or nil for uncompressed records.
func (wr *Record) Entry() *gzip.Entry { return wr.entry }

func (wr *Record) IsClosed() bool { return wr.closed }

// Diagnostics returns problems found in the record. Digest, length and end of record
// problems are only known after Close.
func (wr *Record) Diagnostics() *diagnostics.Diagnostics { return &wr.diag }

// IsCompliant reports whether the record has no error diagnostics.
func (wr *Record) IsCompliant() bool { return !wr.diag.HasErrors() }

// TargetURI parses the WARC-Target-URI field.
func (wr *Record) TargetURI() (*url.Url, error) {
	v := strings.Trim(wr.header.Get(WarcTargetURI), "<>")
	if v == "" {
		return nil, fmt.Errorf("record has no %s", WarcTargetURI)
	}
	return url.Parse(v)
}

// Digest returns the declared and the computed digest of the given kind as "algorithm:value".
// The computed digest is empty unless digests of that kind are enabled, and is complete after Close.
func (wr *Record) Digest(kind DigestKind) (declared, computed string) {
	return wr.header.Get(kind.field()), wr.digests.computed(kind)
}

func (wr *Record) String() string {
	return fmt.Sprintf("WARC record: version: %s, type: %s, id: %s", wr.version, wr.Type(), wr.WarcHeader().Get(WarcRecordID))
}

// Close skips the rest of the payload, validates declared length and digests, and reads
// the end of record marker. Closing a closed record does nothing.
func (wr *Record) Close() error {
	if wr.closed {
		return nil
	}
	if _, err := io.Copy(io.Discard, wr.payload); err != nil {
		return err
	}
	if read := wr.payload.r.N(); wr.contentLength >= 0 && read < wr.contentLength {
		wr.diag.AddError(diagnostics.RequiredMissing, "payload", "truncated",
			fmt.Sprintf("expected %d bytes", wr.contentLength), fmt.Sprintf("got %d bytes", read))
	}
	wr.digests.validate(wr.header, &wr.diag)
	wr.closed = true
	if err := wr.stream.endRecord(wr); err != nil {
		return err
	}
	wr.stream.owner.recordClosed(wr)
	return nil
}

// Payload reads the content block of a record. Reading stops at the declared content length.
type Payload struct {
	rec *Record
	r   *countingreader.Reader
}

func (p *Payload) Read(b []byte) (int, error) {
	if p.rec.closed {
		return 0, io.EOF
	}
	n, err := p.r.Read(b)
	if n > 0 {
		_, _ = p.rec.digests.Write(b[:n])
	}
	return n, err
}

// N returns the number of payload bytes read so far.
func (p *Payload) N() int64 {
	return p.r.N()
}

// Remaining returns the number of declared payload bytes not yet read, or -1 if the length is unknown.
func (p *Payload) Remaining() int64 {
	return p.r.Remaining()
}
