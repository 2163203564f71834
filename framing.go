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
	"fmt"
	"io"

	"github.com/nlnwa/warcio/pkg/countingreader"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/nlnwa/warcio/pkg/gzip"
	log "github.com/sirupsen/logrus"
)

// Framing is how records are laid out in a WARC file.
type Framing uint8

const (
	// FramingAuto detects the framing from the first bytes of the source.
	FramingAuto Framing = iota
	// FramingRaw is uncompressed records following each other.
	FramingRaw
	// FramingGzip is one record per gzip member.
	FramingGzip
)

func (f Framing) String() string {
	switch f {
	case FramingRaw:
		return "raw"
	case FramingGzip:
		return "gzip"
	default:
		return "auto"
	}
}

// recordPushback is the pushback capacity of record cursors. It covers the version
// prefix lookahead and the gzip header.
const recordPushback = 32

const recordEntity = "record"

// recordStream produces records from a source in either framing.
//
// In raw framing the record cursor is the source cursor. In gzip framing every
// record gets a fresh cursor over the decompressed member.
type recordStream struct {
	framing Framing
	src     *countingreader.PushbackReader
	gz      *gzip.Reader
	base    int64 // offset of the first source byte, -1 if unknown
	opts    *options
	owner   *Reader
	parser  warcfieldsParser
}

func newRecordStream(r io.Reader, base int64, bufferSize int, opts *options, owner *Reader) (*recordStream, error) {
	src, err := countingreader.NewPushbackSize(r, recordPushback, bufferSize)
	if err != nil {
		return nil, err
	}
	s := &recordStream{framing: opts.framing, src: src, base: base, opts: opts, owner: owner}

	if s.framing == FramingAuto {
		var magic [2]byte
		n, err := src.Peek(magic[:])
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n == 2 && uint16(magic[0])<<8|uint16(magic[1]) == gzip.Magic {
			s.framing = FramingGzip
		} else {
			s.framing = FramingRaw
		}
		log.Debugf("detected %s framing", s.framing)
	}

	if s.framing == FramingGzip {
		if s.gz, err = gzip.NewReader(src); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// offset translates a source cursor position to a file offset.
func (s *recordStream) offset(pos int64) int64 {
	if s.base < 0 {
		return -1
	}
	return s.base + pos
}

// consumed returns the file offset after the last consumed byte.
func (s *recordStream) consumed() int64 {
	return s.offset(s.src.Consumed())
}

// next returns the next record or io.EOF.
func (s *recordStream) next() (*Record, error) {
	if s.framing == FramingGzip {
		return s.nextGzip()
	}
	return s.nextRaw()
}

func (s *recordStream) nextRaw() (*Record, error) {
	expected := s.src.Consumed()
	skipped, garbage, found, err := seekRecord(s.src)
	if err != nil {
		return nil, err
	}
	if !found {
		if garbage {
			s.owner.diag.AddError(diagnostics.InvalidData, recordEntity,
				fmt.Sprintf("no record found after offset %d", s.offset(expected)),
				fmt.Sprintf("%d bytes skipped", skipped))
		} else if skipped > 0 {
			s.owner.diag.AddWarning(diagnostics.Undesired, recordEntity,
				fmt.Sprintf("%d blank bytes at end of file", skipped))
		}
		return nil, io.EOF
	}

	start := s.src.Consumed()
	s.src.SetCounter(0)
	rec := &Record{stream: s, cur: s.src, startOffset: s.offset(start)}
	if garbage {
		log.Debugf("record expected at offset %d, found at offset %d", s.offset(expected), s.offset(start))
		rec.diag.AddError(diagnostics.InvalidExpected, recordEntity,
			fmt.Sprintf("expected at offset %d", s.offset(expected)), fmt.Sprintf("found at offset %d", s.offset(start)))
	} else if skipped > 0 {
		rec.diag.AddWarning(diagnostics.Undesired, recordEntity, fmt.Sprintf("%d blank bytes before record", skipped))
	}
	if err := s.readHeader(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *recordStream) nextGzip() (*Record, error) {
	for {
		entry, err := s.gz.Next()
		if err != nil {
			if err == io.EOF {
				s.owner.diag.AddAll(s.gz.Diagnostics())
				s.gz.Diagnostics().Reset()
			}
			return nil, err
		}
		er, err := entry.Reader()
		if err != nil {
			return nil, err
		}
		cur, err := countingreader.NewPushbackSize(er, recordPushback, s.opts.bufferSize)
		if err != nil {
			return nil, err
		}

		var prefix [len(versionPrefix)]byte
		n, err := cur.Peek(prefix[:])
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n < len(prefix) || string(prefix[:]) != versionPrefix {
			s.owner.diag.AddError(diagnostics.InvalidData, recordEntity,
				fmt.Sprintf("gzip member at offset %d does not contain a record", s.offset(entry.StartOffset)))
			if err := entry.Close(); err != nil {
				return nil, err
			}
			s.owner.diag.AddAll(entry.Diagnostics())
			continue
		}

		rec := &Record{stream: s, cur: cur, entry: entry, startOffset: s.offset(entry.StartOffset)}
		if err := s.readHeader(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// seekRecord skips bytes until the cursor is at a version line. It reports how many bytes
// were skipped, whether any of them were not line terminators, and whether a record was found.
func seekRecord(r *countingreader.PushbackReader) (skipped int64, garbage, found bool, err error) {
	var prefix [len(versionPrefix)]byte
	for {
		n, err := r.Peek(prefix[:])
		if err != nil && err != io.EOF {
			return skipped, garbage, false, err
		}
		if n == len(prefix) && string(prefix[:]) == versionPrefix {
			return skipped, garbage, true, nil
		}
		if n == 0 {
			return skipped, garbage, false, nil
		}
		c, err := r.ReadByte()
		if err != nil {
			return skipped, garbage, false, err
		}
		if c != cr && c != lf {
			garbage = true
		}
		skipped++
	}
}

// readHeader parses the version line and header fields of rec from its cursor and sets up the payload.
func (s *recordStream) readHeader(rec *Record) error {
	line, err := rec.cur.ReadLine()
	if err != nil && err != io.EOF {
		return err
	}
	rec.version = parseVersion(line, &rec.diag)

	fields, _, err := s.parser.Parse(rec.cur, &rec.diag, &position{lineNumber: 1})
	if err != nil {
		return err
	}
	rec.header = fields
	rec.headerLength = rec.cur.Counter()
	rec.recordType = stringToRecordType(fields.Get(WarcType))
	if !fields.Has(WarcType) {
		rec.diag.AddError(diagnostics.RequiredMissing, WarcType)
	}

	rec.contentLength = -1
	if !fields.Has(ContentLength) {
		rec.diag.AddError(diagnostics.RequiredMissing, ContentLength)
	} else if cl, err := fields.GetInt64(ContentLength); err != nil || cl < 0 {
		rec.diag.AddError(diagnostics.Invalid, ContentLength, fields.Get(ContentLength))
	} else {
		rec.contentLength = cl
	}

	var body *countingreader.Reader
	switch {
	case rec.contentLength >= 0:
		body = countingreader.NewLimited(rec.cur, rec.contentLength)
	case s.framing == FramingGzip:
		body = countingreader.New(rec.cur)
	default:
		body = countingreader.NewLimited(rec.cur, 0)
	}
	rec.digests = newDigestAccumulator(fields, rec.recordType, s.opts, &rec.diag)
	rec.payload = &Payload{rec: rec, r: body}
	return nil
}

// endRecord reads the end of record marker after the payload of rec. In gzip framing it
// also closes the member and moves its diagnostics to the record.
func (s *recordStream) endRecord(rec *Record) error {
	terminators, missingCR, err := readTrailer(rec.cur)
	if err != nil {
		return err
	}
	switch {
	case terminators < 2:
		rec.diag.AddError(diagnostics.RequiredMissing, recordEntity, "end of record marker",
			fmt.Sprintf("found %d of 2 line terminators", terminators))
	case terminators > 2:
		rec.diag.AddWarning(diagnostics.Undesired, recordEntity, fmt.Sprintf("%d line terminators after payload", terminators))
	}
	if missingCR {
		rec.diag.AddWarning(diagnostics.InvalidData, recordEntity, "missing carriage return in end of record marker")
	}

	if rec.entry == nil {
		rec.size = rec.cur.Counter()
		return nil
	}

	trailing, err := rec.cur.Skip(1<<63 - 1)
	if err != nil {
		return err
	}
	if trailing > 0 {
		rec.diag.AddWarning(diagnostics.Undesired, recordEntity, fmt.Sprintf("%d bytes after end of record in gzip member", trailing))
	}
	if err := rec.entry.Close(); err != nil {
		return err
	}
	rec.diag.AddAll(rec.entry.Diagnostics())
	rec.size = rec.entry.Consumed
	return nil
}

// readTrailer consumes line terminators, returning how many were found and if any lacked a carriage return.
func readTrailer(r *countingreader.PushbackReader) (terminators int, missingCR bool, err error) {
	var b [2]byte
	for {
		n, err := r.Peek(b[:])
		if err != nil && err != io.EOF {
			return terminators, missingCR, err
		}
		switch {
		case n == 2 && b[0] == cr && b[1] == lf:
			_, err = r.Skip(2)
		case n >= 1 && b[0] == lf:
			missingCR = true
			_, err = r.Skip(1)
		default:
			return terminators, missingCR, nil
		}
		if err != nil {
			return terminators, missingCR, err
		}
		terminators++
	}
}
