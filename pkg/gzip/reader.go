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
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/nlnwa/warcio/pkg/countingreader"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	log "github.com/sirupsen/logrus"
)

// Reader iterates over the members of a gzip stream.
type Reader struct {
	in           *countingreader.PushbackReader
	decompressor io.ReadCloser
	entry        *Entry
	entries      int
	diag         diagnostics.Diagnostics
	resync       bool // member boundary lost, scan for next magic
	nonCompliant bool
	closed       bool
	startOffset  int64
	offset       int64
}

// NewReader creates a Reader reading gzip members from r.
//
// If r is a *countingreader.PushbackReader it is used as is, so offsets reported by
// the Reader are the offsets of r. Otherwise r is wrapped and offsets start at zero.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderSize(r, countingreader.DefaultReadAheadSize)
}

// NewReaderSize is like NewReader, but wraps r with a read-ahead buffer of the given size.
func NewReaderSize(r io.Reader, size int) (*Reader, error) {
	if r == nil {
		return nil, diagnostics.Usagef("gzip reader needs a source")
	}
	if size <= 0 {
		return nil, diagnostics.Usagef("buffer size must be positive, was %d", size)
	}
	in, ok := r.(*countingreader.PushbackReader)
	if ok {
		if in.PushbackSize() < readerPushback {
			return nil, diagnostics.Usagef("gzip reader needs a pushback size of at least %d, was %d", readerPushback, in.PushbackSize())
		}
	} else {
		var err error
		if in, err = countingreader.NewPushbackSize(r, readerPushback, size); err != nil {
			return nil, err
		}
	}
	return &Reader{in: in, startOffset: -1}, nil
}

// Next returns the next entry, or io.EOF when there are no more entries.
//
// The previous entry is closed first. If its payload stream was opened and not read to
// the end, ErrIllegalState is returned instead.
func (z *Reader) Next() (*Entry, error) {
	if z.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrIllegalState)
	}
	if e := z.entry; e != nil {
		if e.opened && !e.done && !e.closed {
			return nil, fmt.Errorf("%w: payload of entry at offset %d is still open", ErrIllegalState, e.StartOffset)
		}
		if err := e.Close(); err != nil {
			return nil, err
		}
		z.entry = nil
	}

	expected := z.in.Consumed()
	if z.resync {
		z.resync = false
		found, err := z.seekMagic()
		if err != nil {
			return nil, err
		}
		if !found {
			z.noMoreMembers(expected)
			return nil, io.EOF
		}
	}

	var hdr [fixedHeaderSize]byte
	for {
		start := z.in.Consumed()
		n, err := z.in.ReadFully(hdr[:])
		if n == 0 {
			switch err {
			case io.EOF:
				return nil, io.EOF
			case io.ErrUnexpectedEOF:
				z.diag.AddError(diagnostics.InvalidData, "gzip header", fmt.Sprintf("source ends inside header at offset %d", start))
				_, _ = z.in.Skip(fixedHeaderSize)
				return nil, io.EOF
			default:
				return nil, err
			}
		}

		if hdr[0] != magic1 || hdr[1] != magic2 {
			if err := z.in.Unread(hdr[1:]); err != nil {
				return nil, err
			}
			found, err := z.seekMagic()
			if err != nil {
				return nil, err
			}
			if !found {
				z.noMoreMembers(expected)
				return nil, io.EOF
			}
			continue
		}

		e := &Entry{r: z, StartOffset: start}
		if start != expected {
			log.Debugf("gzip member expected at offset %d, found at offset %d", expected, start)
			e.diag.AddError(diagnostics.InvalidExpected, "gzip member",
				fmt.Sprintf("expected at offset %d", expected), fmt.Sprintf("found at offset %d", start))
		}
		return z.parseHeader(e, hdr[:])
	}
}

func (z *Reader) noMoreMembers(expected int64) {
	if z.in.Consumed() > expected {
		z.diag.AddError(diagnostics.InvalidData, "gzip member",
			fmt.Sprintf("no member found in %d bytes after offset %d", z.in.Consumed()-expected, expected))
	}
}

// seekMagic skips bytes until the source is positioned at a gzip magic followed by the deflate method.
// If no magic is found, the source is consumed to the end.
func (z *Reader) seekMagic() (bool, error) {
	var buf [3]byte
	for {
		n, err := z.in.Peek(buf[:])
		if n == len(buf) && buf[0] == magic1 && buf[1] == magic2 && buf[2] == MethodDeflate {
			return true, nil
		}
		if err == io.EOF {
			_, _ = z.in.Skip(int64(n))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if _, err := z.in.ReadByte(); err != nil {
			return false, err
		}
	}
}

func (z *Reader) parseHeader(e *Entry, hdr []byte) (*Entry, error) {
	crc := crc32.ChecksumIEEE(hdr)
	e.Magic = uint16(hdr[0])<<8 | uint16(hdr[1])
	e.Method = hdr[2]
	e.Flags = hdr[3]
	e.MTime = le.Uint32(hdr[4:8])
	e.XFL = hdr[8]
	e.OS = hdr[9]

	if e.HasReservedFlags() {
		e.diag.AddWarning(diagnostics.Invalid, "gzip flags", fmt.Sprintf("reserved bits set: %#02x", e.Flags&flagReserved))
	}

	if e.Flags&FlagExtra != 0 {
		var xlen [2]byte
		if _, err := io.ReadFull(z.in, xlen[:]); err != nil {
			return z.truncatedHeader(e, err)
		}
		e.Extra = make([]byte, le.Uint16(xlen[:]))
		if _, err := io.ReadFull(z.in, e.Extra); err != nil {
			return z.truncatedHeader(e, err)
		}
		crc = crc32.Update(crc, crc32.IEEETable, xlen[:])
		crc = crc32.Update(crc, crc32.IEEETable, e.Extra)
	}
	if e.Flags&FlagName != 0 {
		b, err := z.readString()
		if err != nil {
			return z.truncatedHeader(e, err)
		}
		crc = crc32.Update(crc, crc32.IEEETable, b)
		e.Name = decodeLatin1(b[:len(b)-1])
	}
	if e.Flags&FlagComment != 0 {
		b, err := z.readString()
		if err != nil {
			return z.truncatedHeader(e, err)
		}
		crc = crc32.Update(crc, crc32.IEEETable, b)
		e.Comment = decodeLatin1(b[:len(b)-1])
	}
	if e.Flags&FlagHeaderCRC != 0 {
		var b [2]byte
		if _, err := io.ReadFull(z.in, b[:]); err != nil {
			return z.truncatedHeader(e, err)
		}
		e.HeaderCRC16 = le.Uint16(b[:])
		if e.HeaderCRC16 != uint16(crc) {
			e.diag.AddError(diagnostics.InvalidExpected, "gzip header crc16",
				fmt.Sprintf("expected %#04x", e.HeaderCRC16), fmt.Sprintf("computed %#04x", uint16(crc)))
		}
	}

	z.entry = e
	z.entries++
	z.startOffset = e.StartOffset

	if e.Method != MethodDeflate {
		log.Debugf("gzip member at offset %d has unsupported compression method %d", e.StartOffset, e.Method)
		e.diag.AddError(diagnostics.InvalidExpected, "gzip compression method",
			fmt.Sprintf("expected %d", MethodDeflate), fmt.Sprintf("found %d", e.Method))
		z.resync = true
		z.finish(e)
		return e, nil
	}

	if z.decompressor == nil {
		z.decompressor = flate.NewReader(z.in)
	} else if err := z.decompressor.(flate.Resetter).Reset(z.in, nil); err != nil {
		return nil, err
	}
	return e, nil
}

func (z *Reader) truncatedHeader(e *Entry, err error) (*Entry, error) {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		z.diag.AddError(diagnostics.InvalidData, "gzip header",
			fmt.Sprintf("source ends inside header of member at offset %d", e.StartOffset))
		return nil, io.EOF
	}
	return nil, err
}

// readString reads a zero terminated string. The terminator is included in the result.
func (z *Reader) readString() ([]byte, error) {
	var b []byte
	for {
		c, err := z.in.ReadByte()
		if err != nil {
			return nil, err
		}
		b = append(b, c)
		if c == 0 {
			return b, nil
		}
	}
}

// inflate reads decompressed payload of e into p.
func (z *Reader) inflate(e *Entry, p []byte) (int, error) {
	n, err := z.decompressor.Read(p)
	if n > 0 {
		e.ComputedCRC32 = crc32.Update(e.ComputedCRC32, crc32.IEEETable, p[:n])
		e.UncompressedSize += int64(n)
	}
	switch {
	case err == nil:
		return n, nil
	case err == io.EOF:
		if err := z.readTrailer(e); err != nil {
			return n, err
		}
	case isDataError(err):
		log.Debugf("invalid deflate data in gzip member at offset %d: %v", e.StartOffset, err)
		e.diag.AddCause(diagnostics.InvalidData, "gzip deflate stream", err)
		z.resync = true
		z.finish(e)
	default:
		return n, err
	}
	if n > 0 {
		return n, nil
	}
	return 0, io.EOF
}

func isDataError(err error) bool {
	var ce flate.CorruptInputError
	return errors.As(err, &ce) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (z *Reader) readTrailer(e *Entry) error {
	var buf [trailerSize]byte
	n, err := z.in.ReadFully(buf[:])
	if n == 0 {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		e.diag.AddError(diagnostics.RequiredMissing, "gzip trailer",
			fmt.Sprintf("source ends before trailer of member at offset %d", e.StartOffset))
		_, _ = z.in.Skip(trailerSize)
		z.finish(e)
		return nil
	}

	e.CRC32 = le.Uint32(buf[0:4])
	e.ISize = le.Uint32(buf[4:8])
	z.finish(e)
	if e.CRC32 != e.ComputedCRC32 {
		e.diag.AddError(diagnostics.InvalidExpected, "gzip trailer crc32",
			fmt.Sprintf("expected %#08x", e.CRC32), fmt.Sprintf("computed %#08x", e.ComputedCRC32))
	}
	if e.ISize != e.ComputedISize {
		e.diag.AddError(diagnostics.InvalidExpected, "gzip trailer isize",
			fmt.Sprintf("expected %d", e.ISize), fmt.Sprintf("computed %d", e.ComputedISize))
	}
	return nil
}

func (z *Reader) finish(e *Entry) {
	e.done = true
	e.ComputedISize = uint32(e.UncompressedSize)
	e.Consumed = z.in.Consumed() - e.StartOffset
}

// StartOffset returns the offset of the current or last entry, or -1 if no entry was read.
func (z *Reader) StartOffset() int64 {
	return z.startOffset
}

// Offset returns the number of bytes consumed from the source.
func (z *Reader) Offset() int64 {
	if z.closed {
		return z.offset
	}
	return z.in.Consumed()
}

// Entries returns the number of entries read so far.
func (z *Reader) Entries() int {
	return z.entries
}

// Diagnostics returns problems found outside of any entry, like trailing garbage.
func (z *Reader) Diagnostics() *diagnostics.Diagnostics {
	return &z.diag
}

// IsCompliant reports whether neither the reader nor any closed entry has error diagnostics.
func (z *Reader) IsCompliant() bool {
	return !z.nonCompliant && !z.diag.HasErrors()
}

// Close closes the current entry. The source is not closed.
// Offsets remain available after Close. Closing a closed reader does nothing.
func (z *Reader) Close() error {
	if z.closed {
		return nil
	}
	var err error
	if z.entry != nil {
		err = z.entry.Close()
		z.entry = nil
	}
	if z.decompressor != nil {
		_ = z.decompressor.Close()
	}
	z.offset = z.in.Consumed()
	z.closed = true
	return err
}
