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

// Package gzip reads and writes multi-member gzip streams (RFC 1952) one member at a time.
//
// Each member is exposed as an Entry with its header fields, trailer values, start offset
// and exact length on disk. Unlike compress/gzip the member boundaries are never merged:
// the Reader stops after each trailer, leaving the source positioned at the first byte of
// the next member. Problems in the data are recorded as diagnostics on the entry or the
// reader instead of aborting iteration.
package gzip

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/encoding/charmap"
)

const (
	// Magic is the two identification bytes of a gzip member, read as a big endian number.
	Magic uint16 = 0x1f8b

	magic1 byte = 0x1f
	magic2 byte = 0x8b

	// MethodDeflate is the only compression method defined by RFC 1952.
	MethodDeflate uint8 = 8
)

// Header flags
const (
	FlagText      uint8 = 1 << 0
	FlagHeaderCRC uint8 = 1 << 1
	FlagExtra     uint8 = 1 << 2
	FlagName      uint8 = 1 << 3
	FlagComment   uint8 = 1 << 4
	flagReserved  uint8 = 0xe0
)

// Operating system ids
const (
	OSFAT     uint8 = 0
	OSUnix    uint8 = 3
	OSNTFS    uint8 = 11
	OSUnknown uint8 = 255
)

// Compression levels accepted by Writer.SetCompressionLevel.
const (
	HuffmanOnly        = flate.HuffmanOnly
	DefaultCompression = flate.DefaultCompression
	NoCompression      = flate.NoCompression
	BestSpeed          = flate.BestSpeed
	BestCompression    = flate.BestCompression
)

const (
	fixedHeaderSize = 10
	trailerSize     = 8
	readerPushback  = 16
)

var le = binary.LittleEndian

// Header is the header of a gzip member.
type Header struct {
	Magic       uint16 // 0x1f8b for a valid member
	Method      uint8  // compression method, 8 for deflate
	Flags       uint8
	MTime       uint32 // modification time in seconds since the epoch, 0 if unknown
	XFL         uint8  // extra flags, set by the compressor
	OS          uint8
	Extra       []byte
	Name        string // decoded from ISO 8859-1
	Comment     string // decoded from ISO 8859-1
	HeaderCRC16 uint16 // valid when FlagHeaderCRC is set
}

// NewHeader returns a header for a deflate member stamped with the current time.
func NewHeader() Header {
	return Header{
		Magic:  Magic,
		Method: MethodDeflate,
		MTime:  uint32(time.Now().Unix()),
		OS:     OSUnknown,
	}
}

// ModTime returns MTime as a time.Time. The zero time is returned when MTime is not set.
func (h *Header) ModTime() time.Time {
	if h.MTime == 0 {
		return time.Time{}
	}
	return time.Unix(int64(h.MTime), 0)
}

// HasReservedFlags reports whether any of the reserved flag bits are set.
func (h *Header) HasReservedFlags() bool {
	return h.Flags&flagReserved != 0
}

// marshal encodes h. Flags for present optional fields are added to the flags of h.
func (h *Header) marshal() ([]byte, uint8, error) {
	flags := h.Flags
	if h.Extra != nil {
		flags |= FlagExtra
	}
	if h.Name != "" {
		flags |= FlagName
	}
	if h.Comment != "" {
		flags |= FlagComment
	}

	buf := make([]byte, fixedHeaderSize, fixedHeaderSize+len(h.Extra)+len(h.Name)+len(h.Comment)+6)
	buf[0] = magic1
	buf[1] = magic2
	buf[2] = MethodDeflate
	buf[3] = flags
	le.PutUint32(buf[4:8], h.MTime)
	buf[8] = h.XFL
	buf[9] = h.OS

	if flags&FlagExtra != 0 {
		if len(h.Extra) > 0xffff {
			return nil, 0, errExtraTooLong
		}
		buf = le.AppendUint16(buf, uint16(len(h.Extra)))
		buf = append(buf, h.Extra...)
	}
	if flags&FlagName != 0 {
		s, err := encodeLatin1(h.Name)
		if err != nil {
			return nil, 0, err
		}
		buf = append(append(buf, s...), 0)
	}
	if flags&FlagComment != 0 {
		s, err := encodeLatin1(h.Comment)
		if err != nil {
			return nil, 0, err
		}
		buf = append(append(buf, s...), 0)
	}
	if flags&FlagHeaderCRC != 0 {
		buf = le.AppendUint16(buf, uint16(crc32.ChecksumIEEE(buf)))
	}
	return buf, flags, nil
}

func encodeLatin1(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return nil, errNotLatin1
	}
	for i := 0; i < len(b); i++ {
		if b[i] == 0 {
			return nil, errNulInString
		}
	}
	return []byte(b), nil
}

func decodeLatin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
