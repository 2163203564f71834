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
	"strconv"
	"strings"

	"github.com/nlnwa/warcio/pkg/diagnostics"
)

const (
	sphtcrlf = " \t\r\n"  // Space, Tab, Carriage return, Newline
	cr       = '\r'       // Carriage return
	lf       = '\n'       // Newline
	sp       = ' '        // Space
	ht       = '\t'       // Tab
	crlf     = "\r\n"     // Carriage return, Newline
	crlfcrlf = "\r\n\r\n" // Carriage return, Newline, Carriage return, Newline

	versionPrefix = "WARC/"
)

type WarcVersion struct {
	id    uint8
	txt   string
	major uint8
	minor uint8
}

func (v *WarcVersion) String() string {
	return versionPrefix + v.txt
}

func (v *WarcVersion) Major() uint8 {
	return v.major
}

func (v *WarcVersion) Minor() uint8 {
	return v.minor
}

// IsKnown reports whether v is one of the versions defined by this package.
func (v *WarcVersion) IsKnown() bool {
	return v.id != 0
}

var (
	// WARC versions
	V1_0 = &WarcVersion{id: 1, txt: "1.0", major: 1, minor: 0} // WARC 1.0
	V1_1 = &WarcVersion{id: 2, txt: "1.1", major: 1, minor: 1} // WARC 1.1
)

// parseVersion parses a version line like "WARC/1.1".
// Unknown but well formed versions give a warning, anything else an error.
func parseVersion(line string, d *diagnostics.Diagnostics) *WarcVersion {
	line = strings.TrimRight(line, sphtcrlf)
	switch line {
	case V1_0.String():
		return V1_0
	case V1_1.String():
		return V1_1
	}

	txt := strings.TrimPrefix(line, versionPrefix)
	v := &WarcVersion{txt: txt}
	majorMinor := strings.SplitN(txt, ".", 2)
	if len(majorMinor) == 2 {
		major, err1 := strconv.ParseUint(majorMinor[0], 10, 8)
		minor, err2 := strconv.ParseUint(majorMinor[1], 10, 8)
		if err1 == nil && err2 == nil {
			v.major = uint8(major)
			v.minor = uint8(minor)
			d.AddWarning(diagnostics.Unknown, "version", line)
			return v
		}
	}
	d.AddError(diagnostics.Invalid, "version", line)
	return v
}

type RecordType uint16

func (rt RecordType) String() string {
	switch rt {
	case Warcinfo:
		return "warcinfo"
	case Response:
		return "response"
	case Resource:
		return "resource"
	case Request:
		return "request"
	case Metadata:
		return "metadata"
	case Revisit:
		return "revisit"
	case Conversion:
		return "conversion"
	case Continuation:
		return "continuation"
	default:
		return "unknown"
	}
}

func stringToRecordType(rt string) RecordType {
	switch strings.ToLower(strings.TrimSpace(rt)) {
	case "warcinfo":
		return Warcinfo
	case "response":
		return Response
	case "resource":
		return Resource
	case "request":
		return Request
	case "metadata":
		return Metadata
	case "revisit":
		return Revisit
	case "conversion":
		return Conversion
	case "continuation":
		return Continuation
	default:
		return 0
	}
}

const (
	// WARC record types
	Warcinfo     RecordType = 1
	Response     RecordType = 2
	Resource     RecordType = 4
	Request      RecordType = 8
	Metadata     RecordType = 16
	Revisit      RecordType = 32
	Conversion   RecordType = 64
	Continuation RecordType = 128
)

const (
	// Well known content types
	ApplicationWarcFields = "application/warc-fields"
	ApplicationHttp       = "application/http"
)
