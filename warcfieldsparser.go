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
	"bytes"
	"io"
	"mime"

	"github.com/nlnwa/warcio/pkg/countingreader"
	"github.com/nlnwa/warcio/pkg/diagnostics"
)

var colon = []byte{':'}

const headerEntity = "header"

type warcfieldsParser struct{}

func (p *warcfieldsParser) parseLine(line []byte, wf *WarcFields, d *diagnostics.Diagnostics, pos *position) {
	line = bytes.TrimRight(line, sphtcrlf)

	// Support for ‘encoded-word’ mechanism of [RFC2047]
	dec := mime.WordDecoder{}
	l, err := dec.DecodeHeader(string(line))
	if err != nil {
		d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Warning, Type: diagnostics.InvalidEncoding, Entity: headerEntity,
			Cause: newWrappedSyntaxError("error decoding line", pos, err)})
	} else {
		line = []byte(l)
	}

	fv := bytes.SplitN(line, colon, 2)
	if len(fv) != 2 {
		d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Error, Type: diagnostics.Invalid, Entity: headerEntity,
			Cause: newSyntaxError("could not parse header line. Missing ':' in "+string(fv[0]), pos)})
		return
	}

	name := string(bytes.Trim(fv[0], sphtcrlf))
	value := string(bytes.Trim(fv[1], sphtcrlf))

	wf.Add(name, value)
}

// readLine reads the next raw line from r, warning about a missing carriage return.
// A line is returned together with io.EOF if the source ends before the line terminator.
func (p *warcfieldsParser) readLine(r *countingreader.PushbackReader, d *diagnostics.Diagnostics, pos *position) ([]byte, error) {
	l, err := r.ReadRawLine()
	if err != nil {
		return l, err
	}
	if len(l) < 2 || l[len(l)-2] != cr {
		d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Warning, Type: diagnostics.InvalidData, Entity: headerEntity,
			Cause: newSyntaxError("missing carriage return", pos)})
	}
	return l, nil
}

func isBlankLine(l []byte) bool {
	return string(l) == crlf || (len(l) == 1 && l[0] == lf)
}

// nextChar returns the next byte without consuming it.
func nextChar(r *countingreader.PushbackReader) (byte, error) {
	var b [1]byte
	_, err := r.Peek(b[:])
	return b[0], err
}

// Parse parses header fields up to and including the empty line terminating them.
//
// Problems with the syntax are added to d. The returned bool is false if the source
// ended before the empty line. An error is only returned if reading from r fails.
func (p *warcfieldsParser) Parse(r *countingreader.PushbackReader, d *diagnostics.Diagnostics, pos *position) (*WarcFields, bool, error) {
	wf := WarcFields{}

	for {
		line, err := p.readLine(r, d, pos.incrLineNumber())
		if err != nil && err != io.EOF {
			return nil, false, err
		}
		if err == nil && isBlankLine(line) {
			return &wf, true, nil
		}
		if len(bytes.Trim(line, sphtcrlf)) > 0 || err == nil {
			// Check for continuation
			for err == nil {
				nc, e := nextChar(r)
				if e != nil || (nc != sp && nc != ht) {
					break
				}
				var l []byte
				l, err = p.readLine(r, d, pos.incrLineNumber())
				if err != nil && err != io.EOF {
					return nil, false, err
				}
				line = append(bytes.TrimRight(line, sphtcrlf), ' ')
				line = append(line, bytes.Trim(l, sphtcrlf)...)
			}
			p.parseLine(line, &wf, d, pos)
		}
		if err == io.EOF {
			d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Error, Type: diagnostics.RequiredMissing, Entity: headerEntity,
				Cause: newSyntaxError("missing End of WARC-Fields marker", pos)})
			return &wf, false, nil
		}
	}
}
