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
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// WARC header field name constants
	ContentLength             = "Content-Length"
	ContentType               = "Content-Type"
	WarcBlockDigest           = "WARC-Block-Digest"
	WarcConcurrentTo          = "WARC-Concurrent-To"
	WarcDate                  = "WARC-Date"
	WarcFilename              = "WARC-Filename"
	WarcIPAddress             = "WARC-IP-Address"
	WarcIdentifiedPayloadType = "WARC-Identified-Payload-Type"
	WarcPayloadDigest         = "WARC-Payload-Digest"
	WarcProfile               = "WARC-Profile"
	WarcRecordID              = "WARC-Record-ID"
	WarcRefersTo              = "WARC-Refers-To"
	WarcRefersToDate          = "WARC-Refers-To-Date"
	WarcRefersToTargetURI     = "WARC-Refers-To-Target-URI"
	WarcSegmentNumber         = "WARC-Segment-Number"
	WarcSegmentOriginID       = "WARC-Segment-Origin-ID"
	WarcSegmentTotalLength    = "WARC-Segment-Total-Length"
	WarcTargetURI             = "WARC-Target-URI"
	WarcTruncated             = "WARC-Truncated"
	WarcType                  = "WARC-Type"
	WarcWarcinfoID            = "WARC-Warcinfo-ID"
)

// fieldNames maps lower case field names to the canonical form.
var fieldNames = make(map[string]string)

func init() {
	for _, n := range []string{ContentLength, ContentType, WarcBlockDigest, WarcConcurrentTo, WarcDate,
		WarcFilename, WarcIPAddress, WarcIdentifiedPayloadType, WarcPayloadDigest, WarcProfile, WarcRecordID,
		WarcRefersTo, WarcRefersToDate, WarcRefersToTargetURI, WarcSegmentNumber, WarcSegmentOriginID,
		WarcSegmentTotalLength, WarcTargetURI, WarcTruncated, WarcType, WarcWarcinfoID} {
		fieldNames[strings.ToLower(n)] = n
	}
}

// CanonicalFieldName returns the canonical spelling of a known WARC field name.
// Unknown names are returned unchanged.
func CanonicalFieldName(name string) string {
	if n, ok := fieldNames[strings.ToLower(name)]; ok {
		return n
	}
	return name
}

// NewRecordHeader returns header fields for a new record of type rt with a fresh
// WARC-Record-ID and the current time as WARC-Date.
func NewRecordHeader(rt RecordType) *WarcFields {
	wf := &WarcFields{}
	wf.Add(WarcType, rt.String())
	wf.AddId(WarcRecordID, fmt.Sprintf("urn:uuid:%s", uuid.New()))
	wf.AddTime(WarcDate, time.Now())
	return wf
}

// isHttpBlock reports whether the content block of a record starts with an HTTP header.
func isHttpBlock(wf *WarcFields, rt RecordType) bool {
	if rt&(Response|Resource|Request|Conversion) == 0 {
		return false
	}
	return strings.HasPrefix(strings.ToLower(wf.Get(ContentType)), ApplicationHttp)
}
