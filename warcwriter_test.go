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
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const httpResponseBlock = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 19\r\n" +
	"\r\n" +
	"This is the content"

type testRecord struct {
	header *WarcFields
	block  string
}

// newTestRecord returns a record with a fixed id and date, cycling through a few record types.
func newTestRecord(n int) testRecord {
	wf := &WarcFields{}
	wf.AddId(WarcRecordID, fmt.Sprintf("urn:uuid:e9a0cecc-0221-11e7-adb1-%012d", n))
	wf.Add(WarcDate, "2017-03-06T04:03:53Z")
	switch n % 3 {
	case 0:
		wf.Add(WarcType, Response.String())
		wf.Add(WarcTargetURI, fmt.Sprintf("http://example.com/%d", n))
		wf.Add(ContentType, "application/http;msgtype=response")
		return testRecord{wf, httpResponseBlock}
	case 1:
		wf.Add(WarcType, Resource.String())
		wf.Add(WarcTargetURI, fmt.Sprintf("file:///tmp/%d.txt", n))
		wf.Add(ContentType, "text/plain")
		return testRecord{wf, strings.Repeat(fmt.Sprintf("line %d\n", n), n%50)}
	default:
		wf.Add(WarcType, Metadata.String())
		wf.Add(ContentType, ApplicationWarcFields)
		return testRecord{wf, fmt.Sprintf("via: http://example.com/%d\r\n", n-1)}
	}
}

// writeTestRecords writes count records with unknown lengths and returns the output and write responses.
func writeTestRecords(t *testing.T, count int, opts ...Option) ([]byte, []*WriteResponse) {
	t.Helper()
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, opts...)
	require.NoError(t, err)

	var responses []*WriteResponse
	for i := 0; i < count; i++ {
		rec := newTestRecord(i)
		require.NoError(t, w.WriteHeader(nil, rec.header, UnknownLength))
		_, err := w.WritePayload([]byte(rec.block))
		require.NoError(t, err)
		require.NoError(t, w.CloseRecord())
		resp := w.Response()
		require.True(t, resp.IsCompliant(), resp.Diagnostics().String())
		responses = append(responses, resp)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), responses
}

func TestWriterStateErrors(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, WithCompression(false))
	require.NoError(t, err)

	err = w.CloseRecord()
	assert.ErrorIs(err, ErrNothingToClose)
	assert.ErrorIs(err, ErrInvalidUsage)

	_, err = w.WritePayload([]byte("data"))
	assert.ErrorIs(err, ErrHeaderRequired)
	_, err = w.StreamPayload(strings.NewReader("data"))
	assert.ErrorIs(err, ErrHeaderRequired)

	rec := newTestRecord(1)
	require.NoError(t, w.WriteHeader(nil, rec.header, 4))
	assert.ErrorIs(w.WriteHeader(nil, rec.header, 4), ErrBackToBackHeaders)

	_, err = w.WritePayload([]byte("data"))
	assert.NoError(err)
	assert.NoError(w.CloseRecord())
	assert.NoError(w.CloseRecord(), "closing a closed record does nothing")
	assert.Equal(1, w.RecordCount())

	_, err = w.WritePayload([]byte("data"))
	assert.ErrorIs(err, ErrHeaderRequired)

	assert.ErrorIs(w.WriteHeader(nil, nil, 4), ErrInvalidUsage)
	assert.ErrorIs(w.WriteHeader(nil, rec.header, -2), ErrInvalidUsage)

	assert.NoError(w.Close())
	assert.NoError(w.Close())
	assert.ErrorIs(w.WriteHeader(nil, rec.header, 4), ErrIllegalState)
	_, err = w.WritePayload([]byte("data"))
	assert.ErrorIs(err, ErrIllegalState)

	// the failed calls left the written record intact
	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	got, err := r.Next()
	require.NoError(t, err)
	content, err := io.ReadAll(got.Payload())
	require.NoError(t, err)
	assert.Equal("data", string(content))
	_, err = r.Next()
	assert.Equal(io.EOF, err)
	assert.True(r.IsCompliant())
}

func TestWriterInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"compression level", WithCompressionLevel(42)},
		{"buffer size", WithBufferSize(0)},
		{"digest algorithm", WithDigestAlgorithm("crc64")},
		{"digest encoding", WithDigestEncoding(unknown)},
		{"nil version", WithVersion(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(&bytes.Buffer{}, tt.opt)
			assert.ErrorIs(t, err, ErrInvalidUsage)
		})
	}

	_, err := NewWriter(nil)
	assert.ErrorIs(t, err, ErrInvalidUsage)
}

func TestWriterExactOutput(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, WithCompression(false))
	require.NoError(t, err)

	wf := &WarcFields{}
	wf.Add("warc-type", "resource")
	wf.Add(WarcRecordID, "<urn:uuid:e9a0cecc-0221-11e7-adb1-0242ac120008>")
	wf.Add("X-Custom", "value  with   spaces")

	require.NoError(t, w.WriteHeader(V1_0, wf, 5))
	n, err := w.WritePayload([]byte("hel"))
	assert.NoError(err)
	assert.Equal(3, n)
	m, err := w.StreamPayload(strings.NewReader("lo"))
	assert.NoError(err)
	assert.Equal(int64(2), m)
	require.NoError(t, w.CloseRecord())
	require.NoError(t, w.Flush())

	want := "WARC/1.0\r\n" +
		"warc-type: resource\r\n" +
		"WARC-Record-ID: <urn:uuid:e9a0cecc-0221-11e7-adb1-0242ac120008>\r\n" +
		"X-Custom: value  with   spaces\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello\r\n\r\n"
	assert.Equal(want, buf.String())

	resp := w.Response()
	assert.Equal("<urn:uuid:e9a0cecc-0221-11e7-adb1-0242ac120008>", resp.RecordID)
	assert.Equal(int64(0), resp.Offset)
	assert.Equal(int64(len(want)), resp.Size)
	assert.Equal(int64(5), resp.ContentLength)
	assert.Equal(int64(len(want)), w.Offset())
	assert.True(w.IsCompliant())

	assert.Len(*wf, 3, "fields given to WriteHeader are not modified")
}

func TestWriterDeferredHeader(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, WithCompression(false), WithBlockDigest(true))
	require.NoError(t, err)

	wf := &WarcFields{}
	wf.Add(WarcType, "resource")
	wf.Add(ContentType, "text/plain")

	require.NoError(t, w.WriteHeader(nil, wf, UnknownLength))
	_, err = w.WritePayload([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(0, buf.Len(), "header is held back until the record is closed")

	require.NoError(t, w.CloseRecord())
	require.NoError(t, w.Flush())

	want := "WARC/1.1\r\n" +
		"WARC-Type: resource\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 5\r\n" +
		"WARC-Block-Digest: sha1:VL2MMHO4YXUKFWV63YHTWSBM3GXKSQ2N\r\n" +
		"\r\n" +
		"hello\r\n\r\n"
	assert.Equal(want, buf.String())

	resp := w.Response()
	assert.Equal("sha1:VL2MMHO4YXUKFWV63YHTWSBM3GXKSQ2N", resp.BlockDigest)
	assert.Equal("", resp.PayloadDigest)
	assert.Equal(int64(5), resp.ContentLength)
	assert.True(resp.IsCompliant())
}

func TestWriterSpoolsToDisk(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, WithCompression(false), WithSpoolMemory(16), WithTmpDir(t.TempDir()))
	require.NoError(t, err)

	block := strings.Repeat("0123456789", 1000)
	rec := newTestRecord(1)
	require.NoError(t, w.WriteHeader(nil, rec.header, UnknownLength))
	_, err = w.StreamPayload(strings.NewReader(block))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(int64(len(block)), got.ContentLength())
	content, err := io.ReadAll(got.Payload())
	assert.NoError(err)
	assert.Equal(block, string(content))
	assert.NoError(r.Close())
	assert.True(r.IsCompliant())
}

func TestWriterSpoolLimit(t *testing.T) {
	w, err := NewWriter(&bytes.Buffer{}, WithCompression(false), WithSpoolMemory(4), WithSpoolLimit(8), WithTmpDir(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, w.WriteHeader(nil, newTestRecord(1).header, UnknownLength))
	n, err := w.WritePayload([]byte("0123456789"))
	var exceeded ErrMaxSizeExceeded
	assert.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 8, n)
}

func TestWriterLengthMismatch(t *testing.T) {
	tests := []struct {
		name     string
		declared int64
		payload  string
	}{
		{"too short", 10, "hello"},
		{"too long", 2, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			w, err := NewWriter(&bytes.Buffer{})
			require.NoError(t, err)

			rec := newTestRecord(1)
			require.NoError(t, w.WriteHeader(nil, rec.header, tt.declared))
			_, err = w.WritePayload([]byte(tt.payload))
			require.NoError(t, err)
			require.NoError(t, w.CloseRecord())

			resp := w.Response()
			assert.False(resp.IsCompliant())
			require.Len(t, resp.Diagnostics().Errors(), 1)
			assert.Equal(diagnostics.InvalidExpected, resp.Diagnostics().Errors()[0].Type)
			assert.Equal(ContentLength, resp.Diagnostics().Errors()[0].Entity)
			assert.False(w.IsCompliant())
		})
	}
}

func TestWriterValidatesDeclaredDigest(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, WithCompression(false), WithBlockDigest(true))
	require.NoError(t, err)

	wf := &WarcFields{}
	wf.Add(WarcType, "resource")
	wf.Add(WarcBlockDigest, "sha1:T4NG5T3U5H43DLSS5DVVQHKCBZR6QRJ2")

	// declared length and digest, so the header is written at once
	require.NoError(t, w.WriteHeader(nil, wf, 5))
	require.NoError(t, w.Flush())
	assert.True(strings.HasPrefix(buf.String(), "WARC/1.1\r\n"))

	_, err = w.WritePayload([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.CloseRecord())

	resp := w.Response()
	require.Len(t, resp.Diagnostics().Errors(), 1)
	d := resp.Diagnostics().Errors()[0]
	assert.Equal(WarcBlockDigest, d.Entity)
	assert.Contains(d.Error(), "computed: sha1:VL2MMHO4YXUKFWV63YHTWSBM3GXKSQ2N")
}

func TestWriterHeaderClosesPreviousRecord(t *testing.T) {
	assert := assert.New(t)
	w, err := NewWriter(&bytes.Buffer{}, WithCompression(false))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := newTestRecord(i)
		require.NoError(t, w.WriteHeader(nil, rec.header, int64(len(rec.block))))
		_, err = w.WritePayload([]byte(rec.block))
		require.NoError(t, err)
	}
	assert.Equal(2, w.RecordCount())
	assert.NoError(w.Close())
	assert.Equal(3, w.RecordCount())
	assert.True(w.IsCompliant())
}

func TestWriterCompressedMembers(t *testing.T) {
	assert := assert.New(t)
	data, responses := writeTestRecords(t, 10, WithBlockDigest(true), WithPayloadDigest(true))

	var offset int64
	for _, resp := range responses {
		assert.Equal(offset, resp.Offset)
		assert.Equal([]byte{0x1f, 0x8b}, data[resp.Offset:resp.Offset+2])
		assert.NotEmpty(resp.BlockDigest)
		assert.NotEmpty(resp.PayloadDigest)
		offset += resp.Size
	}
	assert.Equal(int64(len(data)), offset)
	assert.Equal("sha1:YN77WIQVNHCVHISHNQRMPWWUFHZUSKLX", responses[0].PayloadDigest)
}

// Records copied from one file to another are byte identical to the records of the source once decompressed.
func TestRecompressionIsByteExact(t *testing.T) {
	tests := []struct {
		name     string
		from, to bool
	}{
		{"gzip to raw", true, false},
		{"raw to gzip", false, true},
		{"raw to raw", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			src, _ := writeTestRecords(t, 25, WithCompression(tt.from), WithBlockDigest(true), WithPayloadDigest(true))
			want, _ := writeTestRecords(t, 25, WithCompression(false), WithBlockDigest(true), WithPayloadDigest(true))

			r, err := NewReader(bytes.NewReader(src), WithBlockDigest(true), WithPayloadDigest(true))
			require.NoError(t, err)
			buf := &bytes.Buffer{}
			w, err := NewWriter(buf, WithCompression(tt.to), WithBlockDigest(true), WithPayloadDigest(true))
			require.NoError(t, err)

			for {
				rec, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				require.NoError(t, w.WriteHeader(rec.Version(), rec.WarcHeader(), rec.ContentLength()))
				_, err = w.StreamPayload(rec.Payload())
				require.NoError(t, err)
				require.NoError(t, w.CloseRecord())
				assert.True(w.Response().IsCompliant(), w.Response().Diagnostics().String())
			}
			require.NoError(t, r.Close())
			require.NoError(t, w.Close())

			assert.True(r.IsCompliant())
			got := buf.Bytes()
			if tt.to {
				// member headers carry a timestamp, so compare the decompressed stream
				zr, err := kgzip.NewReader(buf)
				require.NoError(t, err)
				got, err = io.ReadAll(zr)
				require.NoError(t, err)
			}
			assert.Equal(string(want), string(got))
		})
	}
}
