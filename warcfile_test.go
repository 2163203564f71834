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
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternNameGenerator(t *testing.T) {
	now = func() time.Time {
		return time.Date(2001, 9, 12, 5, 30, 20, 0, time.UTC)
	}
	defer func() { now = time.Now }()

	tests := []struct {
		name      string
		generator *PatternNameGenerator
		want      []string
		wantRegex string
	}{
		{
			"prefix and serial",
			&PatternNameGenerator{Prefix: "foo-", Directory: "dir", Pattern: "%{prefix}s%{ts}s-%04{serial}d.warc"},
			[]string{"foo-20010912053020-0001.warc", "foo-20010912053020-0002.warc"},
			"",
		},
		{
			"serial start",
			&PatternNameGenerator{Serial: 41, Pattern: "%{serial}d.warc"},
			[]string{"42.warc", "43.warc"},
			"",
		},
		{
			"default pattern",
			&PatternNameGenerator{Prefix: "foo-"},
			nil,
			`^foo-20010912053020-0001-(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}|unknown)\.warc$`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.want {
				dir, name := tt.generator.NewWarcfileName()
				assert.Equal(t, tt.generator.Directory, dir)
				assert.Equal(t, want, name)
			}
			if tt.wantRegex != "" {
				_, name := tt.generator.NewWarcfileName()
				assert.Regexp(t, regexp.MustCompile(tt.wantRegex), name)
			}
		})
	}
}

func TestFileWriter(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.warc")

	w, err := CreateFile(path, WithCompression(false))
	require.NoError(t, err)
	assert.Equal(path, w.Name())
	assert.FileExists(path + ".open")
	assert.NoFileExists(path)

	_, err = CreateFile(path, WithCompression(false))
	assert.ErrorIs(err, os.ErrExist, "file is already being written")

	info := &WarcFields{}
	info.Add("software", "warcio")
	info.Add("format", "WARC File Format 1.1")
	resp, err := w.WriteWarcinfo(info)
	require.NoError(t, err)
	assert.Equal(int64(0), resp.Offset)
	assert.True(resp.IsCompliant())

	rec := newTestRecord(0)
	require.NoError(t, w.WriteHeader(nil, rec.header, int64(len(rec.block))))
	_, err = w.WritePayload([]byte(rec.block))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.FileExists(path)
	assert.NoFileExists(path + ".open")

	r, err := NewFileReader(path, 0, WithBlockDigest(true))
	require.NoError(t, err)
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(Warcinfo, first.Type())
	assert.Equal("test.warc", first.WarcHeader().Get(WarcFilename))
	assert.Equal(ApplicationWarcFields, first.WarcHeader().Get(ContentType))
	content, err := io.ReadAll(first.Payload())
	require.NoError(t, err)
	assert.Equal("software: warcio\r\nformat: WARC File Format 1.1\r\n", string(content))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(resp.Size, second.StartOffset())
	assert.Equal(rec.header.Get(WarcRecordID), second.WarcHeader().Get(WarcRecordID))
	require.NoError(t, r.Close())
	assert.True(r.IsCompliant())

	// open at the second record
	r, err = NewFileReader(path, resp.Size)
	require.NoError(t, err)
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(resp.Size, got.StartOffset())
	assert.Equal(Response, got.Type())
	_, err = r.Next()
	assert.Equal(io.EOF, err)
	require.NoError(t, r.Close())
}

func TestCreateGeneratedFile(t *testing.T) {
	now = func() time.Time {
		return time.Date(2001, 9, 12, 5, 30, 20, 0, time.UTC)
	}
	defer func() { now = time.Now }()
	assert := assert.New(t)
	dir := t.TempDir()
	g := &PatternNameGenerator{Directory: dir, Prefix: "foo-", Pattern: "%{prefix}s%{ts}s-%04{serial}d.warc"}

	w, err := CreateGeneratedFile(g, WithOpenFileSuffix(".tmp"))
	require.NoError(t, err)
	want := filepath.Join(dir, "foo-20010912053020-0001.warc.gz")
	assert.Equal(want, w.Name())
	assert.FileExists(want + ".tmp")

	_, err = w.WriteWarcinfo(&WarcFields{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.FileExists(want)

	r, err := NewFileReader(want, 0)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.True(rec.IsCompressed())
	assert.Equal(int64(0), rec.ContentLength())
	require.NoError(t, r.Close())
	assert.True(r.IsCompliant())
}

func TestNewFileReaderInvalidArguments(t *testing.T) {
	_, err := NewFileReader("test.warc", -1)
	assert.ErrorIs(t, err, ErrInvalidUsage)
	_, err = NewFileReader(filepath.Join(t.TempDir(), "missing.warc"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
