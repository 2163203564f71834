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

package ls

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nlnwa/warcio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.warc")
	w, err := warcio.CreateFile(path, warcio.WithCompression(false))
	require.NoError(t, err)
	var ids []string
	for _, uri := range []string{"http://example.com/a", "http://example.com/b"} {
		header := warcio.NewRecordHeader(warcio.Resource)
		header.Add(warcio.WarcTargetURI, uri)
		ids = append(ids, header.GetId(warcio.WarcRecordID))
		require.NoError(t, w.WriteHeader(nil, header, 2))
		_, err := w.WritePayload([]byte("ok"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	tests := []struct {
		name string
		conf *conf
		want []string
	}{
		{"all", &conf{}, []string{"http://example.com/a", "http://example.com/b"}},
		{"count", &conf{recordCount: 1}, []string{"http://example.com/a"}},
		{"id", &conf{id: []string{ids[1]}}, []string{"http://example.com/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			tt.conf.fileName = path
			require.NoError(t, runE(tt.conf, out))

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, want := range tt.want {
				assert.True(t, strings.HasSuffix(lines[i], "resource  "+want), lines[i])
			}
		})
	}
}
