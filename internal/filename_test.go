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


package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNamed(t *testing.T) {
	tests := []struct {
		name   string
		format string
		params map[string]any
		want   string
	}{
		{"simple", "Hello %{hello}s. The answer is %{num}d", map[string]any{"hello": "world", "num": 42}, "Hello world. The answer is 42"},
		{"repeated", "%{a}s-%{a}s", map[string]any{"a": "x"}, "x-x"},
		{"padded", "%{prefix}s%04{serial}d.warc", map[string]any{"prefix": "p-", "serial": 7}, "p-0007.warc"},
		{"unused param", "%{a}s", map[string]any{"a": "x", "b": "y"}, "x"},
		{"no params", "plain", nil, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNamed(tt.format, tt.params))
		})
	}
}

func TestHostFacts(t *testing.T) {
	assert.NotEmpty(t, OutboundIP())
	assert.NotEmpty(t, HostName())
}
