/*
 * Copyright 2020 National Library of Norway.
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

package diskbuffer

// options holds the limits of a Buffer.
type options struct {
	maxMemBytes       int64
	maxTotalBytes     int64
	memBufferSizeHint int64
	tmpDir            string
}

// Option configures a Buffer.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func defaultOptions() options {
	return options{
		maxMemBytes:       1 << 20,
		memBufferSizeHint: 16 << 10,
	}
}

// WithMaxMemBytes sets how many bytes are kept in memory before the rest is written
// to a temporary file.
func WithMaxMemBytes(size int64) Option {
	return optionFunc(func(o *options) { o.maxMemBytes = size })
}

// WithMaxTotalBytes limits the size of the Buffer. Zero means no limit.
func WithMaxTotalBytes(size int64) Option {
	return optionFunc(func(o *options) { o.maxTotalBytes = size })
}

// WithTmpDir sets the directory for the temporary file. The OS default is used if empty.
func WithTmpDir(dir string) Option {
	return optionFunc(func(o *options) { o.tmpDir = dir })
}
