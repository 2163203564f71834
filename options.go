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
	"github.com/nlnwa/warcio/internal/diskbuffer"
	"github.com/nlnwa/warcio/pkg/countingreader"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/nlnwa/warcio/pkg/gzip"
)

type options struct {
	compress         bool
	compressionLevel int
	framing          Framing
	bufferSize       int
	blockDigest      bool
	payloadDigest    bool
	digestAlgorithm  string
	digestEncoding   DigestEncoding
	warcVersion      *WarcVersion
	openFileSuffix   string
	spoolOptions     []diskbuffer.Option
	err              error
}

// Option configures readers and writers of WARC records.
type Option interface {
	apply(*options)
}

// EmptyOption does not alter the configuration. It can be embedded in
// another structure to build custom options.
type EmptyOption struct{}

func (EmptyOption) apply(*options) {}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(po *options) {
	fo.f(po)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

func defaultOptions() options {
	return options{
		compress:         true,
		compressionLevel: gzip.DefaultCompression,
		framing:          FramingAuto,
		bufferSize:       countingreader.DefaultReadAheadSize,
		digestAlgorithm:  "sha1",
		digestEncoding:   Base32,
		warcVersion:      V1_1,
		openFileSuffix:   ".open",
	}
}

// newOptions creates a new configuration with the supplied options.
// The first invalid option value is returned as an error.
func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	return &o, o.err
}

func (o *options) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}

// WithCompression sets if writer should write compressed WARC files.
// defaults to true
func WithCompression(compress bool) Option {
	return newFuncOption(func(o *options) {
		o.compress = compress
	})
}

// WithCompressionLevel sets the deflate level for compressed WARC files, from gzip.HuffmanOnly to gzip.BestCompression.
// defaults to gzip.DefaultCompression
func WithCompressionLevel(level int) Option {
	return newFuncOption(func(o *options) {
		if level < gzip.HuffmanOnly || level > gzip.BestCompression {
			o.fail(diagnostics.Usagef("invalid compression level: %d", level))
			return
		}
		o.compressionLevel = level
	})
}

// WithFraming sets how a reader detects the framing of records.
// defaults to FramingAuto
func WithFraming(framing Framing) Option {
	return newFuncOption(func(o *options) {
		o.framing = framing
	})
}

// WithBufferSize sets the size of the read ahead buffer.
// defaults to 16 KiB
func WithBufferSize(size int) Option {
	return newFuncOption(func(o *options) {
		if size <= 0 {
			o.fail(diagnostics.Usagef("invalid buffer size: %d", size))
			return
		}
		o.bufferSize = size
	})
}

// WithBlockDigest enables computing and validating the WARC-Block-Digest.
// defaults to false
func WithBlockDigest(enabled bool) Option {
	return newFuncOption(func(o *options) {
		o.blockDigest = enabled
	})
}

// WithPayloadDigest enables computing and validating the WARC-Payload-Digest.
// defaults to false
func WithPayloadDigest(enabled bool) Option {
	return newFuncOption(func(o *options) {
		o.payloadDigest = enabled
	})
}

// WithDigestAlgorithm sets the algorithm used for digests that are not declared in the record header.
// defaults to sha1
func WithDigestAlgorithm(name string) Option {
	return newFuncOption(func(o *options) {
		if !IsSupportedDigestAlgorithm(name) {
			o.fail(diagnostics.Usagef("unsupported digest algorithm: %s", name))
			return
		}
		o.digestAlgorithm = normalizeAlgorithm(name)
	})
}

// WithDigestEncoding sets the encoding of computed digests.
// defaults to Base32
func WithDigestEncoding(encoding DigestEncoding) Option {
	return newFuncOption(func(o *options) {
		if encoding < Base16 || encoding > Base64 {
			o.fail(diagnostics.Usagef("invalid digest encoding: %d", encoding))
			return
		}
		o.digestEncoding = encoding
	})
}

// WithVersion sets the WARC version to use for new records
// defaults to WARC/1.1
func WithVersion(version *WarcVersion) Option {
	return newFuncOption(func(o *options) {
		if version == nil {
			o.fail(diagnostics.Usagef("warc version must not be nil"))
			return
		}
		o.warcVersion = version
	})
}

// WithSpoolMemory sets how many bytes of a record with a deferred header are kept in memory
// before spilling to a temporary file.
// defaults to 1 MiB
func WithSpoolMemory(size int64) Option {
	return newFuncOption(func(o *options) {
		o.spoolOptions = append(o.spoolOptions, diskbuffer.WithMaxMemBytes(size))
	})
}

// WithSpoolLimit sets the maximum size of a record with a deferred header. Writing past the
// limit fails with ErrMaxSizeExceeded.
// defaults to 0 (no limit)
func WithSpoolLimit(size int64) Option {
	return newFuncOption(func(o *options) {
		o.spoolOptions = append(o.spoolOptions, diskbuffer.WithMaxTotalBytes(size))
	})
}

// WithTmpDir sets the directory for temporary files.
// defaults to the OS default
func WithTmpDir(dir string) Option {
	return newFuncOption(func(o *options) {
		o.spoolOptions = append(o.spoolOptions, diskbuffer.WithTmpDir(dir))
	})
}

// WithOpenFileSuffix sets the suffix of WARC files while they are being written.
// defaults to ".open"
func WithOpenFileSuffix(suffix string) Option {
	return newFuncOption(func(o *options) {
		o.openFileSuffix = suffix
	})
}
