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
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"sync"

	"github.com/nlnwa/warcio/pkg/diagnostics"
)

// DigestEncoding is the encoding of a digest value in a WARC header.
type DigestEncoding uint8

const (
	unknown DigestEncoding = 0
	Base16  DigestEncoding = 1
	Base32  DigestEncoding = 2
	Base64  DigestEncoding = 3
)

func (d DigestEncoding) String() string {
	switch d {
	case Base16:
		return "base16"
	case Base32:
		return "base32"
	case Base64:
		return "base64"
	default:
		return "unknown"
	}
}

func (d DigestEncoding) encode(sum []byte) string {
	switch d {
	case Base16:
		return hex.EncodeToString(sum)
	case Base32:
		return base32.StdEncoding.EncodeToString(sum)
	case Base64:
		return base64.StdEncoding.EncodeToString(sum)
	default:
		return string(sum)
	}
}

// equal compares encoded digests. Base16 and Base32 are case insensitive.
func (d DigestEncoding) equal(a, b string) bool {
	switch d {
	case Base16, Base32:
		return strings.EqualFold(a, b)
	default:
		return a == b
	}
}

// DigestKind selects the block or the payload digest.
type DigestKind uint8

const (
	DigestBlock DigestKind = iota
	DigestPayload
)

func (k DigestKind) String() string {
	if k == DigestPayload {
		return "payload"
	}
	return "block"
}

func (k DigestKind) field() string {
	if k == DigestPayload {
		return WarcPayloadDigest
	}
	return WarcBlockDigest
}

var (
	algorithmsMu sync.RWMutex
	algorithms   = map[string]func() hash.Hash{
		"md5":    md5.New,
		"sha1":   sha1.New,
		"sha256": sha256.New,
		"sha512": sha512.New,
	}
)

// RegisterDigestAlgorithm makes a digest algorithm available under the given name.
// Names are matched case insensitively and without dashes, so "SHA-1" and "sha1" are equal.
func RegisterDigestAlgorithm(name string, newHash func() hash.Hash) {
	algorithmsMu.Lock()
	defer algorithmsMu.Unlock()
	algorithms[normalizeAlgorithm(name)] = newHash
}

func normalizeAlgorithm(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "")
}

func lookupAlgorithm(name string) (func() hash.Hash, bool) {
	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()
	f, ok := algorithms[name]
	return f, ok
}

// IsSupportedDigestAlgorithm reports whether a digest algorithm with the given name is registered.
func IsSupportedDigestAlgorithm(name string) bool {
	_, ok := lookupAlgorithm(normalizeAlgorithm(name))
	return ok
}

func detectEncoding(algorithm, digest string, defaultEncoding DigestEncoding) DigestEncoding {
	var size int
	if newHash, ok := lookupAlgorithm(algorithm); ok {
		size = newHash().Size()
	}
	if algorithm == "md5" && len(digest) == 32 {
		// Special handling for md5 where encoded length are the same for base16 and base32.
		// Distinction can be done on base32 padding
		if strings.HasSuffix(digest, "=") {
			return Base32
		} else {
			return Base16
		}
	}
	switch len(digest) {
	case size * 2:
		return Base16
	case base32.StdEncoding.EncodedLen(size):
		return Base32
	case base64.StdEncoding.EncodedLen(size):
		return Base64
	}
	return defaultEncoding
}

// Digest is the value of a digest header field, "algorithm:value".
type Digest struct {
	Algorithm string
	Value     string
}

// ParseDigest parses a digest header field value. The algorithm is normalized to lower case without dashes.
func ParseDigest(s string) (*Digest, error) {
	t := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(t) != 2 || t[0] == "" {
		return nil, fmt.Errorf("invalid digest '%s'", s)
	}
	return &Digest{Algorithm: normalizeAlgorithm(t[0]), Value: strings.TrimSpace(t[1])}, nil
}

func (d *Digest) String() string {
	return d.Algorithm + ":" + d.Value
}

type digest struct {
	hash.Hash
	name     string
	hash     string
	count    int64
	encoding DigestEncoding
}

// Write (via the embedded io.Writer interface) adds more data to the running hash.
// It never returns an error.
func (d *digest) Write(p []byte) (n int, err error) {
	d.count += int64(len(p))
	return d.Hash.Write(p)
}

func (d *digest) format() string {
	return fmt.Sprintf("%s:%s", d.name, d.encoding.encode(d.Sum(nil)))
}

func (d *digest) validate() error {
	computed := d.encoding.encode(d.Sum(nil))
	if !d.encoding.equal(d.hash, computed) {
		return fmt.Errorf("wrong digest: expected %s:%s, computed: %s:%s", d.name, d.hash, d.name, computed)
	}
	return nil
}

// newDigest creates a running digest from "algorithm" or "algorithm:value".
// The encoding is detected from the value, falling back to defaultEncoding.
func newDigest(digestString string, defaultEncoding DigestEncoding) (*digest, error) {
	t := strings.SplitN(digestString, ":", 2)
	algorithm := normalizeAlgorithm(t[0])
	if algorithm == "" {
		algorithm = "sha1"
	}
	var hash string
	if len(t) > 1 {
		hash = strings.TrimSpace(t[1])
	}
	newHash, ok := lookupAlgorithm(algorithm)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnsupportedDigest, algorithm)
	}
	return &digest{Hash: newHash(), name: algorithm, hash: hash, encoding: detectEncoding(algorithm, hash, defaultEncoding)}, nil
}

// digestAccumulator computes block and payload digests in one pass over the content block.
//
// When the block starts with a protocol header, like for HTTP responses, the payload
// digest only covers the bytes after the empty line ending that header.
type digestAccumulator struct {
	block           *digest
	payload         *digest
	blockDeclared   bool
	payloadDeclared bool
	skipHeader      bool
	headerEnded     bool
	state           uint8
}

func (a *digestAccumulator) Write(p []byte) (int, error) {
	if a.block != nil {
		_, _ = a.block.Write(p)
	}
	if a.payload != nil {
		if !a.skipHeader || a.headerEnded {
			_, _ = a.payload.Write(p)
		} else if i := a.scanHeaderEnd(p); i >= 0 {
			a.headerEnded = true
			_, _ = a.payload.Write(p[i:])
		}
	}
	return len(p), nil
}

// scanHeaderEnd returns the index after the empty line ending the protocol header, or -1 if not found in p.
func (a *digestAccumulator) scanHeaderEnd(p []byte) int {
	for i, c := range p {
		switch a.state {
		case 0:
			if c == lf {
				a.state = 1
			}
		case 1: // at start of line
			switch c {
			case lf:
				return i + 1
			case cr:
				a.state = 2
			default:
				a.state = 0
			}
		case 2: // carriage return at start of line
			if c == lf {
				return i + 1
			}
			a.state = 0
		}
	}
	return -1
}

// newDigestAccumulator creates digests for the enabled kinds. Digests declared in wf are
// verified, otherwise the configured algorithm is used. Unusable declared digests are
// reported to d and replaced by the configured algorithm.
func newDigestAccumulator(wf *WarcFields, rt RecordType, o *options, d *diagnostics.Diagnostics) *digestAccumulator {
	a := &digestAccumulator{}
	if o.blockDigest {
		a.block, a.blockDeclared = digestFor(wf, WarcBlockDigest, o, d)
	}
	if o.payloadDigest && hasPayloadDigest(rt) {
		a.payload, a.payloadDeclared = digestFor(wf, WarcPayloadDigest, o, d)
		a.skipHeader = isHttpBlock(wf, rt)
	}
	return a
}

func digestFor(wf *WarcFields, field string, o *options, d *diagnostics.Diagnostics) (*digest, bool) {
	if wf.Has(field) {
		value := wf.Get(field)
		if dg, err := newDigest(value, o.digestEncoding); err == nil && dg.hash != "" {
			return dg, true
		} else if err != nil {
			d.AddWarning(diagnostics.Unknown, field, err.Error())
		} else {
			d.AddError(diagnostics.Invalid, field, value)
		}
	}
	dg, err := newDigest(o.digestAlgorithm, o.digestEncoding)
	if err != nil {
		return nil, false
	}
	return dg, false
}

// validate compares declared digests with the computed ones.
func (a *digestAccumulator) validate(wf *WarcFields, d *diagnostics.Diagnostics) {
	if a.block != nil && a.blockDeclared {
		if err := a.block.validate(); err != nil {
			d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Error, Type: diagnostics.InvalidExpected, Entity: WarcBlockDigest, Cause: err})
		}
	}
	if a.payload != nil && a.payloadDeclared && !wf.Has(WarcSegmentNumber) {
		if err := a.payload.validate(); err != nil {
			d.Add(&diagnostics.Diagnosis{Severity: diagnostics.Error, Type: diagnostics.InvalidExpected, Entity: WarcPayloadDigest, Cause: err})
		}
	}
}

// computed returns the computed digest of the given kind as "algorithm:value", or "" if it was not computed.
func (a *digestAccumulator) computed(kind DigestKind) string {
	dg := a.block
	if kind == DigestPayload {
		dg = a.payload
	}
	if dg == nil {
		return ""
	}
	return dg.format()
}

// hasPayloadDigest reports whether records of type rt carry a payload digest of their own block.
// Revisit records refer to the payload of another record.
func hasPayloadDigest(rt RecordType) bool {
	return rt != Revisit
}
