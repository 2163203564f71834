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

	"github.com/nlnwa/warcio/internal/diskbuffer"
	"github.com/nlnwa/warcio/pkg/diagnostics"
)

// Errors returned for violations of the calling contract. They all match ErrInvalidUsage with errors.Is.
var (
	ErrInvalidUsage      = diagnostics.ErrInvalidUsage
	ErrIllegalState      = diagnostics.ErrIllegalState
	ErrHeaderRequired    = diagnostics.ErrHeaderRequired
	ErrBackToBackHeaders = diagnostics.ErrBackToBackHeaders
	ErrNothingToClose    = diagnostics.ErrNothingToClose
	ErrUnsupportedDigest = diagnostics.ErrUnsupportedDigest
	ErrCapacityExceeded  = diagnostics.ErrCapacityExceeded
)

// ErrMaxSizeExceeded is returned by the Writer when a record with a deferred header grows past
// the limit set with WithSpoolLimit. Match it with errors.As.
type ErrMaxSizeExceeded = diskbuffer.ErrMaxSizeExceeded

// SyntaxError is used for syntactical errors like wrong line endings
type SyntaxError struct {
	msg     string
	line    int
	wrapped error
}

func newSyntaxError(msg string, pos *position) *SyntaxError {
	return &SyntaxError{msg: msg, line: pos.lineNumber}
}

func newWrappedSyntaxError(msg string, pos *position, wrapped error) *SyntaxError {
	return &SyntaxError{msg: msg, line: pos.lineNumber, wrapped: wrapped}
}

func (e *SyntaxError) Error() string {
	if e.line > 0 {
		return fmt.Sprintf("warcio: %s at line %d", e.msg, e.line)
	} else {
		return fmt.Sprintf("warcio: %s", e.msg)
	}
}

func (e *SyntaxError) Unwrap() error {
	return e.wrapped
}

// Line returns the line number within the record header, starting with 1 for the version line.
func (e *SyntaxError) Line() int {
	return e.line
}

type position struct {
	lineNumber int
}

func (p *position) incrLineNumber() *position {
	p.lineNumber++
	return p
}
