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

package diagnostics

import (
	"errors"
	"fmt"
)

// ErrInvalidUsage is matched by every error caused by violating the calling contract of a reader or writer.
var ErrInvalidUsage = errors.New("invalid usage")

// UsageError is returned for violations of the calling contract.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string {
	return "warcio: " + e.msg
}

// Is makes every UsageError match ErrInvalidUsage.
func (e *UsageError) Is(target error) bool {
	return target == ErrInvalidUsage
}

// Usagef creates a UsageError with a formatted message.
func Usagef(format string, a ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, a...)}
}

var (
	// ErrCapacityExceeded is returned when more bytes are pushed back or peeked than the pushback buffer can hold.
	ErrCapacityExceeded = &UsageError{msg: "pushback capacity exceeded"}

	// ErrIllegalState is returned when an operation is not allowed in the current state.
	ErrIllegalState = &UsageError{msg: "illegal state"}

	// ErrHeaderRequired is returned when payload is written before a record header.
	ErrHeaderRequired = &UsageError{msg: "record header must be written before payload"}

	// ErrBackToBackHeaders is returned when a record header is written directly after another header.
	ErrBackToBackHeaders = &UsageError{msg: "record header written directly after another header"}

	// ErrNothingToClose is returned when closing a record before any header was written.
	ErrNothingToClose = &UsageError{msg: "no record to close"}

	// ErrUnsupportedDigest is returned for unknown digest algorithm names.
	ErrUnsupportedDigest = &UsageError{msg: "unsupported digest algorithm"}
)
