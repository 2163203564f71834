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

// Package internal contains helpers shared by the warc subcommands.
package internal

import (
	"fmt"
	"os"

	"github.com/nlnwa/warcio"
)

// Contains reports whether s contains e.
func Contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

// CropString shortens s to at most n characters, marking cropped strings with "...".
func CropString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// ReaderOptions returns reader options for the common digest flags.
func ReaderOptions(digests bool) []warcio.Option {
	return []warcio.Option{
		warcio.WithBlockDigest(digests),
		warcio.WithPayloadDigest(digests),
	}
}

// PrintDiagnostics writes the diagnostics of a record to stderr.
func PrintDiagnostics(record *warcio.Record) {
	if record.Diagnostics().Len() == 0 {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "record at offset %d: %s", record.StartOffset(), record.Diagnostics())
}
