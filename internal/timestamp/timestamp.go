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

// Package timestamp formats and parses the timestamps used in WARC headers and file names.
package timestamp

import (
	"time"
)

const (
	format14      = "20060102150405"
	w3cIso8601    = "2006-01-02T15:04:05Z07:00"
	w3cIso8601UTC = "2006-01-02T15:04:05Z"
)

// To14 converts a W3C ISO 8601 timestamp to a 14 digit timestamp (yyyyMMddHHmmss) in UTC.
func To14(s string) (string, error) {
	t, err := time.Parse(w3cIso8601, s)
	if err != nil {
		return "", err
	}
	return UTC14(t), nil
}

// From14ToTime parses a 14 digit timestamp as UTC.
func From14ToTime(s string) (time.Time, error) {
	return time.Parse(format14, s)
}

// UTC returns t in UTC.
func UTC(t time.Time) time.Time {
	return t.UTC()
}

// UTC14 formats t as a 14 digit timestamp in UTC.
func UTC14(t time.Time) string {
	return t.UTC().Format(format14)
}

// UTCW3cIso8601 formats t as a W3C ISO 8601 timestamp in UTC with second precision, as used in WARC-Date.
func UTCW3cIso8601(t time.Time) string {
	return t.UTC().Format(w3cIso8601UTC)
}
