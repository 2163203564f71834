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

// Package diagnostics holds the two kinds of problems reported by the readers and writers in this module.
//
// Problems with the data being read or written are collected as a Diagnosis in a Diagnostics list.
// They never abort processing. Violations of the calling contract, like writing a payload before a
// header, are returned as errors matching ErrInvalidUsage.
package diagnostics

import (
	"strconv"
	"strings"
)

// Severity tells whether a Diagnosis makes the entity non-compliant.
type Severity uint8

const (
	Error Severity = iota + 1
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown severity"
	}
}

// Type classifies a Diagnosis.
type Type uint8

const (
	Unknown Type = iota
	Invalid
	InvalidData
	InvalidEncoding
	InvalidExpected
	RequiredMissing
	Undesired
	Duplicate
)

func (t Type) String() string {
	switch t {
	case Invalid:
		return "invalid"
	case InvalidData:
		return "invalid data"
	case InvalidEncoding:
		return "invalid encoding"
	case InvalidExpected:
		return "invalid expected"
	case RequiredMissing:
		return "required missing"
	case Undesired:
		return "undesired"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Diagnosis is a single problem found in the data.
type Diagnosis struct {
	Severity    Severity
	Type        Type
	Entity      string   // what the problem was found in, e.g. "gzip header" or a field name
	Information []string // optional details, like expected and actual values
	Cause       error    // optional underlying error
}

func (d *Diagnosis) Error() string {
	sb := strings.Builder{}
	sb.WriteString(d.Entity)
	sb.WriteString(": ")
	sb.WriteString(d.Type.String())
	for i, info := range d.Information {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(info)
	}
	if d.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(d.Cause.Error())
	}
	return sb.String()
}

func (d *Diagnosis) Unwrap() error {
	return d.Cause
}

// Diagnostics is an ordered list of errors and warnings. The zero value is ready to use.
type Diagnostics struct {
	errors   []*Diagnosis
	warnings []*Diagnosis
}

// New returns an empty Diagnostics.
func New() *Diagnostics {
	return &Diagnostics{}
}

// Add adds d to the list matching its severity.
func (d *Diagnostics) Add(diag *Diagnosis) {
	if diag.Severity == Warning {
		d.warnings = append(d.warnings, diag)
	} else {
		diag.Severity = Error
		d.errors = append(d.errors, diag)
	}
}

func (d *Diagnostics) AddError(t Type, entity string, information ...string) {
	d.Add(&Diagnosis{Severity: Error, Type: t, Entity: entity, Information: information})
}

func (d *Diagnostics) AddWarning(t Type, entity string, information ...string) {
	d.Add(&Diagnosis{Severity: Warning, Type: t, Entity: entity, Information: information})
}

// AddCause adds an error diagnosis wrapping err.
func (d *Diagnostics) AddCause(t Type, entity string, err error) {
	d.Add(&Diagnosis{Severity: Error, Type: t, Entity: entity, Cause: err})
}

// AddAll appends all diagnoses from other.
func (d *Diagnostics) AddAll(other *Diagnostics) {
	if other == nil {
		return
	}
	d.errors = append(d.errors, other.errors...)
	d.warnings = append(d.warnings, other.warnings...)
}

func (d *Diagnostics) Errors() []*Diagnosis {
	return d.errors
}

func (d *Diagnostics) Warnings() []*Diagnosis {
	return d.warnings
}

func (d *Diagnostics) HasErrors() bool {
	return d != nil && len(d.errors) > 0
}

func (d *Diagnostics) HasWarnings() bool {
	return d != nil && len(d.warnings) > 0
}

// Len returns the total number of errors and warnings.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.errors) + len(d.warnings)
}

func (d *Diagnostics) Reset() {
	d.errors = nil
	d.warnings = nil
}

// Err returns the errors as a single error, or nil if there are none. Warnings are not included.
func (d *Diagnostics) Err() error {
	if !d.HasErrors() {
		return nil
	}
	errs := make(multiErr, len(d.errors))
	for i, e := range d.errors {
		errs[i] = e
	}
	return errs
}

func (d *Diagnostics) String() string {
	if d.Len() == 0 {
		return ""
	}

	sb := strings.Builder{}
	i := 0
	write := func(list []*Diagnosis) {
		for _, e := range list {
			i++
			sb.WriteString("  ")
			sb.WriteString(strconv.Itoa(i))
			sb.WriteString(": ")
			sb.WriteString(e.Severity.String())
			sb.WriteString(": ")
			sb.WriteString(e.Error())
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("Diagnostics:\n")
	write(d.errors)
	write(d.warnings)
	return sb.String()
}

type multiErr []error

func (e multiErr) Error() string {
	switch len(e) {

	case 0:
		return ""

	case 1:
		return e[0].Error()
	}

	const (
		start = "["
		sep   = ", "
		end   = "]"
	)

	var b strings.Builder
	b.WriteString(start)
	b.WriteString(e[0].Error())
	for _, s := range e[1:] {
		b.WriteString(sep)
		b.WriteString(s.Error())
	}
	b.WriteString(end)
	return b.String()
}

func (e multiErr) Unwrap() []error {
	return e
}
