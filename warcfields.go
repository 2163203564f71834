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
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nlnwa/warcio/internal/timestamp"
)

type nameValue struct {
	Name  string
	Value string
}

func (n *nameValue) String() string {
	return n.Name + ": " + n.Value
}

// WarcFields is an ordered list of header fields. Names are matched case insensitively,
// but written with the case they were added with.
type WarcFields []*nameValue

// Get gets the first value associated with the given key. It is case insensitive.
// If the key doesn't exist or there are no values associated with the key, Get returns "".
// To access multiple values of a key, use GetAll.
func (wf *WarcFields) Get(name string) string {
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			return nv.Value
		}
	}
	return ""
}

func (wf *WarcFields) GetAll(name string) []string {
	var result []string
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			result = append(result, nv.Value)
		}
	}
	return result
}

func (wf *WarcFields) Has(name string) bool {
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			return true
		}
	}
	return false
}

func (wf *WarcFields) Add(name string, value string) {
	*wf = append(*wf, &nameValue{Name: name, Value: value})
}

// AddInt64 adds a field with an integer value.
func (wf *WarcFields) AddInt64(name string, value int64) {
	wf.Add(name, strconv.FormatInt(value, 10))
}

// AddId adds a field with an id value, enclosing the value in angle brackets if needed.
func (wf *WarcFields) AddId(name, value string) {
	if len(value) < 2 || value[0] != '<' || value[len(value)-1] != '>' {
		value = "<" + value + ">"
	}
	wf.Add(name, value)
}

// AddTime adds a field with a W3C ISO 8601 formatted time value.
func (wf *WarcFields) AddTime(name string, value time.Time) {
	wf.Add(name, timestamp.UTCW3cIso8601(value))
}

// GetId gets the first value of a field with the enclosing angle brackets removed.
func (wf *WarcFields) GetId(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(wf.Get(name), "<"), ">")
}

// GetInt64 gets the first value of a field as an integer.
func (wf *WarcFields) GetInt64(name string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(wf.Get(name)), 10, 64)
}

// GetTime gets the first value of a field as a time.
func (wf *WarcFields) GetTime(name string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(wf.Get(name)))
}

// Set replaces the value of the first field with the given name and removes the others.
// The field is appended if it does not exist.
func (wf *WarcFields) Set(name string, value string) {
	isSet := false
	result := (*wf)[:0]
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			if isSet {
				continue
			}
			nv.Value = value
			isSet = true
		}
		result = append(result, nv)
	}
	*wf = result
	if !isSet {
		*wf = append(*wf, &nameValue{Name: name, Value: value})
	}
}

// SetInt64 sets a field with an integer value.
func (wf *WarcFields) SetInt64(name string, value int64) {
	wf.Set(name, strconv.FormatInt(value, 10))
}

func (wf *WarcFields) Delete(name string) {
	var result []*nameValue
	for _, nv := range *wf {
		if !strings.EqualFold(nv.Name, name) {
			result = append(result, nv)
		}
	}
	*wf = result
}

func (wf *WarcFields) Sort() {
	sort.SliceStable(*wf, func(i, j int) bool {
		return (*wf)[i].Name < (*wf)[j].Name
	})
}

// Write writes the fields as "Name: Value" lines terminated by CRLF.
func (wf *WarcFields) Write(w io.Writer) (bytesWritten int64, err error) {
	var n int
	for _, field := range *wf {
		n, err = fmt.Fprintf(w, "%s: %s\r\n", field.Name, field.Value)
		bytesWritten += int64(n)
		if err != nil {
			return
		}
	}
	return
}

func (wf *WarcFields) String() string {
	sb := &strings.Builder{}
	if _, err := wf.Write(sb); err != nil {
		panic(err)
	}
	return sb.String()
}

// Clone returns a deep copy of wf.
func (wf WarcFields) Clone() *WarcFields {
	r := make(WarcFields, 0, len(wf))
	for _, p := range wf {
		v := *p
		r = append(r, &v)
	}
	return &r
}
