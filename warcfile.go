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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nlnwa/warcio/internal"
	"github.com/nlnwa/warcio/internal/timestamp"
	"github.com/nlnwa/warcio/pkg/diagnostics"
	"github.com/prometheus/tsdb/fileutil"
	log "github.com/sirupsen/logrus"
)

// WarcFileNameGenerator is the interface that wraps the NewWarcfileName function.
type WarcFileNameGenerator interface {
	// NewWarcfileName returns a directory (might be the empty string for current directory) and a file name
	NewWarcfileName() (string, string)
}

// PatternNameGenerator implements the WarcFileNameGenerator.
//
// The pattern may refer to the parameters prefix, ts (14 digit timestamp), serial, ip and host.
type PatternNameGenerator struct {
	Directory string // Directory to store warcfiles. Defaults to the empty string
	Prefix    string // Prefix available to be used in pattern. Defaults to the empty string
	Serial    int32  // Serial number available for use in pattern. It is atomically increased with every generated file name.
	Pattern   string // Pattern for generated file name. Defaults to: "%{prefix}s%{ts}s-%04{serial}d-%{ip}s.warc"
}

const defaultPattern = "%{prefix}s%{ts}s-%04{serial}d-%{ip}s.warc"

// Allow overriding of time.Now for tests
var now = time.Now

func (g *PatternNameGenerator) NewWarcfileName() (string, string) {
	pattern := g.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	params := map[string]any{
		"prefix": g.Prefix,
		"ts":     timestamp.UTC14(now()),
		"serial": atomic.AddInt32(&g.Serial, 1),
	}
	if strings.Contains(pattern, "{ip}") {
		params["ip"] = internal.OutboundIP()
	}
	if strings.Contains(pattern, "{host}") {
		params["host"] = internal.HostName()
	}

	name := internal.FormatNamed(pattern, params)
	return g.Directory, name
}

// FileWriter is a Writer owning the file it writes to.
//
// The file is written with a temporary suffix which is removed when the FileWriter is closed.
type FileWriter struct {
	*Writer
	file     *os.File
	path     string
	openPath string
	closed   bool
}

// CreateFile creates a new WARC file at path and returns a FileWriter for it.
// While writing, the file is named path with the open file suffix appended (".open" by default).
func CreateFile(path string, opts ...Option) (*FileWriter, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	openPath := path + o.openFileSuffix
	file, err := os.OpenFile(openPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(file, opts...)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(openPath)
		return nil, err
	}
	log.Debugf("created WARC file %s", openPath)
	return &FileWriter{Writer: w, file: file, path: path, openPath: openPath}, nil
}

// CreateGeneratedFile creates a new WARC file named by g. The suffix ".gz" is added to the
// generated name when records are compressed.
func CreateGeneratedFile(g WarcFileNameGenerator, opts ...Option) (*FileWriter, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	dir, name := g.NewWarcfileName()
	if o.compress {
		name += ".gz"
	}
	return CreateFile(filepath.Join(dir, name), opts...)
}

// Name returns the final path of the file.
func (fw *FileWriter) Name() string {
	return fw.path
}

// WriteWarcinfo writes a warcinfo record describing the file, with fields as the content block.
func (fw *FileWriter) WriteWarcinfo(fields *WarcFields) (*WriteResponse, error) {
	header := NewRecordHeader(Warcinfo)
	header.Set(WarcFilename, filepath.Base(fw.path))
	header.Set(ContentType, ApplicationWarcFields)

	block := fields.String()
	if err := fw.WriteHeader(nil, header, int64(len(block))); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(payloadWriter{fw.Writer}, block); err != nil {
		return nil, err
	}
	if err := fw.CloseRecord(); err != nil {
		return nil, err
	}
	return fw.Response(), nil
}

// Close closes the Writer, syncs and closes the file and removes the open file suffix.
// Closing a closed FileWriter does nothing.
func (fw *FileWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	if err := fw.Writer.Close(); err != nil {
		_ = fw.file.Close()
		return err
	}
	if err := fw.file.Sync(); err != nil {
		_ = fw.file.Close()
		return fmt.Errorf("failed to sync file: %s: %w", fw.openPath, err)
	}
	if err := fw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %s: %w", fw.openPath, err)
	}
	if fw.openPath != fw.path {
		if err := fileutil.Rename(fw.openPath, fw.path); err != nil {
			return fmt.Errorf("failed to rename file: %s: %w", fw.openPath, err)
		}
	}
	return nil
}

// FileReader is a Reader owning the file it reads from.
type FileReader struct {
	*Reader
	file *os.File
}

// NewFileReader opens filename and returns a Reader for the records starting at offset.
// Offsets reported by the reader are offsets in the file.
func NewFileReader(filename string, offset int64, opts ...Option) (*FileReader, error) {
	if offset < 0 {
		return nil, diagnostics.Usagef("invalid offset: %d", offset)
	}
	file, err := os.Open(filename) // For read access.
	if err != nil {
		return nil, err
	}
	if _, err = file.Seek(offset, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, err
	}
	r, err := newReader(file, offset, opts...)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &FileReader{Reader: r, file: file}, nil
}

// Close closes the Reader and the file.
func (fr *FileReader) Close() error {
	err := fr.Reader.Close()
	if cerr := fr.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}
