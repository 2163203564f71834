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

package recompress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nlnwa/warcio"
	"github.com/nlnwa/warcio/pkg/gzip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type conf struct {
	level      int
	uncompress bool
	digests    bool
	source     string
	target     string
}

func NewCommand() *cobra.Command {
	c := &conf{}
	var cmd = &cobra.Command{
		Use:   "recompress <source> <target>",
		Short: "Copy a warc file with another compression",
		Long: `Copy all records of a WARC file to a new file, compressing every record as a gzip member
with the given level, or writing the records uncompressed.

Record headers and content blocks are copied unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.New("need source and target file names")
			}
			c.source = args[0]
			c.target = args[1]
			return runE(c)
		},
	}

	cmd.Flags().IntVarP(&c.level, "level", "l", gzip.DefaultCompression, "compression level (-2 to 9)")
	cmd.Flags().BoolVarP(&c.uncompress, "uncompressed", "u", false, "write records uncompressed")
	cmd.Flags().BoolVarP(&c.digests, "digests", "d", false, "validate digests of the source")

	return cmd
}

func runE(c *conf) error {
	if c.uncompress {
		c.target = strings.TrimSuffix(c.target, ".gz")
	}
	r, err := warcio.NewFileReader(c.source, 0, warcio.WithBlockDigest(c.digests), warcio.WithPayloadDigest(c.digests))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	w, err := warcio.CreateFile(c.target, warcio.WithCompression(!c.uncompress), warcio.WithCompressionLevel(c.level))
	if err != nil {
		return err
	}

	n, err := Copy(w.Writer, r.Reader)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	log.Infof("copied %d records from %s (%s) to %s (%s)", n, c.source, humanize.Bytes(uint64(r.Offset())),
		c.target, humanize.Bytes(uint64(w.Offset())))
	if !r.IsCompliant() {
		_, _ = fmt.Fprintf(os.Stderr, "warning: %s is not compliant\n", c.source)
	}
	return nil
}

// Copy writes every record read from r to w and returns the number of records copied.
func Copy(w *warcio.Writer, r *warcio.Reader) (int, error) {
	count := 0
	for {
		record, err := r.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		header := record.WarcHeader()
		if record.ContentLength() < 0 && header.Has(warcio.ContentLength) {
			// invalid length, let the writer count it
			header = header.Clone()
			header.Delete(warcio.ContentLength)
		}
		if err := w.WriteHeader(record.Version(), header, record.ContentLength()); err != nil {
			return count, err
		}
		if _, err := w.StreamPayload(record.Payload()); err != nil {
			return count, err
		}
		if err := w.CloseRecord(); err != nil {
			return count, err
		}
		if err := record.Close(); err != nil {
			return count, err
		}
		count++
	}
}
