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

package cat

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nlnwa/warcio"
	"github.com/nlnwa/warcio/cmd/warc/internal"
	"github.com/spf13/cobra"
)

type conf struct {
	offset   int64
	header   bool
	payload  bool
	digests  bool
	fileName string
}

func NewCommand() *cobra.Command {
	c := &conf{}
	var cmd = &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a record from a warc file",
		Long: `Print the record at the given offset of a WARC file.

By default both header and payload are printed. Problems found in the record are written to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing file name")
			}
			c.fileName = args[0]
			if !c.header && !c.payload {
				c.header = true
				c.payload = true
			}
			return runE(c, os.Stdout)
		},
	}

	cmd.Flags().Int64VarP(&c.offset, "offset", "o", 0, "record offset")
	cmd.Flags().BoolVar(&c.header, "header", false, "show header")
	cmd.Flags().BoolVar(&c.payload, "payload", false, "show payload")
	cmd.Flags().BoolVarP(&c.digests, "digests", "d", false, "validate digests")

	return cmd
}

func runE(c *conf, out io.Writer) error {
	f, err := os.Open(c.fileName)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		return err
	}

	r, err := warcio.NewRandomAccessReader(internal.ReaderOptions(c.digests)...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	record, err := r.NextAt(f, c.offset)
	if err == io.EOF {
		return fmt.Errorf("no record at offset %d", c.offset)
	}
	if err != nil {
		return err
	}
	return printRecord(out, record, c)
}

func printRecord(out io.Writer, record *warcio.Record, c *conf) error {
	if c.header {
		if _, err := fmt.Fprintf(out, "%s\r\n", record.Version()); err != nil {
			return err
		}
		if _, err := record.WarcHeader().Write(out); err != nil {
			return err
		}
		if _, err := io.WriteString(out, "\r\n"); err != nil {
			return err
		}
	}
	if c.payload {
		if _, err := io.Copy(out, record.Payload()); err != nil {
			return err
		}
	}
	if err := record.Close(); err != nil {
		return err
	}
	internal.PrintDiagnostics(record)
	return nil
}
