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

package ls

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
	offset      int64
	recordCount int
	diagnostics bool
	fileName    string
	id          []string
}

func NewCommand() *cobra.Command {
	c := &conf{}
	var cmd = &cobra.Command{
		Use:   "ls <file>",
		Short: "List records from warc files",
		Long:  `List offset, size, record id, type and target URI of the records in a WARC file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing file name")
			}
			c.fileName = args[0]
			return runE(c, os.Stdout)
		},
	}

	cmd.Flags().Int64VarP(&c.offset, "offset", "o", 0, "offset of the first record to list")
	cmd.Flags().IntVarP(&c.recordCount, "record-count", "c", 0, "The maximum number of records to show")
	cmd.Flags().BoolVar(&c.diagnostics, "diagnostics", false, "print diagnostics of each record to stderr")
	cmd.Flags().StringArrayVar(&c.id, "id", []string{}, "specify record ids to ls")

	return cmd
}

func runE(c *conf, out io.Writer) error {
	r, err := warcio.NewFileReader(c.fileName, c.offset)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	count := 0
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d at offset %d: %w", count, r.Offset(), err)
		}
		if len(c.id) > 0 && !internal.Contains(c.id, record.WarcHeader().GetId(warcio.WarcRecordID)) {
			continue
		}
		// size is known when the record is closed
		if err := record.Close(); err != nil {
			return err
		}
		count++
		printRecord(out, record)
		if c.diagnostics {
			internal.PrintDiagnostics(record)
		}
		if c.recordCount > 0 && count >= c.recordCount {
			break
		}
	}
	_, _ = fmt.Fprintln(os.Stderr, "Count: ", count)
	return nil
}

func printRecord(out io.Writer, record *warcio.Record) {
	target := ""
	if u, err := record.TargetURI(); err == nil {
		target = internal.CropString(u.String(), 100)
	}
	_, _ = fmt.Fprintf(out, "%9d %7d %s %-9.9s %s\n", record.StartOffset(), record.Size(),
		record.WarcHeader().GetId(warcio.WarcRecordID), record.Type(), target)
}
