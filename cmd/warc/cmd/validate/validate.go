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

package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/nlnwa/warcio"
	"github.com/nlnwa/warcio/cmd/warc/internal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type conf struct {
	concurrency int
	digests     bool
	verbose     bool
	files       []string
}

// result is the outcome of validating one file.
type result struct {
	fileName      string
	records       int
	bytes         int64
	errors        int
	warnings      int
	compliant     bool
	readerProblem string
}

var errNotCompliant = errors.New("one or more files are not compliant")

func NewCommand() *cobra.Command {
	c := &conf{}
	var cmd = &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate warc files",
		Long: `Read every record of the given WARC files and report problems with framing,
headers, content lengths and digests. Exits with a non-zero status if any file is not compliant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing file name")
			}
			c.files = args
			return runE(cmd.Context(), c, os.Stdout)
		},
	}

	cmd.Flags().IntVarP(&c.concurrency, "concurrency", "j", runtime.NumCPU(), "number of files to validate in parallel")
	cmd.Flags().BoolVarP(&c.digests, "digests", "d", true, "validate block and payload digests")
	cmd.Flags().BoolVarP(&c.verbose, "verbose", "v", false, "print diagnostics of each record")

	return cmd
}

func runE(ctx context.Context, c *conf, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]*result, len(c.files))
	g, ctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, fileName := range c.files {
		i, fileName := i, fileName
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := validateFile(fileName, c)
			if err != nil {
				return fmt.Errorf("%s: %w", fileName, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	compliant := true
	for _, res := range results {
		status := ok("OK")
		if !res.compliant {
			status = bad("NOT COMPLIANT")
			compliant = false
		}
		_, _ = fmt.Fprintf(out, "%s: %s, %d records, %s, %d errors, %d warnings\n",
			res.fileName, status, res.records, humanize.Bytes(uint64(res.bytes)), res.errors, res.warnings)
		if res.readerProblem != "" {
			_, _ = fmt.Fprint(out, res.readerProblem)
		}
	}
	if !compliant {
		return errNotCompliant
	}
	return nil
}

func validateFile(fileName string, c *conf) (*result, error) {
	log.Debugf("validating %s", fileName)
	r, err := warcio.NewFileReader(fileName, 0, internal.ReaderOptions(c.digests)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	res := &result{fileName: fileName}
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := record.Close(); err != nil {
			return nil, err
		}
		res.records++
		res.errors += len(record.Diagnostics().Errors())
		res.warnings += len(record.Diagnostics().Warnings())
		if c.verbose {
			internal.PrintDiagnostics(record)
		}
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	res.bytes = r.Offset()
	res.compliant = r.IsCompliant()
	res.errors += len(r.Diagnostics().Errors())
	res.warnings += len(r.Diagnostics().Warnings())
	if r.Diagnostics().Len() > 0 {
		res.readerProblem = r.Diagnostics().String()
	}
	return res, nil
}
