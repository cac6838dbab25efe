package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/source"
	"go.uber.org/zap"
)

type documentSummary struct {
	Location string `json:"location"`
	joydoc.DocumentSummary
	FieldTypes []string `json:"fieldTypes"`
}

// runSummarize validates each document and prints its summary. Invalid
// documents are reported and skipped since they cannot be decoded reliably.
func runSummarize(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("summarize", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: joydoc-tools summarize <file|dir|->...")
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	locations := flags.Args()
	if len(locations) == 0 {
		locations = []string{source.Stdin}
	}
	locations, err := source.Expand(locations)
	if err != nil {
		return err
	}

	src := source.New(joydoc.DefaultConfig().Source, nil, zap.L())
	summaries := make([]documentSummary, 0, len(locations))
	for _, loc := range locations {
		doc, err := src.Load(context.Background(), loc)
		if err != nil {
			return err
		}
		if err := joydoc.ValidateDocument(doc.Tree).Err(); err != nil {
			zap.S().Warnw("skipping invalid document", "location", loc, "err", err)
			continue
		}
		typed, err := joydoc.DocumentFromTree(doc.Tree)
		if err != nil {
			return err
		}
		s := typed.Summary()
		summaries = append(summaries, documentSummary{Location: loc, DocumentSummary: s, FieldTypes: s.FieldTypes()})
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
