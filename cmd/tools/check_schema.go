package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/schemagen"
	"github.com/joyfill/joydoc/internal/source"
	"go.uber.org/zap"
)

// runCheckSchema checks documents against a compiled schema artifact instead
// of the contract walker. Useful to confirm a published artifact still agrees
// with the engine.
func runCheckSchema(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("check-schema", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: joydoc-tools check-schema [options] <file|dir|->...")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	var schemaPath string
	flags.StringVar(&schemaPath, "schema", "", "compiled schema file; defaults to the built-in contracts")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	checker, err := loadChecker(schemaPath)
	if err != nil {
		return err
	}

	locations := flags.Args()
	if len(locations) == 0 {
		locations = []string{source.Stdin}
	}
	locations, err = source.Expand(locations)
	if err != nil {
		return err
	}

	src := source.New(joydoc.DefaultConfig().Source, nil, zap.L())
	failed := false
	for _, loc := range locations {
		doc, err := src.Load(context.Background(), loc)
		if err == nil {
			err = checker.Check(doc.Tree)
		}
		if err != nil {
			failed = true
			fmt.Fprintf(stdout, "FAIL  %s: %v\n", loc, err)
			continue
		}
		fmt.Fprintf(stdout, "PASS  %s\n", loc)
	}
	if failed {
		return errInvalidDocuments
	}
	return nil
}

func loadChecker(path string) (*schemagen.Checker, error) {
	if path == "" {
		return schemagen.NewDefaultChecker()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return schemagen.NewChecker(&schema)
}
