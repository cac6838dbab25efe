package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/factory"
	"github.com/joyfill/joydoc/internal/source"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errInvalidDocuments signals that every input was checked and at least one
// failed.
var errInvalidDocuments = errors.New("one or more documents are invalid")

type validateOptions struct {
	configPath string
	strict     bool
	jsonOutput bool
	store      bool
	parallel   int
	watch      bool
	scope      string
	conditions string
}

// outcome is the result of checking one location.
type outcome struct {
	Location   string                   `json:"location"`
	DocumentID string                   `json:"documentId,omitempty"`
	ReportID   string                   `json:"reportId,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Result     *joydoc.ValidationResult `json:"result,omitempty"`
}

func (o *outcome) failed() bool {
	return o.Error != "" || (o.Result != nil && !o.Result.Valid)
}

func runValidate(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: joydoc-tools validate [options] <file|dir|s3://bucket/key|->...")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	opts := validateOptions{}
	flags.StringVar(&opts.configPath, "config", getenvDefault("JOYDOC_CONFIG", ""), "path to a YAML configuration file")
	flags.BoolVar(&opts.strict, "strict", false, "warn about undocumented enum values and unknown types")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	flags.BoolVar(&opts.store, "store", false, "persist a report for every document")
	flags.IntVar(&opts.parallel, "parallel", 4, "number of documents validated concurrently")
	flags.BoolVar(&opts.watch, "watch", false, "revalidate local files when they change")
	flags.StringVar(&opts.scope, "scope", "document", "what each input holds: document, schema or logic")
	flags.StringVar(&opts.conditions, "conditions", "field", "condition contract for -scope logic: field or schema")

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, cleanup, err := newValidateRunner(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	expanded, err := source.Expand(locations)
	if err != nil {
		return err
	}

	outcomes := r.checkAll(ctx, expanded, opts.parallel)
	if err := printOutcomes(stdout, outcomes, opts.jsonOutput); err != nil {
		return err
	}

	if opts.watch {
		return r.watch(ctx, expanded, func(o *outcome) {
			if err := printOutcomes(stdout, []*outcome{o}, opts.jsonOutput); err != nil {
				zap.S().Warnw("failed to print result", "location", o.Location, "err", err)
			}
		})
	}

	for _, o := range outcomes {
		if o.failed() {
			return errInvalidDocuments
		}
	}
	return nil
}

// validateRunner loads, checks and optionally stores one input at a time.
type validateRunner struct {
	validator *joydoc.Validator
	source    *source.Source
	reports   *store.ReportStore
	scope     string
	contract  joydoc.ConditionContract
	logger    *zap.Logger
}

func newValidateRunner(ctx context.Context, opts validateOptions) (*validateRunner, func(), error) {
	cfg, err := joydoc.LoadConfigWithEnvOverrides(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.strict {
		cfg.Validation.Strict = true
	}

	switch opts.scope {
	case "document", "schema", "logic":
	default:
		return nil, nil, fmt.Errorf("unknown scope %q, expected document, schema or logic", opts.scope)
	}
	contract, err := joydoc.ParseConditionContract(opts.conditions)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.L()
	src, err := factory.NewSourceWithConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	r := &validateRunner{
		validator: factory.NewValidatorWithConfig(cfg, logger),
		source:    src,
		scope:     opts.scope,
		contract:  contract,
		logger:    logger,
	}
	cleanup := func() {}

	if opts.store {
		cfg.Store.Enabled = true
		reports, pool, err := factory.NewReportStoreWithConfig(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := reports.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		r.reports = reports
		cleanup = pool.Close
	}
	return r, cleanup, nil
}

func (r *validateRunner) checkAll(ctx context.Context, locations []string, parallel int) []*outcome {
	outcomes := make([]*outcome, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, loc := range locations {
		g.Go(func() error {
			outcomes[i] = r.check(gctx, loc)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *validateRunner) check(ctx context.Context, location string) *outcome {
	o := &outcome{Location: location}
	doc, err := r.source.Load(ctx, location)
	if err != nil {
		o.Error = err.Error()
		return o
	}
	o.DocumentID = doc.ID()

	switch r.scope {
	case "schema":
		o.Result = r.validator.ValidateSchema(doc.Tree)
	case "logic":
		o.Result = r.validator.ValidateLogic(doc.Tree, r.contract)
	default:
		o.Result = r.validator.ValidateDocument(doc.Tree)
	}

	if r.reports != nil {
		report, err := store.NewReport(location, o.DocumentID, o.Result)
		if err == nil {
			err = r.reports.Save(ctx, report)
		}
		if err != nil {
			r.logger.Warn("failed to store report", zap.String("location", location), zap.Error(err))
		} else {
			o.ReportID = report.ID.String()
		}
	}
	return o
}

func printOutcomes(w io.Writer, outcomes []*outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	var b strings.Builder
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(&b, "ERROR %s: %s\n", o.Location, o.Error)
			continue
		case o.Result.Valid:
			fmt.Fprintf(&b, "PASS  %s", o.Location)
		default:
			fmt.Fprintf(&b, "FAIL  %s (%d violations)", o.Location, len(o.Result.Violations))
		}
		if o.ReportID != "" {
			fmt.Fprintf(&b, " report=%s", o.ReportID)
		}
		b.WriteString("\n")
		for _, v := range o.Result.Violations {
			fmt.Fprintf(&b, "      %s\n", v)
		}
		for _, warn := range o.Result.Warnings {
			fmt.Fprintf(&b, "      warning: %s: %s\n", warn.Path, warn.Message)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
