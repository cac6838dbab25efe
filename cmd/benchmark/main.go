package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	template     string
	documents    int
	copies       int
	invalidRate  float64
	workers      int
	fieldWorkers int
	seed         int64
	seedProvided bool

	store     bool
	host      string
	port      int
	database  string
	user      string
	password  string
	sslMode   string
	table     string
	chunkSize int
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	opts := parseFlags()
	if !opts.seedProvided {
		sugar.Infof("using random seed %d", opts.seed)
	}

	tmpl, err := loadTemplate(opts.template)
	if err != nil {
		sugar.Fatalf("failed to load template: %v", err)
	}

	random := rand.New(rand.NewSource(opts.seed))
	docs := generateDocuments(tmpl, opts, random)
	sugar.Infow("generated documents",
		"documents", len(docs),
		"fieldsPerDocument", len(tmpl.fields)*opts.copies,
	)

	cfg := joydoc.DefaultConfig().Validation

	serial := joydoc.NewValidator(joydoc.WithConfig(cfg))
	serialRun := run("serial", serial, docs, 1)

	parallelCfg := cfg
	parallelCfg.ParallelFields = true
	parallelCfg.MaxWorkers = opts.fieldWorkers
	parallelCfg.ParallelThreshold = 1
	parallelFields := joydoc.NewValidator(joydoc.WithConfig(parallelCfg))
	fieldRun := run("parallel fields", parallelFields, docs, 1)

	docRun := run("parallel documents", serial, docs, opts.workers)

	for _, r := range []runResult{serialRun, fieldRun, docRun} {
		sugar.Infow("benchmark run",
			"mode", r.name,
			"elapsed", r.elapsed,
			"docsPerSecond", strconv.FormatFloat(r.throughput(), 'f', 1, 64),
			"invalid", r.invalid,
			"violations", r.violations,
		)
	}
	if serialRun.invalid != fieldRun.invalid || serialRun.violations != fieldRun.violations {
		sugar.Fatalf("parallel field validation disagrees with serial validation")
	}

	if opts.store {
		if err := storeReports(context.Background(), opts, docRun.results, sugar); err != nil {
			sugar.Fatalf("failed to store reports: %v", err)
		}
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.template, "template", getenvDefault("TEMPLATE", "testdata/kitchen_sink.json"), "document whose fields are replicated")
	flag.IntVar(&opts.documents, "documents", 1000, "number of documents to generate")
	flag.IntVar(&opts.copies, "copies", 20, "copies of the template fields per document")
	flag.Float64Var(&opts.invalidRate, "invalid-rate", 0.1, "fraction of fields that get a defect")
	flag.IntVar(&opts.workers, "workers", runtime.NumCPU(), "documents validated concurrently")
	flag.IntVar(&opts.fieldWorkers, "field-workers", runtime.NumCPU(), "field workers per document")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")

	flag.BoolVar(&opts.store, "store", false, "bulk insert one report per document")
	flag.StringVar(&opts.host, "db-host", getenvDefault("JOYDOC_STORE_HOST", "localhost"), "database host")
	flag.IntVar(&opts.port, "db-port", getenvDefaultInt("JOYDOC_STORE_PORT", 5432), "database port")
	flag.StringVar(&opts.database, "db-name", getenvDefault("JOYDOC_STORE_DATABASE", "joydoc"), "database name")
	flag.StringVar(&opts.user, "db-user", getenvDefault("JOYDOC_STORE_USERNAME", "postgres"), "database user")
	flag.StringVar(&opts.password, "db-password", getenvDefault("JOYDOC_STORE_PASSWORD", "postgres"), "database password")
	flag.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("JOYDOC_STORE_SSL_MODE", "disable"), "database sslmode")
	flag.StringVar(&opts.table, "table", getenvDefault("JOYDOC_STORE_TABLE", "joydoc_validation_reports"), "validation report table")
	flag.IntVar(&opts.chunkSize, "chunk-size", 1000, "number of reports to copy per batch")

	flag.Parse()

	if *seed == 0 {
		opts.seed = time.Now().UnixNano()
	} else {
		opts.seed = *seed
		opts.seedProvided = true
	}
	opts.documents = max(opts.documents, 1)
	opts.copies = max(opts.copies, 1)
	opts.workers = max(opts.workers, 1)
	opts.fieldWorkers = max(opts.fieldWorkers, 1)
	return opts
}

type template struct {
	doc    map[string]any
	fields []map[string]any
}

func loadTemplate(path string) (*template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := joydoc.ValidateDocument(doc).Err(); err != nil {
		return nil, fmt.Errorf("template must be valid: %w", err)
	}
	raw, _ := doc["fields"].([]any)
	t := &template{doc: doc}
	for _, f := range raw {
		if m, ok := f.(map[string]any); ok {
			t.fields = append(t.fields, m)
		}
	}
	if len(t.fields) == 0 {
		return nil, fmt.Errorf("template has no fields")
	}
	return t, nil
}

// generateDocuments replicates the template fields under fresh ids and breaks
// a random share of them.
func generateDocuments(t *template, opts options, r *rand.Rand) []map[string]any {
	docs := make([]map[string]any, opts.documents)
	for d := range docs {
		doc := deepCopy(t.doc).(map[string]any)
		fields := make([]any, 0, len(t.fields)*opts.copies)
		for c := 0; c < opts.copies; c++ {
			for _, f := range t.fields {
				field := deepCopy(f).(map[string]any)
				field["_id"] = fmt.Sprintf("%v_%d_%d", f["_id"], d, c)
				if r.Float64() < opts.invalidRate {
					breakField(field, r)
				}
				fields = append(fields, field)
			}
		}
		doc["fields"] = fields
		docs[d] = doc
	}
	return docs
}

// breakField applies one defect that always yields a violation.
func breakField(field map[string]any, r *rand.Rand) {
	switch r.Intn(3) {
	case 0:
		delete(field, "file")
	case 1:
		field["_id"] = float64(r.Intn(1000))
	default:
		field["required"] = "yes"
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

type runResult struct {
	name       string
	elapsed    time.Duration
	invalid    int
	violations int
	results    []*joydoc.ValidationResult
}

func (r runResult) throughput() float64 {
	return float64(len(r.results)) / r.elapsed.Seconds()
}

func run(name string, v *joydoc.Validator, docs []map[string]any, workers int) runResult {
	results := make([]*joydoc.ValidationResult, len(docs))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = v.ValidateDocument(doc)
			return nil
		})
	}
	_ = g.Wait()

	out := runResult{name: name, elapsed: time.Since(start), results: results}
	for _, res := range results {
		if !res.Valid {
			out.invalid++
		}
		out.violations += len(res.Violations)
	}
	return out
}

func storeReports(ctx context.Context, opts options, results []*joydoc.ValidationResult, sugar *zap.SugaredLogger) error {
	cfg := joydoc.StoreConfig{
		Host:     opts.host,
		Port:     opts.port,
		Database: opts.database,
		Username: opts.user,
		SSLMode:  opts.sslMode,
	}
	pool, err := pgxpool.New(ctx, store.DSN(cfg, opts.password))
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	reports, err := store.NewReportStore(pool, opts.table, zap.L())
	if err != nil {
		return err
	}
	if err := reports.EnsureSchema(ctx); err != nil {
		return err
	}

	batch := make([]*store.Report, len(results))
	for i, res := range results {
		if batch[i], err = store.NewReport("benchmark", fmt.Sprintf("doc_%d", i), res); err != nil {
			return err
		}
	}

	start := time.Now()
	n, err := reports.SaveBatch(ctx, batch, opts.chunkSize)
	if err != nil {
		return err
	}
	sugar.Infow("reports stored", "rows", n, "elapsed", time.Since(start))
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
