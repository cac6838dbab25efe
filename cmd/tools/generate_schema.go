package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/factory"
	"github.com/joyfill/joydoc/internal/schemagen"
	"github.com/joyfill/joydoc/internal/source"
	"go.uber.org/zap"
)

type generateSchemaOptions struct {
	configPath   string
	out          string
	version      string
	id           string
	upload       string
	createBucket bool
}

func runGenerateSchema(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("generate-schema", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: joydoc-tools generate-schema [options]")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	opts := generateSchemaOptions{}
	flags.StringVar(&opts.configPath, "config", getenvDefault("JOYDOC_CONFIG", ""), "path to a YAML configuration file")
	flags.StringVar(&opts.out, "out", "-", "output file, - for stdout")
	flags.StringVar(&opts.version, "version", joydoc.SchemaVersion, "value of $joyfillSchemaVersion")
	flags.StringVar(&opts.id, "id", "", "optional $id of the artifact")
	flags.StringVar(&opts.upload, "upload", "", "also publish the artifact to this s3://bucket/key")
	flags.BoolVar(&opts.createBucket, "create-bucket", false, "create the upload bucket if it does not exist")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	schema, err := schemagen.Compile(schemagen.Options{Version: opts.version, ID: opts.id})
	if err != nil {
		return err
	}
	data, err := schemagen.Marshal(schema)
	if err != nil {
		return err
	}

	if err := writeOutput(opts.out, data, stdout); err != nil {
		return err
	}

	if opts.upload != "" {
		if err := uploadSchema(opts, data); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "-" || path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	zap.S().Infow("schema written", "path", path, "bytes", len(data))
	return nil
}

func uploadSchema(opts generateSchemaOptions, data []byte) error {
	bucket, _, err := source.ParseS3URI(opts.upload)
	if err != nil {
		return err
	}
	cfg, err := joydoc.LoadConfigWithEnvOverrides(opts.configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	publisher, err := factory.NewPublisherWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if opts.createBucket {
		if err := publisher.EnsureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	if err := publisher.Publish(ctx, opts.upload, data, "application/schema+json"); err != nil {
		return err
	}
	zap.S().Infow("schema uploaded", "location", opts.upload)
	return nil
}
