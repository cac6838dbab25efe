package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		if err := runValidate(os.Args[2:], os.Stdout); err != nil {
			if errors.Is(err, errInvalidDocuments) {
				os.Exit(2)
			}
			sugar.Fatalf("validate: %v", err)
		}
	case "generate-schema":
		if err := runGenerateSchema(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("generate-schema: %v", err)
		}
	case "check-schema":
		if err := runCheckSchema(os.Args[2:], os.Stdout); err != nil {
			if errors.Is(err, errInvalidDocuments) {
				os.Exit(2)
			}
			sugar.Fatalf("check-schema: %v", err)
		}
	case "summarize":
		if err := runSummarize(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("summarize: %v", err)
		}
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: joydoc-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  validate          Validate documents, schema maps or logic blocks from files, stdin or S3")
	logger.Info("  generate-schema   Compile the document contracts into a JSON Schema artifact")
	logger.Info("  check-schema      Check documents against a compiled JSON Schema artifact")
	logger.Info("  summarize         Print page and field counts of valid documents")
	logger.Info("  init-db           Create the validation report table and indexes")
}
