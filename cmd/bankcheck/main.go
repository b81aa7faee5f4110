package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/config"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/logger"
)

// Validates question bank files and reports data-quality findings
// (duplicate IDs and missing explanations show up as loader warnings).
// Exits non-zero if any configured bank fails to load.
func main() {
	var examCode string
	flag.StringVar(&examCode, "exam", "", "Check a single exam code (default: all configured)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup("info", "pretty")
	loader := bank.NewLoader(cfg.BankDir, cfg.SharedBankFile, cfg.ExamCatalog, log)

	codes := loader.Codes()
	if examCode != "" {
		codes = []string{examCode}
	}

	failed := false
	for _, code := range codes {
		questions, err := loader.Load(code)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %-14s %v\n", code, err)
			failed = true
			continue
		}
		fmt.Printf("OK   %-14s %d questions (%s)\n", code, len(questions), loader.Label(code))
	}

	if failed {
		os.Exit(1)
	}
}
