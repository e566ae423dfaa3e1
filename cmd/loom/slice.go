package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/loom/core/projectconfig"
	schemaslice "github.com/davidahmann/loom/core/schema/v1/slice"
	"github.com/davidahmann/loom/core/slicer"
)

type sliceOutput struct {
	OK    bool               `json:"ok"`
	Slice *schemaslice.Slice `json:"slice,omitempty"`
	Error string             `json:"error,omitempty"`
}

func runSlice(arguments []string) int {
	flagSet := flag.NewFlagSet("slice", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var (
		jsonOutput     bool
		evidencePath   string
		specialistPath string
		configPath     string
		traceID        string
		maxBytes       int
		maxTokens      int
		maxItems       int
	)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.StringVar(&evidencePath, "evidence", "", "path to ranked evidence JSON array")
	flagSet.StringVar(&specialistPath, "specialist", "", "path to specialist metadata JSON")
	flagSet.StringVar(&configPath, "config", projectconfig.DefaultPath, "path to project config")
	flagSet.StringVar(&traceID, "trace", "", "trace id for recorded policy calls")
	flagSet.IntVar(&maxBytes, "max-bytes", 0, "override byte budget (0 = config value)")
	flagSet.IntVar(&maxTokens, "max-tokens", 0, "override token budget (0 = config value)")
	flagSet.IntVar(&maxItems, "max-items", 0, "override item budget (0 = config value)")

	if err := flagSet.Parse(arguments); err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if evidencePath == "" || specialistPath == "" {
		return invalidInput(jsonOutput, "flags --evidence and --specialist are required")
	}

	configuration, err := loadConfig(configPath)
	if err != nil {
		return writeError(jsonOutput, err)
	}
	items, err := loadEvidence(evidencePath)
	if err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	specialist, err := loadSpecialist(specialistPath)
	if err != nil {
		return invalidInput(jsonOutput, err.Error())
	}

	config, err := slicerConfigFor(configuration, traceID)
	if err != nil {
		return writeError(jsonOutput, err)
	}
	if maxBytes > 0 {
		config.Budget.MaxBytes = maxBytes
	}
	if maxTokens > 0 {
		config.Budget.MaxTokens = maxTokens
	}
	if maxItems > 0 {
		config.Budget.MaxItems = maxItems
	}

	result, err := slicer.Slice(context.Background(), specialist, items, config)
	if err != nil {
		return writeError(jsonOutput, err)
	}

	if jsonOutput {
		return writeJSONOutput(sliceOutput{OK: true, Slice: &result}, exitOK)
	}
	fmt.Printf("specialist %s: included %d/%d items (%d redacted or denied, %d over budget)\n",
		result.SpecialistID, result.TotalIncluded, result.TotalAvailable,
		result.TotalRedacted, result.TotalDroppedBudget)
	fmt.Printf("budget used: %d bytes, %d tokens, %d items\n",
		result.BudgetUsed.Bytes, result.BudgetUsed.Tokens, result.BudgetUsed.Items)
	for _, warning := range result.Warnings {
		fmt.Println("warning:", warning)
	}
	return exitOK
}
