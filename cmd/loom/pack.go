package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davidahmann/loom/core/fsx"
	"github.com/davidahmann/loom/core/pack"
	"github.com/davidahmann/loom/core/projectconfig"
	schemapack "github.com/davidahmann/loom/core/schema/v1/pack"
	"github.com/davidahmann/loom/core/schema/validate"
)

type packOutput struct {
	OK    bool             `json:"ok"`
	Path  string           `json:"path,omitempty"`
	Pack  *schemapack.Pack `json:"pack,omitempty"`
	Error string           `json:"error,omitempty"`
}

func runPack(arguments []string) int {
	if len(arguments) > 0 && arguments[0] == "verify" {
		return runPackVerify(arguments[1:])
	}
	return runPackAssemble(arguments)
}

func runPackAssemble(arguments []string) int {
	flagSet := flag.NewFlagSet("pack", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var (
		jsonOutput     bool
		evidencePath   string
		specialistPath string
		configPath     string
		traceID        string
		outputPath     string
	)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.StringVar(&evidencePath, "evidence", "", "path to ranked evidence JSON array")
	flagSet.StringVar(&specialistPath, "specialist", "", "path to specialist metadata JSON")
	flagSet.StringVar(&configPath, "config", projectconfig.DefaultPath, "path to project config")
	flagSet.StringVar(&traceID, "trace", "", "trace id recorded into the pack")
	flagSet.StringVar(&outputPath, "out", "", "write the pack artifact to this path")

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
	slicerConfig, err := slicerConfigFor(configuration, traceID)
	if err != nil {
		return writeError(jsonOutput, err)
	}

	assembled, err := pack.Assemble(context.Background(), specialist, items, pack.Options{
		Slicer:              slicerConfig,
		MaxSummarySentences: configuration.Slice.MaxSummarySentences,
		ProducerVersion:     version,
		TraceID:             traceID,
	})
	if err != nil {
		return writeError(jsonOutput, err)
	}

	if outputPath != "" {
		if err := fsx.WriteJSONAtomic(outputPath, assembled, 0o600); err != nil {
			return writeError(jsonOutput, err)
		}
		if jsonOutput {
			return writeJSONOutput(packOutput{OK: true, Path: outputPath}, exitOK)
		}
		fmt.Printf("pack %s written to %s\n", assembled.PackID, outputPath)
		return exitOK
	}

	if jsonOutput {
		return writeJSONOutput(packOutput{OK: true, Pack: &assembled}, exitOK)
	}
	fmt.Printf("pack %s for specialist %s: %d items, %d affordances\n",
		assembled.PackID, assembled.SpecialistID, assembled.Slice.TotalIncluded, len(assembled.Affordances))
	fmt.Println("summary:", assembled.Summary.Text)
	return exitOK
}

func runPackVerify(arguments []string) int {
	flagSet := flag.NewFlagSet("pack-verify", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var jsonOutput bool
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	if err := flagSet.Parse(arguments); err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if flagSet.NArg() != 1 {
		return invalidInput(jsonOutput, "expected pack path")
	}

	// #nosec G304 -- pack path is explicit local user input.
	data, err := os.ReadFile(flagSet.Arg(0))
	if err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if err := validate.ValidatePack(data); err != nil {
		return writeError(jsonOutput, err)
	}
	var artifact schemapack.Pack
	if err := json.Unmarshal(data, &artifact); err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if err := pack.Verify(artifact); err != nil {
		return writeError(jsonOutput, err)
	}

	if jsonOutput {
		return writeJSONOutput(packOutput{OK: true, Path: flagSet.Arg(0)}, exitOK)
	}
	fmt.Printf("pack %s verified\n", artifact.PackID)
	return exitOK
}
