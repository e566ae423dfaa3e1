package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/loom/core/checkpoint"
	schemaactivity "github.com/davidahmann/loom/core/schema/v1/activity"
)

type traceShowOutput struct {
	OK         bool                    `json:"ok"`
	TraceID    string                  `json:"trace_id,omitempty"`
	Activities []schemaactivity.Record `json:"activities,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func runTrace(arguments []string) int {
	if len(arguments) == 0 {
		printTraceUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "show":
		return runTraceShow(arguments[1:])
	default:
		printTraceUsage()
		return exitInvalidInput
	}
}

func runTraceShow(arguments []string) int {
	flagSet := flag.NewFlagSet("trace-show", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var (
		jsonOutput bool
		dbPath     string
		traceID    string
		stepIndex  int
		maxSteps   int
	)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.StringVar(&dbPath, "db", "", "path to the sqlite checkpoint store")
	flagSet.StringVar(&traceID, "trace", "", "trace id to inspect")
	flagSet.IntVar(&stepIndex, "step", -1, "show a single step index")
	flagSet.IntVar(&maxSteps, "max-steps", 256, "scan limit when no step is given")

	if err := flagSet.Parse(arguments); err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if dbPath == "" || traceID == "" {
		return invalidInput(jsonOutput, "flags --db and --trace are required")
	}

	store, err := checkpoint.OpenSQLite(dbPath)
	if err != nil {
		return writeError(jsonOutput, err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	var records []schemaactivity.Record
	if stepIndex >= 0 {
		records, err = store.ActivitiesForStep(ctx, traceID, stepIndex)
		if err != nil {
			return writeError(jsonOutput, err)
		}
	} else {
		for step := 0; step < maxSteps; step++ {
			stepRecords, err := store.ActivitiesForStep(ctx, traceID, step)
			if err != nil {
				return writeError(jsonOutput, err)
			}
			records = append(records, stepRecords...)
		}
	}

	if jsonOutput {
		return writeJSONOutput(traceShowOutput{OK: true, TraceID: traceID, Activities: records}, exitOK)
	}
	if len(records) == 0 {
		fmt.Println("no activities recorded for trace", traceID)
		return exitOK
	}
	for _, record := range records {
		status := "ok"
		if record.Error != "" {
			status = "error: " + record.Error
		}
		fmt.Printf("step %d %-6s hash=%.12s duration=%dms %s\n",
			record.StepIndex, record.ActivityType, record.RequestHash, record.DurationMs, status)
	}
	return exitOK
}

func printTraceUsage() {
	fmt.Println(`usage: loom trace show --db path --trace id [--step n] [--json]`)
}
