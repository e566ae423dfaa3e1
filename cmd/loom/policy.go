package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davidahmann/loom/core/policy"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
)

type policyEvalOutput struct {
	OK      bool   `json:"ok"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runPolicy(arguments []string) int {
	if len(arguments) == 0 {
		printPolicyUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "eval":
		return runPolicyEval(arguments[1:])
	default:
		printPolicyUsage()
		return exitInvalidInput
	}
}

func runPolicyEval(arguments []string) int {
	flagSet := flag.NewFlagSet("policy-eval", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var (
		jsonOutput  bool
		contextPath string
		strict      bool
	)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.StringVar(&contextPath, "context", "", "path to policy context JSON")
	flagSet.BoolVar(&strict, "strict", false, "exit non-zero when the context is denied")

	if err := flagSet.Parse(arguments); err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	if contextPath == "" {
		if flagSet.NArg() == 1 {
			contextPath = flagSet.Arg(0)
		} else {
			return invalidInput(jsonOutput, "expected policy context path")
		}
	}

	// #nosec G304 -- context path is explicit local user input.
	data, err := os.ReadFile(contextPath)
	if err != nil {
		return invalidInput(jsonOutput, err.Error())
	}
	var evaluation schemapolicy.Context
	if err := json.Unmarshal(data, &evaluation); err != nil {
		return invalidInput(jsonOutput, fmt.Sprintf("parse policy context: %v", err))
	}

	decision := policy.Evaluate(evaluation)
	if strict && !decision.Allowed {
		err := policy.EvaluateOrThrow(evaluation)
		return writeError(jsonOutput, err)
	}

	if jsonOutput {
		return writeJSONOutput(policyEvalOutput{OK: true, Allowed: decision.Allowed, Reason: decision.Reason}, exitOK)
	}
	if decision.Allowed {
		fmt.Println("allowed")
	} else {
		fmt.Println("denied:", decision.Reason)
	}
	return exitOK
}

func printPolicyUsage() {
	fmt.Println(`usage: loom policy eval [--context path | path] [--strict] [--json]`)
}
