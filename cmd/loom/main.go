package main

import (
	"fmt"
	"os"

	coreerrors "github.com/davidahmann/loom/core/errors"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK                = 0
	exitInternalFailure   = 1
	exitInvalidInput      = 2
	exitPolicyBlocked     = 3
	exitMissingDependency = 4
	exitReplayDivergence  = 5
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("loom", version)
		return exitOK
	}

	switch arguments[1] {
	case "slice":
		return runSlice(arguments[2:])
	case "pack":
		return runPack(arguments[2:])
	case "policy":
		return runPolicy(arguments[2:])
	case "trace":
		return runTrace(arguments[2:])
	case "version", "--version", "-v":
		fmt.Println("loom", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println(`usage: loom <command> [flags]

commands:
  slice    apply policy and budget limits to ranked evidence for a specialist
  pack     assemble a context pack (slice + summary + affordances)
  policy   evaluate pre/post execution policy contexts
  trace    inspect recorded activities for a trace
  version  print the CLI version`)
}

func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return exitInvalidInput
	case coreerrors.CategoryPolicyBlocked:
		return exitPolicyBlocked
	case coreerrors.CategoryReplayDivergence:
		return exitReplayDivergence
	case coreerrors.CategoryDependencyMissing:
		return exitMissingDependency
	}
	return exitInternalFailure
}
