package main

import (
	"encoding/json"
	"fmt"

	coreerrors "github.com/davidahmann/loom/core/errors"
)

func writeJSONOutput(output any, exitCode int) int {
	encoded, err := json.Marshal(output)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_category":"internal_failure"}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

type errorOutput struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error"`
	ErrorCategory string `json:"error_category,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

func errorOutputFor(err error) errorOutput {
	return errorOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Hint:          coreerrors.HintOf(err),
	}
}

func writeError(jsonOutput bool, err error) int {
	code := exitCodeForError(err)
	if jsonOutput {
		return writeJSONOutput(errorOutputFor(err), code)
	}
	fmt.Println("error:", err.Error())
	return code
}

func invalidInput(jsonOutput bool, message string) int {
	if jsonOutput {
		return writeJSONOutput(errorOutput{OK: false, Error: message, ErrorCategory: string(coreerrors.CategoryInvalidInput)}, exitInvalidInput)
	}
	fmt.Println("error:", message)
	return exitInvalidInput
}
