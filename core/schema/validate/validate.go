// Package validate checks JSON inputs and artifacts against the repository
// schemas before they enter or leave the pipeline.
package validate

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schemas/evidence.schema.json
var evidenceSchemaJSON []byte

//go:embed schemas/pack.schema.json
var packSchemaJSON []byte

var (
	compileOnce    sync.Once
	evidenceSchema *jsonschema.Schema
	packSchema     *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, *jsonschema.Schema, error) {
	compileOnce.Do(func() {
		evidenceSchema, compileErr = compileSchema(evidenceSchemaJSON)
		if compileErr != nil {
			return
		}
		packSchema, compileErr = compileSchema(packSchemaJSON)
	})
	return evidenceSchema, packSchema, compileErr
}

// ValidateEvidence checks a JSON array of ranked evidence items.
func ValidateEvidence(data []byte) error {
	schema, _, err := compiled()
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}

// ValidatePack checks a serialized context pack artifact.
func ValidatePack(data []byte) error {
	_, schema, err := compiled()
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}

// ValidateJSONFile validates a JSON document against a caller-supplied
// schema file.
func ValidateJSONFile(schemaPath, jsonPath string) error {
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read json: %w", err)
	}
	return validateJSON(schema, data)
}

// ValidateJSONL validates each non-empty line of a JSONL stream.
func ValidateJSONL(schemaPath string, data []byte) error {
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	return validateJSONL(schema, data)
}

func loadSchema(schemaPath string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compileSchema(data)
}

func compileSchema(data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

func validateJSONL(schema *jsonschema.Schema, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := validateJSON(schema, b); err != nil {
			return fmt.Errorf("jsonl line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return nil
}
