package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/loom/core/activity"
	"github.com/davidahmann/loom/core/checkpoint"
	"github.com/davidahmann/loom/core/policy"
	"github.com/davidahmann/loom/core/projectconfig"
	"github.com/davidahmann/loom/core/schema/validate"
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	"github.com/davidahmann/loom/core/slicer"
)

func loadEvidence(path string) ([]evidence.Item, error) {
	// #nosec G304 -- evidence path is explicit local user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	if err := validate.ValidateEvidence(data); err != nil {
		return nil, fmt.Errorf("evidence input: %w", err)
	}
	var items []evidence.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse evidence: %w", err)
	}
	return items, nil
}

func loadSpecialist(path string) (evidence.SpecialistMetadata, error) {
	// #nosec G304 -- specialist path is explicit local user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return evidence.SpecialistMetadata{}, fmt.Errorf("read specialist: %w", err)
	}
	var specialist evidence.SpecialistMetadata
	if err := json.Unmarshal(data, &specialist); err != nil {
		return evidence.SpecialistMetadata{}, fmt.Errorf("parse specialist: %w", err)
	}
	if specialist.ID == "" {
		return evidence.SpecialistMetadata{}, fmt.Errorf("specialist id is required")
	}
	return specialist, nil
}

func loadConfig(path string) (projectconfig.Config, error) {
	allowMissing := path == projectconfig.DefaultPath
	return projectconfig.Load(path, allowMissing)
}

// slicerConfigFor wires the configured policy source. A configured endpoint
// gets an HTTP backend over a record-mode activity client so remote
// decisions are checkpointed alongside everything else.
func slicerConfigFor(configuration projectconfig.Config, traceID string) (slicer.Config, error) {
	config := slicer.Config{
		Budget:          configuration.Budget(),
		FallbackToLocal: configuration.FallbackToLocal(),
	}
	if configuration.Policy.Endpoint == "" {
		return config, nil
	}

	store, err := checkpointStoreFor(configuration)
	if err != nil {
		return slicer.Config{}, err
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	client, err := activity.NewClient(activity.Options{
		Mode:         activity.ModeRecord,
		TraceID:      traceID,
		Checkpointer: store,
		BaseTime:     time.Now().UTC(),
		HTTP:         activity.NewNetDoer(10 * time.Second),
	})
	if err != nil {
		return slicer.Config{}, fmt.Errorf("build activity client: %w", err)
	}
	config.Backend = &policy.HTTPBackend{Client: client, Endpoint: configuration.Policy.Endpoint}
	return config, nil
}

func checkpointStoreFor(configuration projectconfig.Config) (checkpoint.Checkpointer, error) {
	if configuration.Checkpoint.Store == "sqlite" {
		store, err := checkpoint.OpenSQLite(configuration.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		return store, nil
	}
	return checkpoint.NewMemoryStore(), nil
}
