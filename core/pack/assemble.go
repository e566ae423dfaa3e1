// Package pack assembles context packs: the policy-sliced evidence for one
// specialist plus an extractive summary and suggested next actions, wrapped
// in a schema-enveloped, digest-sealed artifact.
package pack

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/loom/core/affordance"
	"github.com/davidahmann/loom/core/jcs"
	"github.com/davidahmann/loom/core/logging"
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapack "github.com/davidahmann/loom/core/schema/v1/pack"
	"github.com/davidahmann/loom/core/slicer"
	"github.com/davidahmann/loom/core/summarize"
)

const defaultMaxSummarySentences = 3

// Options configures one assembly. Now and NewID default to the wall clock
// and random UUIDs; deterministic callers (replay, tests) inject their own.
type Options struct {
	Slicer              slicer.Config
	MaxSummarySentences int
	ProducerVersion     string
	TraceID             string

	Now   func() time.Time
	NewID func() string

	Logger *zap.Logger
}

// Assemble slices ranked evidence for the specialist, then derives the
// summary and affordances in parallel over the included items only, so
// nothing denied or redacted by policy can leak into either.
func Assemble(ctx context.Context, specialist evidence.SpecialistMetadata, ranked []evidence.Item, options Options) (schemapack.Pack, error) {
	logger := logging.OrNop(options.Logger)

	sliced, err := slicer.Slice(ctx, specialist, ranked, options.Slicer)
	if err != nil {
		return schemapack.Pack{}, fmt.Errorf("slice evidence: %w", err)
	}

	included := make([]evidence.Item, len(sliced.Items))
	for i, item := range sliced.Items {
		included[i] = item.Evidence
		included[i].Content = item.EffectiveContent()
	}

	maxSentences := options.MaxSummarySentences
	if maxSentences <= 0 {
		maxSentences = defaultMaxSummarySentences
	}

	var (
		summary     summarize.Result
		affordances []schemapack.Affordance
	)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		summary = summarize.Summarize(included, maxSentences)
		return nil
	})
	group.Go(func() error {
		affordances = affordance.Generate(included)
		return nil
	})
	if err := group.Wait(); err != nil {
		return schemapack.Pack{}, err
	}
	if affordances == nil {
		affordances = []schemapack.Affordance{}
	}

	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	newID := uuid.NewString
	if options.NewID != nil {
		newID = options.NewID
	}

	assembled := schemapack.Pack{
		SchemaID:        schemapack.SchemaID,
		SchemaVersion:   schemapack.SchemaVersion,
		CreatedAt:       now().UTC(),
		ProducerVersion: options.ProducerVersion,
		PackID:          newID(),
		SpecialistID:    specialist.ID,
		TraceID:         options.TraceID,
		Slice:           sliced,
		Summary:         schemapack.Summary{Text: summary.Summary, Citations: summary.Citations},
		Affordances:     affordances,
	}

	digest, err := Digest(assembled)
	if err != nil {
		return schemapack.Pack{}, err
	}
	assembled.PackDigest = digest

	logger.Info("context pack assembled",
		zap.String("packId", assembled.PackID),
		zap.String("specialist", specialist.ID),
		zap.Int("includedItems", sliced.TotalIncluded),
		zap.Int("affordances", len(affordances)))
	return assembled, nil
}

// Digest computes the sha256 of the pack's JCS canonical JSON with the
// digest field cleared, so sealed packs verify independent of field order.
func Digest(p schemapack.Pack) (string, error) {
	p.PackDigest = ""
	digest, err := jcs.DigestValue(p)
	if err != nil {
		return "", fmt.Errorf("digest pack: %w", err)
	}
	return digest, nil
}

// Verify recomputes the digest and reports whether the pack is intact.
func Verify(p schemapack.Pack) error {
	if p.PackDigest == "" {
		return fmt.Errorf("pack %s carries no digest", p.PackID)
	}
	digest, err := Digest(p)
	if err != nil {
		return err
	}
	if digest != p.PackDigest {
		return fmt.Errorf("pack %s digest mismatch: recorded %s computed %s", p.PackID, p.PackDigest, digest)
	}
	return nil
}
