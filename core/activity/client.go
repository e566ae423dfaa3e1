// Package activity implements the record/replay boundary around every
// non-deterministic operation: clock reads, random draws, outbound HTTP, and
// agent-to-agent messaging. Each call is persisted through a Checkpointer
// keyed by (trace, step, type, request hash); replay resolves the same key
// and never touches live systems.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/loom/core/checkpoint"
	coreerrors "github.com/davidahmann/loom/core/errors"
	"github.com/davidahmann/loom/core/jcs"
	"github.com/davidahmann/loom/core/logging"
	schemaactivity "github.com/davidahmann/loom/core/schema/v1/activity"
)

type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// HTTPDoer is the external HTTP transport the client wraps in record mode.
type HTTPDoer interface {
	Do(ctx context.Context, url string, options schemaactivity.HTTPRequestOptions) (schemaactivity.HTTPResponse, error)
}

// A2ATransport is the external agent-to-agent transport.
type A2ATransport interface {
	Send(ctx context.Context, envelope schemaactivity.A2AEnvelope) (schemaactivity.A2AAck, error)
}

type Options struct {
	Mode         Mode
	TraceID      string
	Checkpointer checkpoint.Checkpointer

	// Record-mode determinism inputs. BaseTime seeds the virtual clock,
	// Seed the pseudo-random sequence.
	BaseTime time.Time
	Seed     int64

	HTTP   HTTPDoer
	A2A    A2ATransport
	Logger *zap.Logger
}

// Client serializes all activity for one trace. Calls within a trace are
// mutually exclusive so record and replay observe the same call order;
// distinct traces use distinct clients and run fully independently.
type Client struct {
	mode    Mode
	traceID string
	store   checkpoint.Checkpointer
	http    HTTPDoer
	a2a     A2ATransport
	logger  *zap.Logger

	mu        sync.Mutex
	stepIndex int

	baseTime  time.Time
	timeCalls int64
	rng       *rand.Rand

	// Logical call ordinals per activity type, reset at step boundaries.
	// They feed the request hash for time/random so identical call
	// sequences hash identically regardless of trace id.
	ordinals map[string]int
}

func NewClient(options Options) (*Client, error) {
	if options.TraceID == "" {
		return nil, coreerrors.Wrap(fmt.Errorf("trace id is required"), coreerrors.CategoryInvalidInput, "activity_trace_required", "provide a trace id", false)
	}
	if options.Checkpointer == nil {
		return nil, coreerrors.Wrap(fmt.Errorf("checkpointer is required"), coreerrors.CategoryInvalidInput, "activity_checkpointer_required", "inject a checkpoint store", false)
	}
	switch options.Mode {
	case ModeRecord:
		if options.BaseTime.IsZero() {
			return nil, coreerrors.Wrap(fmt.Errorf("record mode requires a base timestamp"), coreerrors.CategoryInvalidInput, "activity_base_time_required", "set Options.BaseTime", false)
		}
	case ModeReplay:
	default:
		return nil, coreerrors.Wrap(fmt.Errorf("unsupported activity mode: %s", options.Mode), coreerrors.CategoryInvalidInput, "activity_mode_invalid", "use record or replay", false)
	}

	client := &Client{
		mode:     options.Mode,
		traceID:  options.TraceID,
		store:    options.Checkpointer,
		http:     options.HTTP,
		a2a:      options.A2A,
		logger:   logging.OrNop(options.Logger),
		baseTime: options.BaseTime.UTC(),
		ordinals: make(map[string]int),
	}
	if options.Mode == ModeRecord {
		client.rng = rand.New(rand.NewSource(options.Seed)) // #nosec G404 -- deterministic replayable sequence, not a security boundary.
	}
	return client, nil
}

func (c *Client) Mode() Mode {
	return c.mode
}

func (c *Client) TraceID() string {
	return c.traceID
}

// IncrementStepIndex marks a checkpoint boundary. Subsequent activities are
// grouped and matched under the next step index.
func (c *Client) IncrementStepIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepIndex++
	c.ordinals = make(map[string]int)
	return c.stepIndex
}

func (c *Client) CurrentStepIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepIndex
}

type timeRequest struct {
	Op      string `json:"op"`
	Ordinal int    `json:"ordinal"`
}

type timeResponse struct {
	Value time.Time `json:"value"`
}

// Now returns the virtual clock value: base time advancing exactly one
// millisecond per call in record mode, the recorded value in replay.
// It never reads the wall clock.
func (c *Client) Now(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordinal := c.nextOrdinal(schemaactivity.TypeTime)
	request := timeRequest{Op: "time", Ordinal: ordinal}
	requestHash, requestRaw, err := hashRequest(request)
	if err != nil {
		return time.Time{}, err
	}

	if c.mode == ModeReplay {
		var response timeResponse
		if err := c.replayInto(ctx, schemaactivity.TypeTime, requestHash, &response); err != nil {
			return time.Time{}, err
		}
		return response.Value, nil
	}

	value := c.baseTime.Add(time.Duration(c.timeCalls) * time.Millisecond)
	c.timeCalls++
	responseRaw, err := json.Marshal(timeResponse{Value: value})
	if err != nil {
		return time.Time{}, fmt.Errorf("encode time response: %w", err)
	}
	if err := c.persist(ctx, schemaactivity.TypeTime, requestHash, requestRaw, responseRaw, "", 0, nil); err != nil {
		return time.Time{}, err
	}
	return value, nil
}

type randomRequest struct {
	Op      string `json:"op"`
	Ordinal int    `json:"ordinal"`
	Max     int64  `json:"max"`
}

type randomResponse struct {
	Value int64 `json:"value"`
}

// Rand returns a pseudo-random value in [0, max). The record-mode sequence
// is fully determined by the configured seed and call order.
func (c *Client) Rand(ctx context.Context, max int64) (int64, error) {
	if max <= 0 {
		return 0, coreerrors.Wrap(fmt.Errorf("rand max must be positive, got %d", max), coreerrors.CategoryInvalidInput, "activity_rand_max_invalid", "", false)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ordinal := c.nextOrdinal(schemaactivity.TypeRandom)
	request := randomRequest{Op: "random", Ordinal: ordinal, Max: max}
	requestHash, requestRaw, err := hashRequest(request)
	if err != nil {
		return 0, err
	}

	if c.mode == ModeReplay {
		var response randomResponse
		if err := c.replayInto(ctx, schemaactivity.TypeRandom, requestHash, &response); err != nil {
			return 0, err
		}
		return response.Value, nil
	}

	value := c.rng.Int63n(max)
	responseRaw, err := json.Marshal(randomResponse{Value: value})
	if err != nil {
		return 0, fmt.Errorf("encode random response: %w", err)
	}
	if err := c.persist(ctx, schemaactivity.TypeRandom, requestHash, requestRaw, responseRaw, "", 0, nil); err != nil {
		return 0, err
	}
	return value, nil
}

type httpRequest struct {
	Op      string                            `json:"op"`
	URL     string                            `json:"url"`
	Options schemaactivity.HTTPRequestOptions `json:"options"`
}

// HTTPRequest performs the call through the configured transport in record
// mode and persists both sides; replay resolves the persisted response
// without any network access. A call recorded with a transport error
// re-raises that error deterministically on replay.
func (c *Client) HTTPRequest(ctx context.Context, url string, options schemaactivity.HTTPRequestOptions) (schemaactivity.HTTPResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	request := httpRequest{Op: "http", URL: url, Options: normalizeHTTPOptions(options)}
	requestHash, requestRaw, err := hashRequest(request)
	if err != nil {
		return schemaactivity.HTTPResponse{}, err
	}

	if c.mode == ModeReplay {
		var response schemaactivity.HTTPResponse
		if err := c.replayInto(ctx, schemaactivity.TypeHTTP, requestHash, &response); err != nil {
			return schemaactivity.HTTPResponse{}, err
		}
		return response, nil
	}

	if c.http == nil {
		return schemaactivity.HTTPResponse{}, coreerrors.Wrap(fmt.Errorf("http transport is not configured"), coreerrors.CategoryDependencyMissing, "activity_http_missing", "inject an HTTPDoer for record mode", false)
	}

	started := time.Now()
	response, callErr := c.http.Do(ctx, url, request.Options)
	durationMs := time.Since(started).Milliseconds()

	var responseRaw json.RawMessage
	if callErr == nil {
		responseRaw, err = json.Marshal(response)
		if err != nil {
			return schemaactivity.HTTPResponse{}, fmt.Errorf("encode http response: %w", err)
		}
	}
	if err := c.persist(ctx, schemaactivity.TypeHTTP, requestHash, requestRaw, responseRaw, "", durationMs, callErr); err != nil {
		return schemaactivity.HTTPResponse{}, err
	}
	if callErr != nil {
		return schemaactivity.HTTPResponse{}, coreerrors.Wrap(fmt.Errorf("http request: %w", callErr), coreerrors.CategoryNetworkTransient, "activity_http_failed", "", true)
	}
	return response, nil
}

type a2aRequest struct {
	Op       string                     `json:"op"`
	Envelope schemaactivity.A2AEnvelope `json:"envelope"`
}

// SendA2A dispatches an agent-to-agent envelope in record mode and persists
// the acknowledgement; replay returns the persisted acknowledgement without
// dispatching.
func (c *Client) SendA2A(ctx context.Context, envelope schemaactivity.A2AEnvelope) (schemaactivity.A2AAck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	request := a2aRequest{Op: "a2a", Envelope: envelope}
	requestHash, requestRaw, err := hashRequest(request)
	if err != nil {
		return schemaactivity.A2AAck{}, err
	}

	if c.mode == ModeReplay {
		var ack schemaactivity.A2AAck
		if err := c.replayInto(ctx, schemaactivity.TypeA2A, requestHash, &ack); err != nil {
			return schemaactivity.A2AAck{}, err
		}
		return ack, nil
	}

	if c.a2a == nil {
		return schemaactivity.A2AAck{}, coreerrors.Wrap(fmt.Errorf("a2a transport is not configured"), coreerrors.CategoryDependencyMissing, "activity_a2a_missing", "inject an A2ATransport for record mode", false)
	}

	started := time.Now()
	ack, callErr := c.a2a.Send(ctx, envelope)
	durationMs := time.Since(started).Milliseconds()

	var responseRaw json.RawMessage
	if callErr == nil {
		responseRaw, err = json.Marshal(ack)
		if err != nil {
			return schemaactivity.A2AAck{}, fmt.Errorf("encode a2a ack: %w", err)
		}
	}
	if err := c.persist(ctx, schemaactivity.TypeA2A, requestHash, requestRaw, responseRaw, "", durationMs, callErr); err != nil {
		return schemaactivity.A2AAck{}, err
	}
	if callErr != nil {
		return schemaactivity.A2AAck{}, coreerrors.Wrap(fmt.Errorf("a2a dispatch: %w", callErr), coreerrors.CategoryNetworkTransient, "activity_a2a_failed", "", true)
	}
	return ack, nil
}

func (c *Client) nextOrdinal(activityType string) int {
	ordinal := c.ordinals[activityType]
	c.ordinals[activityType] = ordinal + 1
	return ordinal
}

func (c *Client) persist(ctx context.Context, activityType, requestHash string, requestRaw, responseRaw json.RawMessage, blobRef string, durationMs int64, callErr error) error {
	record := schemaactivity.Record{
		TraceID:         c.traceID,
		StepIndex:       c.stepIndex,
		ActivityType:    activityType,
		RequestHash:     requestHash,
		RequestData:     requestRaw,
		ResponseData:    responseRaw,
		ResponseBlobRef: blobRef,
		Timestamp:       time.Now().UTC(),
		DurationMs:      durationMs,
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}
	if err := c.store.SaveActivity(ctx, record); err != nil {
		return coreerrors.Wrap(fmt.Errorf("persist %s activity: %w", activityType, err), coreerrors.CategoryIOFailure, "activity_persist_failed", "", true)
	}
	c.logger.Debug("activity recorded",
		zap.String("trace", c.traceID),
		zap.Int("step", c.stepIndex),
		zap.String("type", activityType),
		zap.String("hash", requestHash))
	return nil
}

// replayInto resolves the recorded activity for the computed key. A missing
// record means the replayed call sequence diverged from the recorded trace
// and is always fatal.
func (c *Client) replayInto(ctx context.Context, activityType, requestHash string, out any) error {
	record, ok, err := c.store.ActivityByTypeAndHash(ctx, c.traceID, c.stepIndex, activityType, requestHash)
	if err != nil {
		return coreerrors.Wrap(fmt.Errorf("lookup %s activity: %w", activityType, err), coreerrors.CategoryIOFailure, "activity_lookup_failed", "", true)
	}
	if !ok {
		return coreerrors.Wrap(
			fmt.Errorf("activity not found: trace=%s step=%d type=%s hash=%s", c.traceID, c.stepIndex, activityType, requestHash),
			coreerrors.CategoryReplayDivergence,
			"replay_miss",
			"the call sequence does not match the recorded trace",
			false,
		)
	}
	if record.Error != "" {
		return coreerrors.Wrap(fmt.Errorf("replayed %s activity failed: %s", activityType, record.Error), coreerrors.CategoryNetworkPermanent, "activity_recorded_error", "", false)
	}
	if len(record.ResponseData) == 0 {
		return coreerrors.Wrap(fmt.Errorf("recorded %s activity has no response payload", activityType), coreerrors.CategoryReplayDivergence, "replay_empty_response", "", false)
	}
	if err := json.Unmarshal(record.ResponseData, out); err != nil {
		return fmt.Errorf("decode recorded %s response: %w", activityType, err)
	}
	c.logger.Debug("activity replayed",
		zap.String("trace", c.traceID),
		zap.Int("step", c.stepIndex),
		zap.String("type", activityType),
		zap.String("hash", requestHash))
	return nil
}

// hashRequest produces the replay matching hash: sha256 over the JCS
// canonical form of the normalized request payload.
func hashRequest(request any) (string, json.RawMessage, error) {
	canonical, err := jcs.CanonicalizeValue(request)
	if err != nil {
		return "", nil, fmt.Errorf("canonicalize request: %w", err)
	}
	digest, err := jcs.DigestJCS(canonical)
	if err != nil {
		return "", nil, fmt.Errorf("digest request: %w", err)
	}
	return digest, canonical, nil
}

func normalizeHTTPOptions(options schemaactivity.HTTPRequestOptions) schemaactivity.HTTPRequestOptions {
	out := options
	if out.Method == "" {
		out.Method = "GET"
	}
	if len(out.Headers) == 0 {
		out.Headers = nil
	}
	return out
}

// IsReplayMiss reports whether err is the fatal nondeterminism detector
// raised when a replayed call has no recorded counterpart.
func IsReplayMiss(err error) bool {
	return coreerrors.IsReplayDivergence(err)
}
