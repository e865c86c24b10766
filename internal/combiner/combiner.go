package combiner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/zmlAEQ/threshold-combiner/internal/tbls"
	"github.com/zmlAEQ/threshold-combiner/pkg/bus"
	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
	"github.com/zmlAEQ/threshold-combiner/pkg/metrics"
	"github.com/zmlAEQ/threshold-combiner/pkg/trace"
)

// Result is the successful outcome of one signing request.
type Result struct {
	Signature []byte
	Version   string
}

// Outcome is the audit record published on the bus when a request completes.
type Outcome struct {
	TraceID string   `json:"trace_id,omitempty"`
	Result  string   `json:"result"`
	Shares  int      `json:"shares"`
	Records []Record `json:"records"`
}

// Combiner races one partial-sign call per signer, validates each response,
// accumulates verified shares and reconstructs the group signature once a
// quorum is available. All response processing for a request happens on the
// single goroutine draining the fan-out channel, so validate / accumulate /
// quorum-check / cancel form one critical section: exactly one delivery can
// cross the threshold and exactly one combination is attempted.
type Combiner struct {
	epoch      *tbls.Epoch
	scheme     tbls.Scheme
	endpoints  []Endpoint
	dispatcher *Dispatcher
	validator  Validator
	bus        *bus.Bus
}

func New(epoch *tbls.Epoch, scheme tbls.Scheme, endpoints []Endpoint) *Combiner {
	return &Combiner{
		epoch:      epoch,
		scheme:     scheme,
		endpoints:  endpoints,
		dispatcher: &Dispatcher{KeyVersion: epoch.KeyVersion},
		validator:  BlindSigValidator{},
	}
}

// SetClient injects the outbound HTTP client (transport timeouts live there).
func (c *Combiner) SetClient(client *http.Client) { c.dispatcher.Client = client }

// SetTimeout bounds the whole fan-out; stragglers are cancelled when it fires.
func (c *Combiner) SetTimeout(d time.Duration) { c.dispatcher.Timeout = d }

// SetClock injects the fan-out deadline clock; intended for tests.
func (c *Combiner) SetClock(clk clock.Clock) { c.dispatcher.Clock = clk }

// SetValidator swaps the response-parsing strategy (blind-sig vs
// domain-restricted); the orchestrator is unchanged.
func (c *Combiner) SetValidator(v Validator) { c.validator = v }

// SetBus enables audit-outcome publication.
func (c *Combiner) SetBus(b *bus.Bus) { c.bus = b }

// KeyVersion returns the configured epoch version.
func (c *Combiner) KeyVersion() string { return c.epoch.KeyVersion }

type signRequestBody struct {
	BlindedMessage string `json:"blinded_message"`
}

// Sign runs the quorum protocol for one blinded message and returns either
// the combined signature or the aggregated client-visible failure.
func (c *Combiner) Sign(ctx context.Context, blinded []byte) (Result, error) {
	begin := time.Now()
	tid, _ := trace.FromContext(ctx)

	acc := tbls.NewAccumulator(c.scheme, c.epoch, blinded)
	var records []Record

	body, err := json.Marshal(signRequestBody{BlindedMessage: base64.StdEncoding.EncodeToString(blinded)})
	if err != nil {
		return Result{}, err
	}

	f := c.dispatcher.Dispatch(ctx, c.endpoints, body)
	// Release the fan-out context (and deadline guard) on every exit path;
	// Cancel after the decision point is a no-op for completed calls.
	defer f.Cancel()

	quorum := false
	for resp := range f.Responses() {
		if resp.Err != nil {
			// No HTTP reply, no record: discrepancy accounting only covers
			// signers that actually responded.
			metrics.Inc("signer_responses_total", map[string]string{"code": "unreachable"})
			logger.ErrorJ("signer_response", map[string]any{"signer": resp.Endpoint.URL, "result": "transport_error", "err": resp.Err.Error(), "trace_id": tid})
			continue
		}
		// Record before validation so no rejection skips the log.
		records = append(records, Record{Endpoint: resp.Endpoint, StatusCode: resp.StatusCode, Body: resp.Body})
		metrics.Inc("signer_responses_total", map[string]string{"code": strconv.Itoa(resp.StatusCode)})

		share, verr := c.validator.Accept(resp, c.epoch.KeyVersion)
		if verr != nil {
			logger.InfoJ("signer_response", map[string]any{"signer": resp.Endpoint.URL, "result": "rejected", "err": verr.Error(), "code": resp.StatusCode, "trace_id": tid})
			continue
		}

		addBegin := time.Now()
		accepted := acc.Add(share.Index, share.Signature)
		addMs := time.Since(addBegin).Milliseconds()
		result := "dropped"
		if accepted {
			result = "ok"
		}
		metrics.ObserveSummary("combiner_share_add_ms", map[string]string{"result": result}, float64(addMs))
		logger.InfoJ("share_add", map[string]any{"signer": resp.Endpoint.URL, "result": result, "have": acc.Count(), "need": c.epoch.Threshold, "latency_ms": addMs, "trace_id": tid})

		if accepted && acc.HasQuorum() {
			// Quorum is mathematically sufficient; abort the stragglers and
			// stop consuming. Late deliveries land in the buffered channel
			// and are never processed.
			quorum = true
			f.Cancel()
			break
		}
	}

	if quorum {
		sig, cerr := acc.Combine()
		if cerr == nil {
			durMs := time.Since(begin).Milliseconds()
			metrics.Inc("combiner_requests_total", map[string]string{"result": "ok"})
			metrics.ObserveSummary("combiner_sign_ms", map[string]string{"result": "ok"}, float64(durMs))
			logger.InfoJ("combine", map[string]any{"result": "ok", "shares": acc.Count(), "latency_ms": durMs, "trace_id": tid})
			c.publish(ctx, Outcome{TraceID: tid, Result: "ok", Shares: acc.Count(), Records: records})
			return Result{Signature: sig, Version: c.epoch.KeyVersion}, nil
		}
		// Quorum does not guarantee combination; fall through to the
		// aggregated error without retrying.
		logger.ErrorJ("combine", map[string]any{"result": "unavailable", "err": cerr.Error(), "shares": acc.Count(), "trace_id": tid})
	}

	durMs := time.Since(begin).Milliseconds()
	ferr := errorFromRecords(records)
	metrics.Inc("combiner_requests_total", map[string]string{"result": "fallback"})
	metrics.ObserveSummary("combiner_sign_ms", map[string]string{"result": "fallback"}, float64(durMs))
	logger.ErrorJ("combine", map[string]any{"result": "fallback", "responses": len(records), "shares": acc.Count(), "latency_ms": durMs, "trace_id": tid})
	c.publish(ctx, Outcome{TraceID: tid, Result: "fallback", Shares: acc.Count(), Records: records})
	return Result{}, ferr
}

func (c *Combiner) publish(ctx context.Context, o Outcome) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, bus.Event{Kind: bus.KindSignOutcome, Body: o, TraceID: o.TraceID})
}
