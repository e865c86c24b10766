package combiner

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

// KeyVersionHeader carries the key epoch version on outbound signer calls and
// on signer responses.
const KeyVersionHeader = "X-Key-Version"

// partialSignPath is appended to each signer's base URL.
const partialSignPath = "/v1/partial-sign"

// Endpoint identifies one signer node: base URL plus the signer's index in
// the distributed key's share set.
type Endpoint struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// Response is one signer's reply as delivered by the fan-out, in arrival
// order. Err is set for transport-level failures (no HTTP response); such
// deliveries carry no status or body.
type Response struct {
	Endpoint   Endpoint
	StatusCode int
	KeyVersion string
	Body       []byte
	Err        error
}

// Dispatcher issues the concurrent per-signer calls for one request.
type Dispatcher struct {
	Client     *http.Client
	KeyVersion string
	// Timeout bounds the whole fan-out; zero disables the guard. Transport
	// timeouts on individual calls belong to Client.
	Timeout time.Duration
	Clock   clock.Clock
}

// Fanout is the cancellable handle over one dispatch. Responses arrive on a
// buffered channel that closes once every call has finished, so senders never
// block on a consumer that has stopped reading.
type Fanout struct {
	responses chan Response
	cancel    context.CancelFunc
}

// Responses delivers signer replies in arrival order.
func (f *Fanout) Responses() <-chan Response { return f.responses }

// Cancel aborts every call that has not yet completed. One-way and
// idempotent; calls already completed are unaffected, and a call completing
// concurrently with cancellation may still be delivered.
func (f *Fanout) Cancel() { f.cancel() }

// Dispatch POSTs body to every endpoint concurrently, tagging each call with
// the configured key version.
func (d *Dispatcher) Dispatch(ctx context.Context, endpoints []Endpoint, body []byte) *Fanout {
	cctx, cancel := context.WithCancel(ctx)
	f := &Fanout{
		responses: make(chan Response, len(endpoints)),
		cancel:    cancel,
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	var g errgroup.Group
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			f.responses <- d.call(cctx, client, ep, body)
			return nil
		})
	}

	settled := make(chan struct{})
	if d.Timeout > 0 {
		clk := d.Clock
		if clk == nil {
			clk = clock.New()
		}
		timer := clk.Timer(d.Timeout)
		go func() {
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-settled:
			}
		}()
	}
	go func() {
		_ = g.Wait()
		close(f.responses)
		close(settled)
	}()
	return f
}

func (d *Dispatcher) call(ctx context.Context, client *http.Client, ep Endpoint, body []byte) Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL+partialSignPath, bytes.NewReader(body))
	if err != nil {
		return Response{Endpoint: ep, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(KeyVersionHeader, d.KeyVersion)
	resp, err := client.Do(req)
	if err != nil {
		return Response{Endpoint: ep, Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Endpoint: ep, Err: err}
	}
	return Response{
		Endpoint:   ep,
		StatusCode: resp.StatusCode,
		KeyVersion: resp.Header.Get(KeyVersionHeader),
		Body:       b,
	}
}
