package api

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmlAEQ/threshold-combiner/internal/combiner"
	"github.com/zmlAEQ/threshold-combiner/internal/tbls"
	"github.com/zmlAEQ/threshold-combiner/pkg/lifecycle"
	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
	"github.com/zmlAEQ/threshold-combiner/pkg/metrics"
	"github.com/zmlAEQ/threshold-combiner/pkg/trace"
)

// maxBlindedMessageBytes bounds the decoded client payload.
const maxBlindedMessageBytes = 1024

// signer is the combiner surface the API depends on; stubbed in tests.
type signer interface {
	Sign(ctx context.Context, blinded []byte) (combiner.Result, error)
}

// Service is the client-facing HTTP surface: POST /v1/sign runs the quorum
// protocol, GET /v1/publickey exposes the epoch, GET /health is the liveness
// probe.
type Service struct {
	addr   string
	epoch  *tbls.Epoch
	signer signer
	srv    *http.Server

	validate func([]byte) error
}

func New(addr string, epoch *tbls.Epoch, s signer) *Service {
	return &Service{addr: addr, epoch: epoch, signer: s, validate: defaultValidate}
}

func (s *Service) Name() string { return "api" }

// SetValidator injects the request-payload validation collaborator.
func (s *Service) SetValidator(fn func([]byte) error) {
	if fn != nil {
		s.validate = fn
	}
}

func defaultValidate(blinded []byte) error {
	if len(blinded) == 0 {
		return fmt.Errorf("empty blinded message")
	}
	if len(blinded) > maxBlindedMessageBytes {
		return fmt.Errorf("blinded message exceeds %d bytes", maxBlindedMessageBytes)
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/publickey", s.handlePublicKey)
	mux.HandleFunc("/v1/sign", s.handleSign)
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorJ("service_op", map[string]any{"service": "api", "op": "serve", "result": "error", "err": err.Error()})
		}
	}()
	logger.InfoJ("service_op", map[string]any{"service": "api", "op": "start", "result": "ok", "addr": s.addr})
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
	Version   string `json:"version"`
	Threshold int    `json:"threshold"`
}

func (s *Service) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, publicKeyResponse{
		PublicKey: hex.EncodeToString(s.epoch.PublicKey),
		Version:   s.epoch.KeyVersion,
		Threshold: s.epoch.Threshold,
	})
}

type signRequest struct {
	BlindedMessage string `json:"blinded_message"`
}

type signResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Service) handleSign(w http.ResponseWriter, r *http.Request) {
	begin := time.Now()
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Client-declared key version is checked before fan-out begins; this is
	// distinct from the per-signer check on each response.
	if kv := r.Header.Get(combiner.KeyVersionHeader); kv != "" && kv != s.epoch.KeyVersion {
		metrics.Inc("api_requests_total", map[string]string{"result": "invalid_key_header"})
		writeError(w, http.StatusBadRequest, "invalid key version header")
		return
	}

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	blinded, err := base64.StdEncoding.DecodeString(req.BlindedMessage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid blinded message")
		return
	}
	if err := s.validate(blinded); err != nil {
		writeError(w, http.StatusBadRequest, "invalid blinded message")
		return
	}

	tid := trace.New()
	ctx := trace.WithTraceID(r.Context(), tid)
	res, err := s.signer.Sign(ctx, blinded)
	durMs := time.Since(begin).Milliseconds()
	if err != nil {
		status, msg := clientError(err)
		metrics.Inc("api_requests_total", map[string]string{"result": "error"})
		logger.ErrorJ("api_sign", map[string]any{"result": "error", "code": status, "latency_ms": durMs, "trace_id": tid})
		writeError(w, status, msg)
		return
	}
	metrics.Inc("api_requests_total", map[string]string{"result": "ok"})
	logger.InfoJ("api_sign", map[string]any{"result": "ok", "latency_ms": durMs, "trace_id": tid})
	writeJSON(w, http.StatusOK, signResponse{
		Success:   true,
		Signature: base64.StdEncoding.EncodeToString(res.Signature),
		Version:   res.Version,
	})
}

// clientError maps combiner failures to the client-visible status and
// message; raw signer error bodies never surface.
func clientError(err error) (int, string) {
	if errors.Is(err, combiner.ErrQuotaExceeded) {
		return http.StatusForbidden, "quota exceeded"
	}
	var nes *combiner.NotEnoughSharesError
	if errors.As(err, &nes) {
		return nes.Status, "not enough partial signatures"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

var _ lifecycle.Service = (*Service)(nil)
