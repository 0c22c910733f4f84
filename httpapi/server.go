// Package httpapi is the HTTP transport (§6.1): three routes wired through
// httprouter, CORS via rs/cors, and every request/response passed through
// the signed envelope (C3).
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/groundx/refillsvc/admission"
	"github.com/groundx/refillsvc/envelope"
	"github.com/groundx/refillsvc/health"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/orchestrator"
	"github.com/groundx/refillsvc/query"
	"github.com/groundx/refillsvc/refillerr"
)

var logger = log.NewModuleLogger(log.HTTPAPI)

// Server wires the three routes of §6.1 behind the signed envelope.
type Server struct {
	Envelope     *envelope.Envelope
	Admission    *admission.Pipeline
	Orchestrator *orchestrator.Orchestrator
	Query        *query.Surface
	Health       *health.Checker

	httpServer *http.Server
	addr       string
}

// New builds a Server bound to the given address, e.g. ":8080".
func New(addr string, env *envelope.Envelope, adm *admission.Pipeline, orch *orchestrator.Orchestrator, q *query.Surface, h *health.Checker) *Server {
	return &Server{
		Envelope:     env,
		Admission:    adm,
		Orchestrator: orch,
		Query:        q,
		Health:       h,
		addr:         addr,
	}
}

func (s *Server) Name() string { return "httpapi" }

func (s *Server) router() http.Handler {
	r := httprouter.New()
	r.GET("/v1/health", s.handleHealth)
	r.POST("/v1/wallet/refill", s.handleRefill)
	r.GET("/v1/wallet/refill/status/:refill_request_id", s.handleRefillStatus)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(withRequestID(r))
}

// withRequestID stamps every request with a correlation ID, reusing one the
// caller supplied and minting a fresh uuid otherwise, so a single refill can
// be traced across the admission/orchestrator/monitor logs that handle it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP traffic in a background goroutine, satisfying
// node.Lifecycle.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.router(),
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped unexpectedly", "err", err)
		}
	}()
	logger.Info("http server listening", "addr", s.addr)
	return nil
}

// Stop closes the listener and then drains in-flight handlers, waiting up to
// 10 seconds for them to finish (§6.5).
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	report := s.Health.Check()
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusInternalServerError
	}
	s.writeSigned(w, status, envelopeBody{Success: report.Status == health.StatusHealthy, Data: report})
}

func (s *Server) handleRefill(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, refillerr.Internal(err))
		return
	}

	payload, verr := s.Envelope.VerifyBody(body)
	if verr != nil {
		s.writeError(w, verr)
		return
	}

	var intent admission.Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		s.writeError(w, refillerr.New(refillerr.CodeInvalidToken, "signed payload is not a valid refill intent"))
		return
	}

	ctx := r.Context()
	accepted, admitErr := s.Admission.Admit(ctx, intent)
	if admitErr != nil {
		s.writeError(w, admitErr)
		return
	}

	result, orchErr := s.Orchestrator.Execute(ctx, intent.RefillRequestID, accepted, intent.RefillAmount)
	if orchErr != nil {
		s.writeError(w, orchErr)
		return
	}

	s.writeSigned(w, http.StatusOK, envelopeBody{Success: true, Data: result})
}

func (s *Server) handleRefillStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pathID := ps.ByName("refill_request_id")
	if pathID == "" {
		s.writeError(w, refillerr.New(refillerr.CodeMissingParameter, "refill_request_id path parameter is required"))
		return
	}

	payload, verr := s.Envelope.VerifyBearer(r.Header.Get("Authorization"))
	if verr != nil {
		s.writeError(w, verr)
		return
	}

	if s.Envelope.Enabled {
		var claimed struct {
			RefillRequestID string `json:"refill_request_id"`
		}
		if err := json.Unmarshal(payload, &claimed); err == nil && claimed.RefillRequestID != "" && claimed.RefillRequestID != pathID {
			s.writeError(w, refillerr.New(refillerr.CodeRefillRequestIDMismatch, "refill_request_id in the signed payload does not match the URL path"))
			return
		}
	}

	status, qerr := s.Query.GetRefillStatus(pathID)
	if qerr != nil {
		s.writeError(w, qerr)
		return
	}
	s.writeSigned(w, http.StatusOK, envelopeBody{Success: true, Data: status})
}

type envelopeBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// writeSigned signs the body and writes it as the response. Per §4.3, a
// signing failure falls through to an empty body at HTTP 500.
func (s *Server) writeSigned(w http.ResponseWriter, status int, body envelopeBody) {
	signed, err := s.Envelope.Sign(body)
	if err != nil {
		logger.Error("failed to sign response, failing safe with empty body", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write(signed)
}

func (s *Server) writeError(w http.ResponseWriter, rerr *refillerr.Error) {
	s.writeSigned(w, refillerr.HTTPStatus(rerr.Code), envelopeBody{
		Success: false,
		Code:    string(rerr.Code),
		Message: rerr.Message,
		Data:    rerr.Data,
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
