package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

const maxBodyBytes = 1 << 16

// Server serves the ceremonies of a wallet.
//
// Reads are public. Submissions and attestations must be signed by the owner
// they are made for, and reconstructions carry owner approvals.
type Server struct {
	wallet  *mpecdh.Wallet
	log     zerolog.Logger
	metrics *metrics.RequestMetrics
	origins []string
	handler http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger; the default discards everything.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithRequestMetrics records request counts and latencies.
func WithRequestMetrics(m *metrics.RequestMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins restricts cross-origin requests. By default any origin is allowed.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) { s.origins = origins }
}

// NewServer returns a server for the ceremonies of w.
func NewServer(w *mpecdh.Wallet, opts ...ServerOption) *Server {
	s := &Server{
		wallet: w,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("module", "transport").Str("wallet", w.Address()).Logger()

	r := chi.NewRouter()
	r.Use(s.requestMiddleware)
	r.Use(middleware.Recoverer)
	r.Route("/v1/ceremonies", func(r chi.Router) {
		r.Post("/", s.deploy)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/status/{party}", s.status)
			r.Get("/prepare/{party}", s.prepare)
			r.Post("/submit", s.submit)
			r.Post("/attest", s.attest)
			r.Get("/verdict", s.verdict)
			r.Post("/reconstruct", s.reconstruct)
		})
	})

	s.handler = cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	}).Handler(r)
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves the API on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("endpoint", addr).Msg("serving api")
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// requestMiddleware tags each request with an ID and records its route, status and latency.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New()
		log := s.log.With().Str("request_id", requestID.String()).Logger()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		latency := time.Since(start)
		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", latency).
			Msg("request served")

		if s.metrics == nil {
			return
		}
		statusTxt := "failure"
		switch {
		case status < 400:
			statusTxt = "success"
		case status < 500:
			statusTxt = "failure_4xx"
		}
		s.metrics.RequestCounter(route, statusTxt).Inc()
		s.metrics.RequestLatencies(route).Observe(latency.Seconds())
	})
}

func decode(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if len(data) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", ErrBadRequest)
	}
	if err = cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := cbor.Marshal(v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	log := zerolog.Ctx(r.Context())
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		message = http.StatusText(status)
	} else {
		log.Debug().Err(err).Str("kind", kind).Msg("request rejected")
	}
	data, _ := cbor.Marshal(&ErrorResponse{Kind: kind, Message: message})
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) ceremony(r *http.Request) (*mpecdh.Ceremony, error) {
	return s.wallet.Ceremony(r.Context(), chi.URLParam(r, "id"))
}

// verify checks that message was signed by owner id.
func (s *Server) verify(id party.ID, message, sig []byte) error {
	pk, ok := s.wallet.PublicKey(id)
	if !ok {
		return fmt.Errorf("%w: %s is not an owner", mpecdh.ErrUnauthorizedSigner, id)
	}
	if !identity.Verify(pk, message, sig) {
		return fmt.Errorf("%w: from %s", ErrInvalidSignature, id)
	}
	return nil
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var group curve.Curve
	if req.Group != "" {
		var err error
		if group, err = curve.FromName(req.Group); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	c, err := s.wallet.Deploy(r.Context(), mpecdh.DeployConfig{
		Group:                group,
		AllowRoundCorrection: req.AllowRoundCorrection,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, &DeployResponse{ID: c.ID(), Participants: s.wallet.Owners()})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := c.Status(r.Context(), party.ID(chi.URLParam(r, "party")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

func (s *Server) prepare(w http.ResponseWriter, r *http.Request) {
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rnd, value, err := c.Prepare(r.Context(), party.ID(chi.URLParam(r, "party")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, &PrepareResponse{Round: rnd, Value: value})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	at := mpecdh.Position{Epoch: req.Epoch, Round: req.Round, Seq: req.Seq}
	if err = s.verify(req.Party, SubmissionMessage(c.ID(), at, req.Value), req.Signature); err != nil {
		s.fail(w, r, err)
		return
	}
	if err = c.SubmitAt(r.Context(), req.Party, at, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) attest(w http.ResponseWriter, r *http.Request) {
	var req AttestRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err = s.verify(req.Party, AttestationMessage(c.ID(), req.Epoch, req.Tag), req.Signature); err != nil {
		s.fail(w, r, err)
		return
	}
	if err = c.Attest(r.Context(), req.Party, req.Epoch, req.Tag); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) verdict(w http.ResponseWriter, r *http.Request) {
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := c.Verdict(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, &VerdictResponse{Verdict: v})
}

func (s *Server) reconstruct(w http.ResponseWriter, r *http.Request) {
	var req ReconstructRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.ceremony(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err = s.wallet.Reconstruct(r.Context(), c, req.Approvals); err != nil {
		s.fail(w, r, err)
		return
	}
	epoch, err := c.Epoch(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, &ReconstructResponse{Epoch: epoch})
}
