// Package web serves the onboarding form to a browser and runs its
// actions through the session controller.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/keychain"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/checkinecuador/checkin/internal/session"
	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	Controller      *session.Controller
	Beneficiaries   []hive.Beneficiary
	FrontendURL     string
	Community       string
	MaxImageSize    int64
	KeychainTimeout time.Duration
	SessionTTL      time.Duration
	Logger          *zap.Logger
}

// Server is the web form.
type Server struct {
	ctrl      *session.Controller
	store     *store
	community string
	maxImage  int64
	validate  *validator.Validate
	logger    *zap.Logger
}

// New creates a server. Every browser session gets its own Keychain bridge
// and its own in-memory export slot.
func New(opts Options) *Server {
	logger := logging.OrNop(opts.Logger)
	strategyOpts := submit.Options{
		Beneficiaries: opts.Beneficiaries,
		FrontendURL:   opts.FrontendURL,
		Logger:        logger,
	}

	build := func(id string) *client {
		bridge := keychain.New(keychain.Options{Timeout: opts.KeychainTimeout, Logger: logger.With(zap.String("session", id))})
		exports := &submit.MemoryDeliverer{}
		return &client{
			session: session.New(id,
				session.WithVerifier(bridge),
				session.WithStrategy(submit.NewSignedBroadcast(bridge, strategyOpts)),
				session.WithStrategy(submit.NewOfflineExport(exports, strategyOpts)),
			),
			bridge:  bridge,
			exports: exports,
		}
	}

	return &Server{
		ctrl:      opts.Controller,
		store:     newStore(opts.SessionTTL, build),
		community: opts.Community,
		maxImage:  opts.MaxImageSize,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.HTTP(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/image", s.handleImage)
		r.Post("/submit", s.handleSubmit)
		r.Get("/export", s.handleExport)
	})

	r.Get("/keychain/state", func(w http.ResponseWriter, r *http.Request) {
		if cl, ok := s.store.lookup(r); ok {
			cl.bridge.HandleState(w, r)
			return
		}
		keychain.HandleIdle(w, r)
	})
	r.Post("/keychain/result", func(w http.ResponseWriter, r *http.Request) {
		cl, ok := s.store.lookup(r)
		if !ok {
			http.Error(w, "no pending Keychain request", http.StatusConflict)
			return
		}
		cl.bridge.HandleResult(w, r)
	})
	r.Get("/keychain/client.js", keychain.HandleScript)

	return r
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	return s.serve(ctx, listener)
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(listener)
	}()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case now := <-sweep.C:
			if n := s.store.sweep(now); n > 0 {
				s.logger.Debug("dropped idle sessions", zap.Int("count", n))
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.store.get(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(formHTML))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": s.store.size(),
	})
}

type sessionResponse struct {
	session.State
	Community    string          `json:"community"`
	MaxImageSize int64           `json:"maxImageSize"`
	Last         *resultResponse `json:"last,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var st session.State
	if cl, ok := s.store.lookup(r); ok {
		st = cl.session.State()
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{
		State:        st,
		Community:    s.community,
		MaxImageSize: s.maxImage,
		Last:         newResultResponse(st.Last),
	})
}

type loginRequest struct {
	Handle string `json:"handle" validate:"required,max=17"`
	Secret string `json:"secret" validate:"omitempty,max=64"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	cl := s.store.get(w, r)
	if err := s.ctrl.Login(r.Context(), cl.session, req.Handle, req.Secret); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cl.session.State())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cl, ok := s.store.lookup(r)
	if !ok {
		s.respondJSON(w, http.StatusOK, session.State{})
		return
	}
	s.ctrl.Logout(cl.session)
	cl.exports.Reset()
	s.respondJSON(w, http.StatusOK, cl.session.State())
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	cl, ok := s.store.lookup(r)
	if !ok {
		s.respondError(w, noSession("upload"))
		return
	}

	// Leave room for the multipart envelope; the gateway enforces the real limit.
	if s.maxImage > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxImage+1<<20)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, apperr.Validation("upload", "Image is too large"))
			return
		}
		s.respondError(w, apperr.Validation("upload", "Please choose an image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, apperr.Validation("upload", "Could not read the image"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	res, err := s.ctrl.UploadImage(r.Context(), cl.session, data, mimeType)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"url":      res.URL,
		"embedded": res.Embedded,
	})
}

type submitRequest struct {
	Strategy  string `json:"strategy" validate:"omitempty,oneof=broadcast keychain export offline json"`
	Intro     string `json:"intro" validate:"max=20000"`
	Onboarder string `json:"onboarder" validate:"max=17"`
}

type resultResponse struct {
	Kind     submit.Kind `json:"kind"`
	Author   string      `json:"author"`
	Permlink string      `json:"permlink"`
	TxID     string      `json:"txId,omitempty"`
	URL      string      `json:"url,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Download string      `json:"download,omitempty"`
}

func newResultResponse(res *submit.Result) *resultResponse {
	if res == nil {
		return nil
	}
	out := &resultResponse{
		Kind:     res.Kind,
		Author:   res.Author,
		Permlink: res.Permlink,
		TxID:     res.TxID,
		URL:      res.URL,
		Filename: res.Filename,
	}
	if res.Kind == submit.KindExport {
		out.Download = "/api/export"
	}
	return out
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := submit.ParseKind(req.Strategy)
	if err != nil {
		s.respondError(w, apperr.Validation("submit", "%s", err.Error()))
		return
	}

	cl, ok := s.store.lookup(r)
	if !ok {
		s.respondError(w, noSession("submit"))
		return
	}
	res, err := s.ctrl.Submit(r.Context(), cl.session, kind, req.Intro, req.Onboarder)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var (
		name string
		data []byte
		ok   bool
	)
	if cl, found := s.store.lookup(r); found {
		name, data, ok = cl.exports.Last()
	}
	if !ok {
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: "Nothing has been exported yet", Kind: apperr.KindValidation.String()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Write(data)
}

// noSession is the error for requests that carry no known session cookie.
func noSession(op string) error {
	return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "Please log in first", Err: session.ErrNotLoggedIn}
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		s.respondError(w, apperr.Validation("request", "Invalid request body"))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.respondError(w, apperr.Validation("request", "%s", formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is too long", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, keychain.ErrBusy) {
		return http.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindUpload, apperr.KindSubmission:
		return http.StatusBadGateway
	case apperr.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{
		Error: apperr.UserMessage(err),
		Kind:  apperr.KindOf(err).String(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
