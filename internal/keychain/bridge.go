// Package keychain lets the process ask the Hive Keychain browser extension
// to sign on its behalf. A page served by the bridge polls for the pending
// request, hands it to the extension and posts the answer back.
package keychain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPort is the default port for the standalone bridge page.
const DefaultPort = 17017

// DefaultTimeout is how long a request waits for the browser.
const DefaultTimeout = 120 * time.Second

// DefaultAppName appears in the login message the user signs.
const DefaultAppName = "CheckinEcuador"

// KeyType is the authority every request asks Keychain to use.
const KeyType = "Posting"

// Request kinds.
const (
	KindBroadcast  = "broadcast"
	KindSignBuffer = "signBuffer"
)

var (
	// ErrBusy is returned when a request is already waiting for the browser.
	ErrBusy = errors.New("keychain: a request is already pending")

	// ErrTimeout is returned when the browser never answered.
	ErrTimeout = fmt.Errorf("keychain: no answer from the browser: %w", context.DeadlineExceeded)

	// ErrUnknownRequest is returned when a response does not match the pending request.
	ErrUnknownRequest = errors.New("keychain: no pending request with that id")
)

// RejectedError is returned when Keychain answered with success=false.
// Message is whatever the extension reported, unchanged.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "keychain rejected the request"
	}
	return e.Message
}

// Request is what the browser page picks up from /keychain/state.
type Request struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Handle     string           `json:"handle"`
	KeyType    string           `json:"keyType"`
	Operations []hive.Operation `json:"operations,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// Response is the Keychain callback payload, tagged with the request id.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Options configures a Bridge.
type Options struct {
	Timeout time.Duration
	AppName string
	Logger  *zap.Logger
	Now     func() time.Time
}

// Bridge holds at most one request for the browser at a time.
type Bridge struct {
	timeout time.Duration
	appName string
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending *Request
	result  chan Response

	server   *http.Server
	listener net.Listener
}

// New creates a bridge. Nothing is served until Start or Routes is called.
func New(opts Options) *Bridge {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bridge{
		timeout: opts.Timeout,
		appName: opts.AppName,
		logger:  logging.OrNop(opts.Logger),
		now:     opts.Now,
	}
}

// SignAndBroadcast asks Keychain to sign ops with the handle's posting key
// and broadcast them. It returns the transaction id when Keychain reports one.
func (b *Bridge) SignAndBroadcast(ctx context.Context, handle string, ops []hive.Operation) (string, error) {
	resp, err := b.request(ctx, Request{
		Kind:       KindBroadcast,
		Handle:     handle,
		KeyType:    KeyType,
		Operations: ops,
	})
	if err != nil {
		return "", err
	}
	return transactionID(resp.Result), nil
}

// VerifyLogin asks Keychain to sign a login message with the handle's
// posting key. A nil error means the extension holds that key.
func (b *Bridge) VerifyLogin(ctx context.Context, handle string) error {
	_, err := b.request(ctx, Request{
		Kind:    KindSignBuffer,
		Handle:  handle,
		KeyType: KeyType,
		Message: LoginMessage(b.appName, b.now()),
	})
	return err
}

// LoginMessage is the buffer signed to prove control of an account.
func LoginMessage(app string, at time.Time) string {
	return fmt.Sprintf("Login to %s at %d", app, at.UnixMilli())
}

// Pending returns a copy of the request waiting for the browser, or nil.
func (b *Bridge) Pending() *Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	req := *b.pending
	return &req
}

// Resolve hands a browser response to the waiting request.
func (b *Bridge) Resolve(resp Response) error {
	b.mu.Lock()
	if b.pending == nil || b.pending.ID != resp.ID {
		b.mu.Unlock()
		return ErrUnknownRequest
	}
	ch := b.result
	b.pending = nil
	b.result = nil
	b.mu.Unlock()

	ch <- resp
	return nil
}

func (b *Bridge) request(ctx context.Context, req Request) (Response, error) {
	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return Response{}, ErrBusy
	}
	req.ID = uuid.NewString()
	ch := make(chan Response, 1)
	b.pending = &req
	b.result = ch
	b.mu.Unlock()

	defer b.clear(req.ID)

	b.logger.Debug("keychain request pending",
		zap.String("id", req.ID),
		zap.String("kind", req.Kind),
		zap.String("handle", req.Handle))

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			msg := resp.Message
			if msg == "" {
				msg = resp.Error
			}
			b.logger.Info("keychain rejected request", zap.String("kind", req.Kind), zap.String("message", msg))
			return resp, &RejectedError{Message: msg}
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-timer.C:
		return Response{}, ErrTimeout
	}
}

func (b *Bridge) clear(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil && b.pending.ID == id {
		b.pending = nil
		b.result = nil
	}
}

// transactionID pulls the id out of a broadcast result. Keychain has
// reported it as both "id" and "tx_id" across versions.
func transactionID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var result struct {
		ID   string `json:"id"`
		TxID string `json:"tx_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return ""
	}
	if result.ID != "" {
		return result.ID
	}
	return result.TxID
}

type stateResponse struct {
	Mode    string   `json:"mode"`
	Request *Request `json:"request,omitempty"`
}

// HandleState reports the pending request, if any.
func (b *Bridge) HandleState(w http.ResponseWriter, r *http.Request) {
	state := stateResponse{Mode: "idle"}
	if req := b.Pending(); req != nil {
		state.Mode = req.Kind
		state.Request = req
	}
	writeState(w, state)
}

// HandleIdle answers a state poll for which there is no bridge.
func HandleIdle(w http.ResponseWriter, r *http.Request) {
	writeState(w, stateResponse{Mode: "idle"})
}

func writeState(w http.ResponseWriter, state stateResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(state)
}

// HandleResult accepts the Keychain callback payload from the page.
func (b *Bridge) HandleResult(w http.ResponseWriter, r *http.Request) {
	var resp Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := b.Resolve(resp); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleScript serves the polling script shared by every page.
func HandleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write([]byte(ClientScript))
}

// Routes mounts the bridge endpoints on r.
func (b *Bridge) Routes(r chi.Router) {
	r.Get("/keychain/state", b.HandleState)
	r.Post("/keychain/result", b.HandleResult)
	r.Get("/keychain/client.js", HandleScript)
}

// Start serves the bridge page on 127.0.0.1:port and returns its URL.
// If port is 0, DefaultPort is used.
func (b *Bridge) Start(port int) (string, error) {
	if port == 0 {
		port = DefaultPort
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("failed to start keychain bridge: %w", err)
	}
	b.listener = listener

	r := chi.NewRouter()
	r.Use(logging.HTTP(b.logger))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(bridgeHTML))
	})
	b.Routes(r)

	b.server = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go b.server.Serve(listener)

	return fmt.Sprintf("http://localhost:%d/", port), nil
}

// Close shuts down the standalone server, if one was started.
func (b *Bridge) Close() error {
	if b.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return b.server.Shutdown(ctx)
}

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
