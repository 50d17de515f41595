package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/checkinecuador/checkin/internal/post"
	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/checkinecuador/checkin/internal/upload"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds a single remote call made by the controller.
const DefaultCallTimeout = 15 * time.Second

var (
	ErrBusy        = errors.New("already in progress")
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoImage     = errors.New("no image uploaded")
	ErrDiscarded   = errors.New("session was logged out")
)

// AccountValidator checks handles and posting keys against the ledger.
type AccountValidator interface {
	AccountExists(ctx context.Context, handle string) bool
	ValidateSecretFormat(secret string) bool
	ValidateSecretMatchesAccount(ctx context.Context, handle, secret string) error
}

// Uploader stores a selfie somewhere a post can link to.
type Uploader interface {
	UploadWithProgress(ctx context.Context, data []byte, mimeType string, onProgress upload.ProgressFunc) (*upload.Result, error)
}

// LoginVerifier proves control of an account without a raw key.
type LoginVerifier interface {
	VerifyLogin(ctx context.Context, handle string) error
}

// Options configures a Controller.
type Options struct {
	Settings    post.Settings
	CallTimeout time.Duration
	Validator   AccountValidator
	Uploader    Uploader
	Strategies  []submit.Strategy
	Verifier    LoginVerifier
	Now         func() time.Time
	Logger      *zap.Logger
}

// Controller runs form actions against sessions. It holds no per-user
// state and is safe for concurrent use.
type Controller struct {
	settings    post.Settings
	callTimeout time.Duration
	validator   AccountValidator
	uploader    Uploader
	strategies  map[submit.Kind]submit.Strategy
	verifier    LoginVerifier
	now         func() time.Time
	logger      *zap.Logger
}

// NewController creates a controller.
func NewController(opts Options) *Controller {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		settings:    opts.Settings,
		callTimeout: opts.CallTimeout,
		validator:   opts.Validator,
		uploader:    opts.Uploader,
		strategies:  make(map[submit.Kind]submit.Strategy),
		verifier:    opts.Verifier,
		now:         opts.Now,
		logger:      logging.OrNop(opts.Logger),
	}
	for _, s := range opts.Strategies {
		c.strategies[s.Kind()] = s
	}
	return c
}

// Login identifies the session's user. With a secret, the secret must be a
// posting key of the account; it is used for that check only and is not
// kept. Without one, the Keychain verifier must confirm the login.
func (c *Controller) Login(ctx context.Context, s *Session, handle, secret string) error {
	handle = hive.NormalizeHandle(handle)
	secret = strings.TrimSpace(secret)

	method := MethodKeychain
	if secret != "" {
		method = MethodKey
	}

	gen, sessionCtx, ok := s.begin(&s.loggingIn)
	if !ok {
		return busy("login", "A login is already in progress")
	}
	defer s.end(&s.loggingIn)

	ctx, cancel := bind(ctx, sessionCtx)
	defer cancel()

	err := c.login(ctx, s, handle, secret, method)
	if err == nil {
		s.mu.Lock()
		if s.gen != gen {
			err = apperr.Transport("login", ErrDiscarded, "login cancelled")
		} else {
			s.handle = handle
			s.method = method
			s.touch()
		}
		s.mu.Unlock()
	}
	if err != nil {
		metrics.Login(method, metrics.OutcomeFailed)
		c.logger.Info("login failed", zap.String("handle", handle), zap.String("method", method), zap.Error(err))
		return err
	}

	metrics.Login(method, metrics.OutcomeOK)
	c.logger.Info("logged in", zap.String("handle", handle), zap.String("method", method))
	return nil
}

func (c *Controller) login(ctx context.Context, s *Session, handle, secret, method string) error {
	if !hive.ValidateHandle(handle) {
		return apperr.Validation("login", "Please enter a valid Hive username")
	}

	if method == MethodKey && !c.validator.ValidateSecretFormat(secret) {
		return apperr.Authentication("login", nil, "That does not look like a posting key")
	}

	verifier := c.verifierFor(s)
	if method == MethodKeychain && verifier == nil {
		return apperr.Validation("login", "Please enter your posting key")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if !c.validator.AccountExists(callCtx, handle) {
		if err := ctx.Err(); err != nil {
			return apperr.Transport("login", err, "login cancelled")
		}
		return apperr.Authentication("login", hive.ErrAccountNotFound, "account @%s not found", handle)
	}

	if method == MethodKey {
		return c.validator.ValidateSecretMatchesAccount(callCtx, handle, secret)
	}

	// Keychain waits are bounded by the bridge, not the call timeout.
	if err := verifier.VerifyLogin(ctx, handle); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return apperr.Transport("login", err, "no answer from Keychain")
		}
		return apperr.Authentication("login", err, "%s", err.Error())
	}
	return nil
}

// Logout forgets the user and cancels anything still running.
func (c *Controller) Logout(s *Session) {
	handle := s.Handle()
	s.logout()
	if handle != "" {
		c.logger.Info("logged out", zap.String("handle", handle))
	}
}

// UploadImage uploads the session's selfie.
func (c *Controller) UploadImage(ctx context.Context, s *Session, data []byte, mimeType string) (*upload.Result, error) {
	return c.UploadImageWithProgress(ctx, s, data, mimeType, nil)
}

// UploadImageWithProgress is UploadImage with a progress callback. On
// failure only the image is cleared; the login stays.
func (c *Controller) UploadImageWithProgress(ctx context.Context, s *Session, data []byte, mimeType string, onProgress upload.ProgressFunc) (*upload.Result, error) {
	if s.Handle() == "" {
		return nil, notLoggedIn("upload")
	}

	gen, sessionCtx, ok := s.begin(&s.uploading)
	if !ok {
		return nil, busy("upload", "An upload is already in progress")
	}
	defer s.end(&s.uploading)

	ctx, cancel := bind(ctx, sessionCtx)
	defer cancel()

	// The gateway bounds each host attempt on its own.
	res, err := c.uploader.UploadWithProgress(ctx, data, mimeType, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, apperr.Transport("upload", ErrDiscarded, "upload cancelled")
	}
	if err != nil {
		s.image = nil
		return nil, err
	}
	s.image = res
	return res, nil
}

// Compose builds the post the session would submit, without submitting.
func (c *Controller) Compose(s *Session, intro, onboarder string) (*post.Composed, error) {
	s.mu.Lock()
	handle, image := s.handle, s.image
	s.mu.Unlock()

	if handle == "" {
		return nil, notLoggedIn("compose")
	}
	if image == nil {
		return nil, noImage("compose")
	}
	return post.Compose(post.Submission{
		IntroText:       intro,
		OnboarderHandle: onboarder,
		ImageURL:        image.URL,
	}, post.Identity{Handle: handle}, c.now(), c.settings)
}

// Submit composes the post and hands it to the strategy of the given kind.
// On success the image is cleared for the next post; the login stays.
func (c *Controller) Submit(ctx context.Context, s *Session, kind submit.Kind, intro, onboarder string) (*submit.Result, error) {
	gen, sessionCtx, ok := s.begin(&s.submitting)
	if !ok {
		return nil, busy("submit", "A submission is already in progress")
	}
	defer s.end(&s.submitting)

	composed, err := c.Compose(s, intro, onboarder)
	if err != nil {
		return nil, err
	}

	strategy := c.strategyFor(s, kind)
	if strategy == nil {
		return nil, apperr.Validation("submit", "Submission method %q is not available", kind)
	}

	ctx, cancel := bind(ctx, sessionCtx)
	defer cancel()
	if kind != submit.KindBroadcast {
		var cancelCall context.CancelFunc
		ctx, cancelCall = context.WithTimeout(ctx, c.callTimeout)
		defer cancelCall()
	}

	id := post.Identity{Handle: composed.Metadata.AuthorHandle}
	c.logger.Debug("submitting post",
		zap.String("handle", id.Handle),
		zap.String("permlink", composed.Permlink),
		zap.String("strategy", string(kind)))

	res, err := strategy.Submit(ctx, composed, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, apperr.Transport("submit", ErrDiscarded, "submission cancelled")
	}
	if err != nil {
		return nil, err
	}
	s.image = nil
	s.last = res
	return res, nil
}

func (c *Controller) strategyFor(s *Session, kind submit.Kind) submit.Strategy {
	if st, ok := s.strategies[kind]; ok {
		return st
	}
	return c.strategies[kind]
}

func (c *Controller) verifierFor(s *Session) LoginVerifier {
	if s.verifier != nil {
		return s.verifier
	}
	return c.verifier
}

func sentinel(op string, err error, msg string) error {
	return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: msg, Err: err}
}

func busy(op, msg string) error { return sentinel(op, ErrBusy, msg) }

func notLoggedIn(op string) error { return sentinel(op, ErrNotLoggedIn, "Please log in first") }

func noImage(op string) error { return sentinel(op, ErrNoImage, "Please add a selfie first") }
