// Package workflow runs the terminal version of the onboarding form:
// login, selfie, introduction, preview and publish.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/cli"
	"github.com/checkinecuador/checkin/internal/config"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/post"
	"github.com/checkinecuador/checkin/internal/session"
	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/checkinecuador/checkin/internal/ui"
	"github.com/checkinecuador/checkin/internal/upload"
	"go.uber.org/zap"
)

// Options configures a Poster.
type Options struct {
	CLI        *cli.Options
	Config     *config.Config
	Controller *session.Controller
	Session    *session.Session

	// StartBridge makes the Keychain page available. It is called before
	// the first request that needs the browser; nil means Keychain is
	// not available.
	StartBridge func() error

	// Secret is a posting key supplied out of band (CHECKIN_POSTING_KEY).
	Secret string

	Logger *zap.Logger
}

// Poster walks one user through publishing their post.
type Poster struct {
	opts        *cli.Options
	cfg         *config.Config
	ctrl        *session.Controller
	session     *session.Session
	startBridge func() error
	bridgeUp    bool
	secret      string
	logger      *zap.Logger

	// Gathered along the way
	intro     string
	onboarder string
	composed  *post.Composed
	result    *submit.Result
}

// NewPoster creates the post workflow.
func NewPoster(o Options) *Poster {
	return &Poster{
		opts:        o.CLI,
		cfg:         o.Config,
		ctrl:        o.Controller,
		session:     o.Session,
		startBridge: o.StartBridge,
		secret:      o.Secret,
		logger:      logging.OrNop(o.Logger),
	}
}

// Result is the outcome of the last successful Execute.
func (p *Poster) Result() *submit.Result {
	return p.result
}

// Execute runs all steps. The session is logged out when it returns.
func (p *Poster) Execute(ctx context.Context) error {
	defer p.ctrl.Logout(p.session)

	steps := ui.NewStepTracker(4)

	steps.StartStep("Log in")
	if err := p.login(ctx); err != nil {
		return err
	}

	steps.StartStep("Selfie")
	if err := p.uploadSelfie(ctx); err != nil {
		return err
	}

	steps.StartStep("Introduction")
	if err := p.gatherText(); err != nil {
		return err
	}

	steps.StartStep("Publish")
	if err := p.preview(); err != nil {
		return err
	}
	if !p.opts.Post.Yes && !p.opts.Global.Quiet {
		ok, err := ui.Confirm("Publish this post?", true)
		if err != nil {
			return err
		}
		if !ok {
			ui.Status("Aborted", "nothing was published")
			return nil
		}
	}
	return p.publish(ctx)
}

func (p *Poster) login(ctx context.Context) error {
	handle := p.opts.Post.Handle
	if handle == "" {
		if !p.opts.IsInteractive() {
			return apperr.Validation("login", "Please give a username")
		}
		var err error
		if handle, err = ui.Prompt("Hive username: "); err != nil {
			return err
		}
	}
	handle = hive.NormalizeHandle(handle)

	secret := p.secret
	p.secret = ""
	if secret == "" && p.opts.IsInteractive() {
		var err error
		secret, err = ui.PromptSecret("Posting key (empty to use Hive Keychain)")
		if err != nil {
			return err
		}
	}

	message := fmt.Sprintf("Checking @%s...", handle)
	if secret == "" {
		if err := p.ensureBridge(); err != nil {
			return err
		}
		message = "Waiting for Hive Keychain to sign the login message..."
	}

	err := WithSpinner(p.opts, message, func() error {
		return p.ctrl.Login(ctx, p.session, handle, secret)
	})
	if err != nil {
		return err
	}

	state := p.session.State()
	ui.Status("Logged in", fmt.Sprintf("@%s (%s)", state.Handle, state.Method))
	return nil
}

func (p *Poster) uploadSelfie(ctx context.Context) error {
	path := p.opts.Post.Image
	if path == "" {
		if !p.opts.IsInteractive() {
			return apperr.Validation("upload", "Please give a selfie with --image")
		}
		var err error
		if path, err = ui.Prompt("Path to your selfie: "); err != nil {
			return err
		}
	}
	path = p.cfg.ResolvePath(expandHome(strings.Trim(path, `"' `)))

	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Validation("upload", "Cannot read %s: %v", filepath.Base(path), err)
	}
	if limit := p.cfg.Upload.MaxSize; limit > 0 && int64(len(data)) > limit {
		return apperr.Validation("upload", "%s is %s; the limit is %s",
			filepath.Base(path), upload.HumanSize(int64(len(data))), upload.HumanSize(limit))
	}

	mimeType := detectImageMimeType(path, data)
	if !upload.IsImage(mimeType) {
		return apperr.Validation("upload", "%s is not an image", filepath.Base(path))
	}

	var onProgress upload.ProgressFunc
	var bar *ui.Progress
	if !p.opts.Global.Quiet {
		bar = ui.NewProgress("Uploading", int64(len(data)))
		onProgress = bar.Callback()
	}

	res, err := p.ctrl.UploadImageWithProgress(ctx, p.session, data, mimeType, onProgress)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return err
	}

	if res.Embedded {
		ui.WarningStatus("Embedded", fmt.Sprintf("%s (image hosts unavailable, the selfie goes inside the post)", filepath.Base(path)))
	} else {
		ui.Status("Uploaded", fmt.Sprintf("%s (%s)", filepath.Base(path), upload.HumanSize(int64(len(data)))))
		ui.Detail("URL", res.URL)
	}
	return nil
}

func (p *Poster) gatherText() error {
	intro := p.opts.Post.Intro
	if intro == "" && p.opts.Post.IntroFile != "" {
		data, err := os.ReadFile(p.cfg.ResolvePath(p.opts.Post.IntroFile))
		if err != nil {
			return apperr.Validation("compose", "Cannot read %s: %v", p.opts.Post.IntroFile, err)
		}
		intro = string(data)
	}
	if strings.TrimSpace(intro) == "" && p.opts.IsInteractive() {
		var err error
		intro, err = ui.EditText("Introduce yourself: who you are, where you live, what you do", "Hola! I'm...", "")
		if err != nil {
			return err
		}
	}

	onboarder := p.opts.Post.Onboarder
	if onboarder == "" && p.opts.IsInteractive() {
		var err error
		if onboarder, err = ui.Prompt("Who onboarded you? @"); err != nil {
			return err
		}
	}

	p.intro = intro
	p.onboarder = onboarder
	return nil
}

// preview composes the post once to show the user what will be published.
// Validation problems surface here, before any strategy is picked.
func (p *Poster) preview() error {
	composed, err := p.ctrl.Compose(p.session, p.intro, p.onboarder)
	if err != nil {
		return err
	}
	p.composed = composed

	ui.PrintSummary([]ui.KeyValue{
		{Key: "Title", Value: composed.Title},
		{Key: "Permlink", Value: composed.Permlink},
		{Key: "Community", Value: p.cfg.Community},
		{Key: "Tags", Value: strings.Join(composed.Metadata.Tags, ", ")},
		{Key: "Beneficiary", Value: fmt.Sprintf("@%s (%d%%)", p.cfg.Beneficiary.Account, p.cfg.Beneficiary.Weight/100)},
	})

	if p.opts.Global.Quiet {
		return nil
	}
	rendered, err := ui.RenderMarkdown(previewBody(composed.Body), 80)
	if err != nil {
		p.logger.Debug("markdown preview failed", zap.Error(err))
		fmt.Fprintln(ui.Out, previewBody(composed.Body))
		return nil
	}
	fmt.Fprint(ui.Out, rendered)
	return nil
}

func (p *Poster) publish(ctx context.Context) error {
	kind, err := p.chooseStrategy()
	if err != nil {
		return err
	}

	message := "Preparing the transaction..."
	if kind == submit.KindBroadcast {
		if err := p.ensureBridge(); err != nil {
			return err
		}
		message = "Waiting for Hive Keychain to sign and broadcast..."
	}

	var res *submit.Result
	err = WithSpinner(p.opts, message, func() error {
		var err error
		res, err = p.ctrl.Submit(ctx, p.session, kind, p.intro, p.onboarder)
		return err
	})
	if err != nil {
		return err
	}
	p.result = res

	switch res.Kind {
	case submit.KindBroadcast:
		ui.Status("Published", res.URL)
		if res.TxID != "" {
			ui.Detail("Transaction", res.TxID)
		}
		ui.Result(res.URL)
	default:
		ui.Status("Saved", res.Location)
		ui.Status("", ui.Dim("Broadcast it with any Hive wallet that accepts a transaction file."))
		ui.Result(res.Location)
	}
	return nil
}

func (p *Poster) chooseStrategy() (submit.Kind, error) {
	if p.opts.Post.Strategy != "" {
		return submit.ParseKind(p.opts.Post.Strategy)
	}
	if p.startBridge == nil {
		return submit.KindExport, nil
	}
	if !p.opts.IsInteractive() {
		return submit.KindBroadcast, nil
	}

	idx, err := ui.Select("How do you want to publish?", []string{
		"Sign and broadcast with Hive Keychain",
		"Save the transaction as a JSON file",
	}, 0)
	if err != nil {
		return "", err
	}
	if idx == 1 {
		return submit.KindExport, nil
	}
	return submit.KindBroadcast, nil
}

func (p *Poster) ensureBridge() error {
	if p.bridgeUp {
		return nil
	}
	if p.startBridge == nil {
		return apperr.Validation("keychain", "Hive Keychain is not available here; enter your posting key instead")
	}
	if err := p.startBridge(); err != nil {
		return apperr.Transport("keychain", err, "could not open the Keychain page")
	}
	p.bridgeUp = true
	return nil
}
