package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/cli"
	"github.com/checkinecuador/checkin/internal/config"
	"github.com/checkinecuador/checkin/internal/help"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/keychain"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/session"
	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/checkinecuador/checkin/internal/ui"
	"github.com/checkinecuador/checkin/internal/upload"
	"github.com/checkinecuador/checkin/internal/web"
	"github.com/checkinecuador/checkin/internal/workflow"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Set up signal handler first - this handles Ctrl+C globally
	sigHandler := cli.NewSignalHandler()
	defer sigHandler.Stop()

	os.Exit(run(sigHandler))
}

func run(sigHandler *cli.SignalHandler) int {
	ctx := sigHandler.Context()
	ui.SetContext(ctx)
	ui.SetVersion(version)

	opts := cli.ParseCommand(os.Args[1:])

	if opts.Global.NoColor {
		ui.SetNoColor(true)
	}
	switch {
	case opts.Global.Quiet:
		ui.SetVerbosity(ui.VerbQuiet)
	case opts.Global.Verbose:
		ui.SetVerbosity(ui.VerbVerbose)
	}

	if opts.Global.Help {
		help.HandleHelp(os.Stdout, opts.Command, opts.Args)
		return 0
	}
	if opts.Global.Version {
		fmt.Print(ui.RenderLogo())
		fmt.Printf("checkin version %s\n", version)
		return 0
	}

	if opts.Command == cli.CommandInit {
		return exitCode(runInit(opts), zap.NewNop())
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.FormatError(err.Error(), "", "check "+opts.Global.Config+" and your CHECKIN_* variables"))
		return 1
	}

	level := cfg.Log.Level
	if opts.Global.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	app := newApp(cfg, logger)
	defer app.Close()

	switch opts.Command {
	case cli.CommandServe:
		err = runServe(ctx, opts, app)
	case cli.CommandPost:
		err = runPost(ctx, opts, app)
	case cli.CommandCheckAccount:
		err = runCheckAccount(ctx, opts, app)
	case cli.CommandCheckKey:
		err = runCheckKey(ctx, opts, app)
	}

	return exitCode(err, logger)
}

func exitCode(err error, logger *zap.Logger) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), errors.Is(err, ui.ErrInterrupted):
		return 130 // Standard exit code for Ctrl+C
	}
	logger.Debug("command failed", zap.Error(err))
	ui.ErrorStatus("Error", apperr.UserMessage(err))
	return 1
}

// loadConfig reads checkin.yaml when present, then applies .env and
// CHECKIN_* overrides and CLI flags. A missing default config file means
// built-in defaults; a missing file given with -c is an error.
func loadConfig(opts *cli.Options) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.Global.EnvFile); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if _, err := os.Stat(opts.Global.Config); err == nil {
		if cfg, err = config.Load(opts.Global.Config); err != nil {
			return nil, err
		}
	} else if opts.Global.Config != config.DefaultFile {
		return nil, fmt.Errorf("config file %s not found", opts.Global.Config)
	} else {
		cfg = config.Default()
	}

	if err := cfg.ApplyEnv(config.GetEnv); err != nil {
		return nil, err
	}
	if opts.Serve.Port != 0 {
		cfg.Server.Port = opts.Serve.Port
	}
	if opts.Serve.Listen != "" {
		cfg.Server.Listen = opts.Serve.Listen
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app holds the collaborators shared by every command.
type app struct {
	cfg           *config.Config
	logger        *zap.Logger
	rpc           *hive.RPCClient
	validator     *hive.Validator
	gateway       *upload.Gateway
	beneficiaries []hive.Beneficiary
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	rpc := hive.NewRPCClient(hive.RPCOptions{
		Nodes:           cfg.RPC.Nodes,
		BreakerFailures: cfg.RPC.BreakerFailures,
		Logger:          logger.Named("rpc"),
	})

	gateway := upload.NewGateway(upload.Options{
		Hosts: lo.Map(cfg.Upload.Hosts, func(h config.ImageHost, _ int) upload.Host {
			return upload.Host{Endpoint: h.Endpoint, ClientID: h.ClientID}
		}),
		MaxSize:       cfg.Upload.MaxSize,
		AllowFallback: cfg.Upload.AllowFallback,
		Logger:        logger.Named("upload"),
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		rpc:       rpc,
		validator: hive.NewValidator(rpc, nil, logger.Named("validator")),
		gateway:   gateway,
		beneficiaries: []hive.Beneficiary{
			{Account: cfg.Beneficiary.Account, Weight: cfg.Beneficiary.Weight},
		},
	}
}

func (a *app) Close() {
	a.rpc.Close()
	a.gateway.Close()
}

func (a *app) strategyOptions() submit.Options {
	return submit.Options{
		Beneficiaries: a.beneficiaries,
		FrontendURL:   a.cfg.FrontendURL,
		Logger:        a.logger.Named("submit"),
	}
}

func (a *app) controller(strategies []submit.Strategy, verifier session.LoginVerifier) *session.Controller {
	return session.NewController(session.Options{
		Settings:    a.cfg.PostSettings(),
		CallTimeout: a.cfg.CallTimeout,
		Validator:   a.validator,
		Uploader:    a.gateway,
		Strategies:  strategies,
		Verifier:    verifier,
		Logger:      a.logger.Named("session"),
	})
}

func runServe(ctx context.Context, opts *cli.Options, a *app) error {
	srv := web.New(web.Options{
		Controller:      a.controller(nil, nil),
		Beneficiaries:   a.beneficiaries,
		FrontendURL:     a.cfg.FrontendURL,
		Community:       a.cfg.Community,
		MaxImageSize:    a.cfg.Upload.MaxSize,
		KeychainTimeout: a.cfg.KeychainTimeout,
		Logger:          a.logger.Named("web"),
	})

	addr := a.cfg.ListenAddr()
	url := fmt.Sprintf("http://%s/", addr)
	ui.Status("Serving", url)
	ui.Detail("Metrics", url+"metrics")

	if !opts.Serve.NoBrowser && ui.HasDisplay() {
		if err := keychain.OpenBrowser(url); err != nil {
			a.logger.Debug("could not open browser", zap.Error(err))
		}
	}

	if err := srv.Serve(ctx, addr); err != nil {
		return apperr.Transport("serve", err, "%v", err)
	}
	return nil
}

func runPost(ctx context.Context, opts *cli.Options, a *app) error {
	bridge := keychain.New(keychain.Options{
		Timeout: a.cfg.KeychainTimeout,
		Logger:  a.logger.Named("keychain"),
	})
	defer bridge.Close()

	stratOpts := a.strategyOptions()
	ctrl := a.controller([]submit.Strategy{
		submit.NewSignedBroadcast(bridge, stratOpts),
		submit.NewOfflineExport(submit.DirDeliverer{Dir: a.cfg.ResolvePath(a.cfg.ExportDir)}, stratOpts),
	}, bridge)

	startBridge := func() error {
		url, err := bridge.Start(opts.Post.Port)
		if err != nil {
			return err
		}
		if !opts.Post.NoBrowser && ui.HasDisplay() {
			if err := keychain.OpenBrowser(url); err == nil {
				ui.Status("Opened", url+" (keep this tab open, Keychain asks there)")
				return nil
			}
		}
		ui.WarningStatus("Open", url+" in a browser with Hive Keychain installed")
		return nil
	}

	poster := workflow.NewPoster(workflow.Options{
		CLI:         opts,
		Config:      a.cfg,
		Controller:  ctrl,
		Session:     session.New("cli"),
		StartBridge: startBridge,
		Secret:      config.GetEnv("POSTING_KEY"),
		Logger:      a.logger,
	})
	return poster.Execute(ctx)
}

// runInit walks through the community settings and writes the config
// file, offering the values of an existing file as defaults.
func runInit(opts *cli.Options) error {
	path := opts.Global.Config
	if !opts.Init.Force {
		if _, err := os.Stat(path); err == nil {
			return apperr.Validation("init", "%s already exists; use --force to rewrite it", path)
		}
	}

	var existing *config.Config
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			return apperr.Validation("init", "%s: %v", path, err)
		}
		existing = cfg
	}

	ui.Status("Setting up", path)
	cfg, err := config.RunWizard(existing, config.TerminalPrompter{})
	if err != nil {
		if errors.Is(err, ui.ErrInterrupted) {
			return err
		}
		return apperr.Validation("init", "%v", err)
	}
	if err := config.Save(cfg, path, opts.Init.Force); err != nil {
		return apperr.Validation("init", "%v", err)
	}

	ui.Status("Saved", path)
	ui.PrintSummary([]ui.KeyValue{
		{Key: "Community", Value: cfg.Community},
		{Key: "Beneficiary", Value: fmt.Sprintf("@%s (%d%%)", cfg.Beneficiary.Account, cfg.Beneficiary.Weight/100)},
		{Key: "Image hosts", Value: fmt.Sprintf("%d", len(cfg.Upload.Hosts))},
	})
	return nil
}

func runCheckAccount(ctx context.Context, opts *cli.Options, a *app) error {
	handle := hive.NormalizeHandle(opts.Args[0])
	if !hive.ValidateHandle(handle) {
		return apperr.Validation("check-account", "%q is not a valid Hive username", handle)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	account, err := a.rpc.GetAccount(ctx, handle)
	if errors.Is(err, hive.ErrAccountNotFound) {
		return apperr.Authentication("check-account", err, "account @%s not found", handle)
	}
	if err != nil {
		return apperr.Transport("check-account", err, "could not reach a Hive node")
	}

	ui.Status("Found", "@"+account.Name)
	ui.Result(account.Name)
	return nil
}

func runCheckKey(ctx context.Context, opts *cli.Options, a *app) error {
	handle := hive.NormalizeHandle(opts.Args[0])
	if !hive.ValidateHandle(handle) {
		return apperr.Validation("check-key", "%q is not a valid Hive username", handle)
	}

	secret := config.GetEnv("POSTING_KEY")
	if secret == "" {
		var err error
		if secret, err = ui.PromptSecret("Posting key for @" + handle); err != nil {
			return err
		}
	}
	if !hive.ValidateSecretFormat(secret) {
		return apperr.Authentication("check-key", nil, "That does not look like a posting key")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	if err := a.validator.ValidateSecretMatchesAccount(ctx, handle, secret); err != nil {
		return err
	}
	ui.Status("Verified", "the key is a posting key of @"+handle)
	return nil
}
