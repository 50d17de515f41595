// Package cli handles command-line interface concerns.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/checkinecuador/checkin/internal/submit"
)

// Command represents the active subcommand.
type Command string

const (
	CommandNone         Command = ""
	CommandServe        Command = "serve"
	CommandPost         Command = "post"
	CommandCheckAccount Command = "check-account"
	CommandCheckKey     Command = "check-key"
	CommandInit         Command = "init"
)

// GlobalOptions holds flags available at root level and shared across subcommands.
type GlobalOptions struct {
	Config  string // path to checkin.yaml
	EnvFile string
	Verbose bool
	Quiet   bool
	NoColor bool
	Version bool
	Help    bool
}

// ServeOptions holds flags for the serve subcommand.
type ServeOptions struct {
	Port      int
	Listen    string
	NoBrowser bool
}

// PostOptions holds flags for the post subcommand.
type PostOptions struct {
	Handle    string
	Image     string // path to the selfie
	Intro     string
	IntroFile string
	Onboarder string
	Strategy  string // broadcast or export, asked when empty
	Yes       bool
	Port      int // Keychain bridge port
	NoBrowser bool
}

// InitOptions holds flags for the init subcommand.
type InitOptions struct {
	Force bool
}

// Options holds all CLI configuration options.
type Options struct {
	Command Command
	Args    []string // remaining positional arguments

	Global GlobalOptions
	Serve  ServeOptions
	Post   PostOptions
	Init   InitOptions
}

// ParseCommand parses command-line arguments (without the program name).
// Parse problems are reported on stderr and turn into Help.
func ParseCommand(args []string) *Options {
	return parseCommand(args, os.Stderr)
}

func parseCommand(args []string, stderr io.Writer) *Options {
	opts := &Options{}
	opts.Global.Config = "checkin.yaml"
	opts.Global.EnvFile = ".env"

	if len(args) == 0 {
		opts.Global.Help = true
		return opts
	}

	// Root flags before the subcommand
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-h", "--help", "-help":
			opts.Global.Help = true
			opts.Args = args[1:]
			return opts
		case "-v", "--version", "-version":
			opts.Global.Version = true
			return opts
		case "--verbose":
			opts.Global.Verbose = true
		case "--no-color":
			opts.Global.NoColor = true
		case "-q", "--quiet":
			opts.Global.Quiet = true
		default:
			fmt.Fprintf(stderr, "unknown flag %s\n", args[0])
			opts.Global.Help = true
			return opts
		}
		args = args[1:]
	}
	if len(args) == 0 {
		opts.Global.Help = true
		return opts
	}

	switch args[0] {
	case "serve":
		opts.Command = CommandServe
		parseServeFlags(opts, args[1:], stderr)
	case "post":
		opts.Command = CommandPost
		parsePostFlags(opts, args[1:], stderr)
	case "check-account":
		opts.Command = CommandCheckAccount
		parseCheckFlags(opts, "check-account", args[1:], stderr)
	case "check-key":
		opts.Command = CommandCheckKey
		parseCheckFlags(opts, "check-key", args[1:], stderr)
	case "init":
		opts.Command = CommandInit
		parseInitFlags(opts, args[1:], stderr)
	case "version":
		opts.Global.Version = true
	case "help":
		opts.Global.Help = true
		opts.Args = args[1:]
	default:
		opts.Global.Help = true
		opts.Args = args
	}

	return opts
}

func newFlagSet(name string, opts *Options, stderr io.Writer) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Global.Config, "config", opts.Global.Config, "Path to checkin.yaml")
	fs.StringVar(&opts.Global.Config, "c", opts.Global.Config, "Path to checkin.yaml (alias)")
	fs.StringVar(&opts.Global.EnvFile, "env-file", opts.Global.EnvFile, "Dotenv file with CHECKIN_* overrides")
	fs.BoolVar(&opts.Global.Verbose, "verbose", opts.Global.Verbose, "Debug output")
	fs.BoolVar(&opts.Global.Quiet, "quiet", opts.Global.Quiet, "Minimal output")
	fs.BoolVar(&opts.Global.Quiet, "q", opts.Global.Quiet, "Minimal output (alias)")
	fs.BoolVar(&opts.Global.NoColor, "no-color", opts.Global.NoColor, "Disable colored output")

	showHelp := new(bool)
	fs.BoolVar(showHelp, "h", false, "Show help")
	fs.BoolVar(showHelp, "help", false, "Show help")
	return fs, showHelp
}

var commonValued = map[string]bool{
	"-c": true, "-config": true, "--config": true,
	"-env-file": true, "--env-file": true,
}

func parseServeFlags(opts *Options, args []string, stderr io.Writer) {
	fs, showHelp := newFlagSet("serve", opts, stderr)
	fs.IntVar(&opts.Serve.Port, "port", 0, "Port to listen on (overrides config)")
	fs.StringVar(&opts.Serve.Listen, "listen", "", "Address to listen on (overrides config)")
	fs.BoolVar(&opts.Serve.NoBrowser, "no-browser", false, "Don't open the form in a browser")

	valued := withValued(commonValued, "-port", "--port", "-listen", "--listen")
	if err := fs.Parse(reorderArgsForFlagSet(args, valued)); err != nil || *showHelp {
		opts.Global.Help = true
		return
	}
	opts.Args = fs.Args()
}

func parsePostFlags(opts *Options, args []string, stderr io.Writer) {
	fs, showHelp := newFlagSet("post", opts, stderr)
	fs.StringVar(&opts.Post.Handle, "u", "", "Hive username")
	fs.StringVar(&opts.Post.Handle, "user", "", "Hive username")
	fs.StringVar(&opts.Post.Image, "image", "", "Path to the selfie")
	fs.StringVar(&opts.Post.Image, "i", "", "Path to the selfie (alias)")
	fs.StringVar(&opts.Post.Intro, "intro", "", "Introduction text")
	fs.StringVar(&opts.Post.IntroFile, "intro-file", "", "Read the introduction from a file")
	fs.StringVar(&opts.Post.Onboarder, "onboarder", "", "Who onboarded you")
	fs.StringVar(&opts.Post.Strategy, "strategy", "", "broadcast (Keychain) or export (offline JSON)")
	fs.BoolVar(&opts.Post.Yes, "y", false, "Skip the confirmation")
	fs.IntVar(&opts.Post.Port, "port", 0, "Port for the Keychain bridge page")
	fs.BoolVar(&opts.Post.NoBrowser, "no-browser", false, "Print the Keychain page URL instead of opening it")

	valued := withValued(commonValued,
		"-u", "-user", "--user", "-image", "--image", "-i",
		"-intro", "--intro", "-intro-file", "--intro-file",
		"-onboarder", "--onboarder", "-strategy", "--strategy",
		"-port", "--port")
	if err := fs.Parse(reorderArgsForFlagSet(args, valued)); err != nil || *showHelp {
		opts.Global.Help = true
		return
	}
	opts.Args = fs.Args()

	if opts.Post.Handle == "" && len(opts.Args) > 0 {
		opts.Post.Handle = opts.Args[0]
		opts.Args = opts.Args[1:]
	}
	if opts.Post.Strategy != "" {
		if _, err := submit.ParseKind(opts.Post.Strategy); err != nil {
			fmt.Fprintf(stderr, "invalid --strategy %q: use broadcast or export\n", opts.Post.Strategy)
			opts.Global.Help = true
		}
	}
}

// parseCheckFlags handles check-account and check-key, which take the
// handle as their only positional argument.
func parseCheckFlags(opts *Options, name string, args []string, stderr io.Writer) {
	fs, showHelp := newFlagSet(name, opts, stderr)
	if err := fs.Parse(reorderArgsForFlagSet(args, commonValued)); err != nil || *showHelp {
		opts.Global.Help = true
		return
	}
	opts.Args = fs.Args()
	if len(opts.Args) != 1 {
		fmt.Fprintf(stderr, "%s takes exactly one username\n", name)
		opts.Global.Help = true
	}
}

func parseInitFlags(opts *Options, args []string, stderr io.Writer) {
	fs, showHelp := newFlagSet("init", opts, stderr)
	fs.BoolVar(&opts.Init.Force, "force", false, "Overwrite an existing config file")
	if err := fs.Parse(reorderArgsForFlagSet(args, commonValued)); err != nil || *showHelp {
		opts.Global.Help = true
		return
	}
	opts.Args = fs.Args()
}

func withValued(base map[string]bool, flags ...string) map[string]bool {
	out := make(map[string]bool, len(base)+len(flags))
	for k := range base {
		out[k] = true
	}
	for _, f := range flags {
		out[f] = true
	}
	return out
}

// reorderArgsForFlagSet moves flags before positional arguments so that
// "post alice --image me.jpg" parses like "post --image me.jpg alice".
func reorderArgsForFlagSet(args []string, valuedFlags map[string]bool) []string {
	var flags, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			if valuedFlags[arg] && !strings.Contains(arg, "=") && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// IsInteractive reports whether the post flow may prompt.
func (o *Options) IsInteractive() bool {
	return !o.Global.Quiet && !o.Post.Yes
}
