package cli

import (
	"bytes"
	"os"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, o *Options)
	}{
		{
			name: "no args shows help",
			args: nil,
			check: func(t *testing.T, o *Options) {
				if !o.Global.Help {
					t.Error("expected help")
				}
			},
		},
		{
			name: "version",
			args: []string{"--version"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Version {
					t.Error("expected version")
				}
			},
		},
		{
			name: "version subcommand",
			args: []string{"version"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Version {
					t.Error("expected version")
				}
			},
		},
		{
			name: "help topic",
			args: []string{"help", "post"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Help || !reflect.DeepEqual(o.Args, []string{"post"}) {
					t.Errorf("help=%v args=%v", o.Global.Help, o.Args)
				}
			},
		},
		{
			name: "serve with root flags",
			args: []string{"--no-color", "serve", "--port", "9000", "--no-browser"},
			check: func(t *testing.T, o *Options) {
				if o.Command != CommandServe || o.Serve.Port != 9000 || !o.Serve.NoBrowser || !o.Global.NoColor {
					t.Errorf("unexpected options: %+v", o)
				}
				if o.Global.Config != "checkin.yaml" {
					t.Errorf("config = %q", o.Global.Config)
				}
			},
		},
		{
			name: "post handle after flags",
			args: []string{"post", "--image", "me.jpg", "alice", "--strategy", "export", "-y"},
			check: func(t *testing.T, o *Options) {
				if o.Command != CommandPost {
					t.Fatalf("command = %q", o.Command)
				}
				p := o.Post
				if p.Handle != "alice" || p.Image != "me.jpg" || p.Strategy != "export" || !p.Yes {
					t.Errorf("unexpected post options: %+v", p)
				}
				if o.IsInteractive() {
					t.Error("-y should disable prompts")
				}
			},
		},
		{
			name: "post intro starting with a dash",
			args: []string{"post", "-u", "alice", "--intro", "-hola-"},
			check: func(t *testing.T, o *Options) {
				if o.Post.Intro != "-hola-" || o.Global.Help {
					t.Errorf("intro = %q help=%v", o.Post.Intro, o.Global.Help)
				}
			},
		},
		{
			name: "post bad strategy",
			args: []string{"post", "alice", "--strategy", "carrier-pigeon"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Help {
					t.Error("expected help for unknown strategy")
				}
			},
		},
		{
			name: "check-account",
			args: []string{"check-account", "-c", "other.yaml", "alice"},
			check: func(t *testing.T, o *Options) {
				if o.Command != CommandCheckAccount || !reflect.DeepEqual(o.Args, []string{"alice"}) {
					t.Errorf("command=%q args=%v", o.Command, o.Args)
				}
				if o.Global.Config != "other.yaml" {
					t.Errorf("config = %q", o.Global.Config)
				}
			},
		},
		{
			name: "check-key needs exactly one handle",
			args: []string{"check-key"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Help {
					t.Error("expected help")
				}
			},
		},
		{
			name: "init with force",
			args: []string{"init", "--force", "-c", "quito.yaml"},
			check: func(t *testing.T, o *Options) {
				if o.Command != CommandInit || !o.Init.Force || o.Global.Config != "quito.yaml" {
					t.Errorf("unexpected options: %+v", o)
				}
			},
		},
		{
			name: "unknown command",
			args: []string{"frobnicate"},
			check: func(t *testing.T, o *Options) {
				if !o.Global.Help || o.Command != CommandNone {
					t.Errorf("help=%v command=%q", o.Global.Help, o.Command)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			tt.check(t, parseCommand(tt.args, &stderr))
		})
	}
}

func TestReorderArgsForFlagSet(t *testing.T) {
	valued := map[string]bool{"--image": true}
	got := reorderArgsForFlagSet([]string{"alice", "--image", "me.jpg", "-y", "--", "-x"}, valued)
	want := []string{"--image", "me.jpg", "-y", "alice", "-x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSignalHandler(t *testing.T) {
	var stderr bytes.Buffer
	code := -1
	h := newSignalHandler(&stderr, func(c int) { code = c })

	h.handle(os.Interrupt)
	select {
	case <-h.Context().Done():
	default:
		t.Fatal("first signal should cancel the context")
	}
	if code != -1 {
		t.Fatalf("first signal exited with %d", code)
	}

	h.handle(os.Interrupt)
	if code != 130 {
		t.Errorf("second signal exit code = %d, want 130", code)
	}
}
