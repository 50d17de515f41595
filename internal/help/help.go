// Package help provides colorful CLI help output.
package help

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/checkinecuador/checkin/internal/cli"
	"github.com/checkinecuador/checkin/internal/ui"
)

// Ecuador flag palette plus greys
var (
	yellow   = lipgloss.Color("178")
	blue     = lipgloss.Color("25")
	grey     = lipgloss.Color("245")
	greyDark = lipgloss.Color("242")
	white    = lipgloss.Color("252")
)

func renderYellow(s string) string {
	return lipgloss.NewStyle().Foreground(yellow).Render(s)
}

func renderBlue(s string) string {
	return lipgloss.NewStyle().Foreground(blue).Render(s)
}

func renderBlueBold(s string) string {
	return lipgloss.NewStyle().Foreground(blue).Bold(true).Render(s)
}

func renderWhite(s string) string {
	return lipgloss.NewStyle().Foreground(white).Render(s)
}

func renderGrey(s string) string {
	return lipgloss.NewStyle().Foreground(grey).Render(s)
}

func renderGreyDark(s string) string {
	return lipgloss.NewStyle().Foreground(greyDark).Render(s)
}

// RootHelp returns the top-level --help output.
func RootHelp() string {
	var b strings.Builder

	b.WriteString(ui.RenderLogo())
	b.WriteString(renderWhite("Publish your introduction post to the Hive Ecuador community") + "\n\n")

	b.WriteString(renderBlueBold("USAGE") + "\n")
	b.WriteString("  " + renderYellow("checkin") + " <command> [options]\n\n")

	b.WriteString(renderBlueBold("COMMANDS") + "\n")
	writeCommand(&b, "serve", "Run the onboarding form in your browser")
	writeCommand(&b, "post", "Write and publish the post from the terminal")
	writeCommand(&b, "check-account", "Check that a Hive account exists")
	writeCommand(&b, "check-key", "Check a posting key against an account")
	writeCommand(&b, "init", "Write a checkin.yaml for your community")
	writeCommand(&b, "version", "Show version")
	b.WriteString("\n")

	b.WriteString(renderBlueBold("EXAMPLES") + "\n")
	writeExample(&b, "checkin serve", "Open the web form on http://127.0.0.1:8000")
	writeExample(&b, "checkin post alice --image me.jpg", "Guided post, signed with Hive Keychain")
	writeExample(&b, "checkin post alice --strategy export", "Save the transaction as JSON instead")
	writeExample(&b, "checkin check-account alice", "Is @alice on Hive?")
	b.WriteString("\n")

	b.WriteString(renderBlueBold("ENVIRONMENT") + "\n")
	writeEnv(&b, "CHECKIN_COMMUNITY", "Community tag (default: hive-115276)")
	writeEnv(&b, "CHECKIN_BENEFICIARY", "Beneficiary account (default: hiveecuador)")
	writeEnv(&b, "CHECKIN_IMGUR_CLIENT_IDS", "Comma-separated image host client IDs")
	writeEnv(&b, "CHECKIN_RPC_NODES", "Comma-separated Hive API nodes")
	writeEnv(&b, "CHECKIN_ALLOW_FALLBACK", "Embed the image when every host fails (true/false)")
	writeEnv(&b, "CHECKIN_PORT", "Web form port")
	writeEnv(&b, "CHECKIN_LOG_LEVEL", "debug, info, warn or error")
	b.WriteString("  " + renderGreyDark("Variables may also be set in a .env file.") + "\n\n")

	b.WriteString(renderBlueBold("GLOBAL FLAGS") + "\n")
	writeFlag(&b, "-h, --help", "Show help")
	writeFlag(&b, "-v, --version", "Show version")
	writeFlag(&b, "-q, --quiet", "Minimal output")
	writeFlag(&b, "--verbose", "Debug output")
	writeFlag(&b, "--no-color", "Disable colored output")
	writeFlag(&b, "-c, --config <file>", "Config file (default: checkin.yaml)")
	writeFlag(&b, "--env-file <file>", "Dotenv file (default: .env)")

	return b.String()
}

// ServeHelp returns help for the serve subcommand.
func ServeHelp() string {
	var b strings.Builder

	b.WriteString(renderBlueBold("USAGE") + "\n")
	b.WriteString("  " + renderYellow("checkin serve") + " [options]\n\n")
	b.WriteString(renderWhite("Serves the onboarding form. Each browser gets its own session; posts are") + "\n")
	b.WriteString(renderWhite("signed with the Hive Keychain extension or downloaded as JSON.") + "\n\n")

	b.WriteString(renderBlueBold("OPTIONS") + "\n")
	writeFlag(&b, "--port <n>", "Port to listen on (default from config: 8000)")
	writeFlag(&b, "--listen <addr>", "Address to bind (default: 127.0.0.1)")
	writeFlag(&b, "--no-browser", "Don't open the form automatically")
	b.WriteString("\n")

	b.WriteString(renderBlueBold("ENDPOINTS") + "\n")
	writeFlag(&b, "/", "The form")
	writeFlag(&b, "/healthz", "Liveness probe")
	writeFlag(&b, "/metrics", "Prometheus metrics")

	return b.String()
}

// PostHelp returns help for the post subcommand.
func PostHelp() string {
	var b strings.Builder

	b.WriteString(renderBlueBold("USAGE") + "\n")
	b.WriteString("  " + renderYellow("checkin post") + " [username] [options]\n\n")
	b.WriteString(renderWhite("Logs in, uploads your selfie, lets you write your introduction and") + "\n")
	b.WriteString(renderWhite("publishes the post. Anything not given as a flag is asked for.") + "\n\n")

	b.WriteString(renderBlueBold("OPTIONS") + "\n")
	writeFlag(&b, "-u, --user <name>", "Hive username")
	writeFlag(&b, "-i, --image <file>", "Selfie to upload (jpg, png, gif, webp)")
	writeFlag(&b, "--intro <text>", "Introduction text")
	writeFlag(&b, "--intro-file <file>", "Read the introduction from a file")
	writeFlag(&b, "--onboarder <name>", "Who onboarded you")
	writeFlag(&b, "--strategy <s>", "broadcast (Keychain) or export (offline JSON)")
	writeFlag(&b, "-y", "Skip the confirmation")
	writeFlag(&b, "--port <n>", "Port for the Keychain bridge page")
	writeFlag(&b, "--no-browser", "Print the Keychain page URL instead of opening it")
	b.WriteString("\n")

	b.WriteString(renderBlueBold("LOGIN") + "\n")
	b.WriteString("  " + renderWhite("Enter your posting key when asked, or leave it empty to log in with") + "\n")
	b.WriteString("  " + renderWhite("Hive Keychain. The key is only used to check the account and is never") + "\n")
	b.WriteString("  " + renderWhite("stored.") + "\n")

	return b.String()
}

// CheckHelp returns help for check-account and check-key.
func CheckHelp() string {
	var b strings.Builder

	b.WriteString(renderBlueBold("USAGE") + "\n")
	b.WriteString("  " + renderYellow("checkin check-account") + " <username>\n")
	b.WriteString("  " + renderYellow("checkin check-key") + " <username>\n\n")
	b.WriteString(renderWhite("check-account exits 0 when the account exists. check-key asks for a") + "\n")
	b.WriteString(renderWhite("posting key and exits 0 when it belongs to the account.") + "\n")

	return b.String()
}

// InitHelp returns help for the init subcommand.
func InitHelp() string {
	var b strings.Builder

	b.WriteString(renderBlueBold("USAGE") + "\n")
	b.WriteString("  " + renderYellow("checkin init") + " [-c file] [--force]\n\n")
	b.WriteString(renderWhite("Asks for the community tag, beneficiary and image hosts and writes them") + "\n")
	b.WriteString(renderWhite("to the config file. Existing values are offered as defaults.") + "\n\n")

	b.WriteString(renderBlueBold("OPTIONS") + "\n")
	writeFlag(&b, "--force", "Overwrite an existing file")

	return b.String()
}

// HandleHelp prints help for a command. With no command, the first
// argument (as in "checkin help post") selects the topic.
func HandleHelp(w io.Writer, cmd cli.Command, args []string) {
	if cmd == cli.CommandNone && len(args) > 0 {
		cmd = cli.Command(args[0])
	}

	switch cmd {
	case cli.CommandServe:
		fmt.Fprint(w, ServeHelp())
	case cli.CommandPost:
		fmt.Fprint(w, PostHelp())
	case cli.CommandCheckAccount, cli.CommandCheckKey:
		fmt.Fprint(w, CheckHelp())
	case cli.CommandInit:
		fmt.Fprint(w, InitHelp())
	default:
		fmt.Fprint(w, RootHelp())
	}
}

func writeCommand(b *strings.Builder, name, desc string) {
	b.WriteString("  " + renderYellow(name))
	b.WriteString(strings.Repeat(" ", max(1, 16-len(name))))
	b.WriteString(renderWhite(desc) + "\n")
}

func writeEnv(b *strings.Builder, name, desc string) {
	b.WriteString("  " + renderBlue(name))
	b.WriteString(strings.Repeat(" ", max(1, 27-len(name))))
	b.WriteString(renderWhite(desc) + "\n")
}

func writeFlag(b *strings.Builder, flag, desc string) {
	b.WriteString("  " + renderYellow(flag))
	b.WriteString(strings.Repeat(" ", max(1, 26-len(flag))))
	b.WriteString(renderWhite(desc) + "\n")
}

func writeExample(b *strings.Builder, cmd, desc string) {
	b.WriteString("  " + renderYellow(cmd))
	b.WriteString(strings.Repeat(" ", max(1, 40-len(cmd))))
	b.WriteString(renderGrey(desc) + "\n")
}
