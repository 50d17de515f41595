package workflow

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/cli"
	"github.com/checkinecuador/checkin/internal/ui"
)

// WithSpinner runs fn behind a spinner unless output is quiet.
func WithSpinner(opts *cli.Options, message string, fn func() error) error {
	if opts.Global.Quiet {
		return fn()
	}

	spinner := ui.NewSpinner(message)
	spinner.Start()

	if err := fn(); err != nil {
		spinner.StopWithError(apperr.UserMessage(err))
		return err
	}

	spinner.Stop()
	return nil
}

// detectImageMimeType sniffs the content first and falls back to the
// file extension.
func detectImageMimeType(path string, data []byte) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

var dataURLPattern = regexp.MustCompile(`\(data:image/[^;]+;base64,[^)]*\)`)

// previewBody replaces an embedded image with a short marker so the
// terminal preview is readable.
func previewBody(body string) string {
	return dataURLPattern.ReplaceAllString(body, "(embedded image)")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
