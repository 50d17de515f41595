// Package upload sends selfies to image hosts, falling back through an
// ordered list of hosts and finally to an embedded data URL.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/metrics"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// DefaultTimeout bounds a single upload attempt.
const DefaultTimeout = 15 * time.Second

// FormField is the multipart field the image is sent in.
const FormField = "image"

// Host is one image host endpoint and the client credential it expects.
type Host struct {
	Endpoint string
	ClientID string
}

// Options configures a Gateway.
type Options struct {
	Hosts         []Host
	MaxSize       int64
	AllowFallback bool
	Timeout       time.Duration
	Logger        *zap.Logger
}

// Result is where an uploaded image can be found.
type Result struct {
	URL      string
	Endpoint string // host that accepted the image, empty when embedded
	Embedded bool   // URL is a data: URL carrying the image itself
}

// HostError describes why one host refused an upload.
type HostError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *HostError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// ProgressFunc is called during upload to report progress.
type ProgressFunc func(uploaded, total int64)

// Gateway uploads images.
type Gateway struct {
	client        *resty.Client
	hosts         []Host
	maxSize       int64
	allowFallback bool
	timeout       time.Duration
	logger        *zap.Logger
}

// NewGateway creates a gateway for the given hosts.
func NewGateway(opts Options) *Gateway {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := resty.New().
		SetHeader("Accept", "application/json").
		AddResponseMiddleware(metrics.ResponseMiddleware("upload"))

	return &Gateway{
		client:        client,
		hosts:         opts.Hosts,
		maxSize:       opts.MaxSize,
		allowFallback: opts.AllowFallback,
		timeout:       opts.Timeout,
		logger:        opts.Logger,
	}
}

// Close releases idle connections.
func (g *Gateway) Close() error {
	return g.client.Close()
}

// MaxSize returns the largest accepted image in bytes.
func (g *Gateway) MaxSize() int64 {
	return g.maxSize
}

// Upload sends the image to the first host that accepts it.
func (g *Gateway) Upload(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	return g.UploadWithProgress(ctx, data, mimeType, nil)
}

// UploadWithProgress is Upload with a progress callback per attempt.
func (g *Gateway) UploadWithProgress(ctx context.Context, data []byte, mimeType string, onProgress ProgressFunc) (*Result, error) {
	if err := g.check(data, mimeType); err != nil {
		return nil, err
	}

	var lastErr *HostError
	for _, host := range g.hosts {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Transport("upload", err, "upload cancelled")
		}

		url, err := g.send(ctx, host, data, mimeType, onProgress)
		if err == nil {
			g.logger.Debug("image uploaded", zap.String("endpoint", host.Endpoint), zap.String("url", url))
			metrics.Upload(metrics.OutcomeOK)
			return &Result{URL: url, Endpoint: host.Endpoint}, nil
		}

		g.logger.Warn("image host failed", zap.String("endpoint", host.Endpoint), zap.Error(err))
		lastErr = err
	}

	if g.allowFallback {
		g.logger.Warn("all image hosts failed, embedding the image in the post body",
			zap.Int("bytes", len(data)),
			zap.Int("hosts", len(g.hosts)))
		metrics.Upload(metrics.OutcomeEmbedded)
		return &Result{URL: DataURL(data, mimeType), Embedded: true}, nil
	}

	metrics.Upload(metrics.OutcomeFailed)
	if lastErr == nil {
		return nil, apperr.Upload("upload", nil, "no image hosts configured")
	}
	return nil, apperr.Upload("upload", lastErr, "%s", lastErr.Error())
}

func (g *Gateway) check(data []byte, mimeType string) error {
	if len(data) == 0 {
		return apperr.Validation("upload", "Please choose an image")
	}
	if g.maxSize > 0 && int64(len(data)) > g.maxSize {
		return apperr.Validation("upload", "Image is too large (%s). The limit is %s", HumanSize(int64(len(data))), HumanSize(g.maxSize))
	}
	if !IsImage(mimeType) {
		return apperr.Validation("upload", "Please choose an image file (got %q)", mimeType)
	}
	return nil
}

type hostResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
}

func (g *Gateway) send(ctx context.Context, host Host, data []byte, mimeType string, onProgress ProgressFunc) (string, *HostError) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader = bytes.NewReader(data)
	if onProgress != nil {
		reader = &progressReader{
			reader:     reader,
			total:      int64(len(data)),
			onProgress: onProgress,
		}
	}

	res, err := g.client.R().
		WithContext(ctx).
		SetHeader("Authorization", "Client-ID "+host.ClientID).
		SetFileReader(FormField, "selfie"+extension(mimeType), reader).
		SetResult(&hostResponse{}).
		Post(host.Endpoint)
	if err != nil {
		return "", &HostError{Endpoint: host.Endpoint, Message: err.Error()}
	}
	if !res.IsSuccess() {
		return "", &HostError{Endpoint: host.Endpoint, Status: res.StatusCode(), Message: res.Status()}
	}

	body, ok := res.Result().(*hostResponse)
	if !ok || body == nil {
		return "", &HostError{Endpoint: host.Endpoint, Status: res.StatusCode(), Message: "unreadable response"}
	}
	if !body.Success {
		msg := "host reported failure"
		if body.Data.Error != nil {
			msg = fmt.Sprint(body.Data.Error)
		}
		return "", &HostError{Endpoint: host.Endpoint, Status: res.StatusCode(), Message: msg}
	}
	if body.Data.Link == "" {
		return "", &HostError{Endpoint: host.Endpoint, Status: res.StatusCode(), Message: "response has no link"}
	}

	return body.Data.Link, nil
}

// IsImage reports whether a MIME type names an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// DataURL embeds data as a base64 data: URL.
func DataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// HumanSize formats a byte count for messages.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}

// progressReader wraps a reader to track progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	uploaded   int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.uploaded += int64(n)
	if pr.onProgress != nil {
		pr.onProgress(pr.uploaded, pr.total)
	}
	return n, err
}
