package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/checkinecuador/checkin/internal/post"
	"go.uber.org/zap"
)

// Deliverer hands an export file to the user. It returns where the file
// ended up, for display.
type Deliverer interface {
	Deliver(ctx context.Context, filename string, data []byte) (string, error)
}

// OfflineExport writes the unsigned transaction to a file.
type OfflineExport struct {
	deliverer     Deliverer
	beneficiaries []hive.Beneficiary
	logger        *zap.Logger
}

// NewOfflineExport creates the export strategy.
func NewOfflineExport(d Deliverer, opts Options) *OfflineExport {
	return &OfflineExport{
		deliverer:     d,
		beneficiaries: opts.Beneficiaries,
		logger:        logging.OrNop(opts.Logger),
	}
}

func (e *OfflineExport) Kind() Kind { return KindExport }

// Submit builds the export document and delivers it.
func (e *OfflineExport) Submit(ctx context.Context, c *post.Composed, id post.Identity) (*Result, error) {
	data, err := EncodeExport(hive.BuildExport(c, id.Handle, e.beneficiaries))
	if err != nil {
		metrics.Submission(string(KindExport), metrics.OutcomeFailed)
		return nil, apperr.Submission("export", err, "could not encode the transaction")
	}

	name := ExportFilename(id.Handle, c.Permlink)
	location, err := e.deliverer.Deliver(ctx, name, data)
	if err != nil {
		metrics.Submission(string(KindExport), metrics.OutcomeFailed)
		return nil, apperr.Submission("export", err, "could not save %s: %v", name, err)
	}

	metrics.Submission(string(KindExport), metrics.OutcomeOK)
	e.logger.Info("post exported", zap.String("author", id.Handle), zap.String("file", location))

	return &Result{
		Kind:     KindExport,
		Author:   id.Handle,
		Permlink: c.Permlink,
		Filename: name,
		Location: location,
		Data:     data,
	}, nil
}

// EncodeExport renders an export with 2-space indentation.
func EncodeExport(x *hive.Export) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(x); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExportFilename is hive-post-{author}-{first 20 chars of permlink}.json.
func ExportFilename(author, permlink string) string {
	if len(permlink) > 20 {
		permlink = permlink[:20]
	}
	return fmt.Sprintf("hive-post-%s-%s.json", author, permlink)
}

// DirDeliverer writes export files into a directory.
type DirDeliverer struct {
	Dir string
}

func (d DirDeliverer) Deliver(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// MemoryDeliverer keeps the last delivered file for a later download.
type MemoryDeliverer struct {
	mu   sync.Mutex
	name string
	data []byte
}

func (m *MemoryDeliverer) Deliver(_ context.Context, filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = filename
	m.data = append([]byte(nil), data...)
	return filename, nil
}

// Last returns the most recently delivered file.
func (m *MemoryDeliverer) Last() (string, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.name == "" {
		return "", nil, false
	}
	return m.name, m.data, true
}

// Reset forgets the stored file.
func (m *MemoryDeliverer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name, m.data = "", nil
}
