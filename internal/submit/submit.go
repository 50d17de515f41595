// Package submit turns a composed post into something on the ledger, or
// into a file the user can broadcast later.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/logging"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/checkinecuador/checkin/internal/post"
	"go.uber.org/zap"
)

// Kind names a submission strategy.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindExport    Kind = "export"
)

// ParseKind accepts the names used on the command line and in the form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "broadcast", "keychain", "":
		return KindBroadcast, nil
	case "export", "offline", "json":
		return KindExport, nil
	default:
		return "", fmt.Errorf("unknown submission method %q (use broadcast or export)", s)
	}
}

// Result describes a finished submission. Broadcasts fill TxID and URL;
// exports fill Filename, Location and Data.
type Result struct {
	Kind     Kind
	Author   string
	Permlink string

	TxID string
	URL  string

	Filename string
	Location string
	Data     []byte
}

// Strategy submits a composed post on behalf of an identity.
type Strategy interface {
	Kind() Kind
	Submit(ctx context.Context, c *post.Composed, id post.Identity) (*Result, error)
}

// Broadcaster signs operations with the author's posting authority and
// broadcasts them, returning the transaction id.
type Broadcaster interface {
	SignAndBroadcast(ctx context.Context, handle string, ops []hive.Operation) (string, error)
}

// Options is shared by both strategies.
type Options struct {
	Beneficiaries []hive.Beneficiary
	FrontendURL   string
	Logger        *zap.Logger
}

// SignedBroadcast publishes through a Broadcaster.
type SignedBroadcast struct {
	broadcaster   Broadcaster
	beneficiaries []hive.Beneficiary
	frontendURL   string
	logger        *zap.Logger
}

// NewSignedBroadcast creates the broadcast strategy.
func NewSignedBroadcast(b Broadcaster, opts Options) *SignedBroadcast {
	return &SignedBroadcast{
		broadcaster:   b,
		beneficiaries: opts.Beneficiaries,
		frontendURL:   strings.TrimRight(opts.FrontendURL, "/"),
		logger:        logging.OrNop(opts.Logger),
	}
}

func (s *SignedBroadcast) Kind() Kind { return KindBroadcast }

// Submit broadcasts the comment and comment_options pair.
func (s *SignedBroadcast) Submit(ctx context.Context, c *post.Composed, id post.Identity) (*Result, error) {
	ops := hive.BuildOperations(c, id.Handle, s.beneficiaries)

	txID, err := s.broadcaster.SignAndBroadcast(ctx, id.Handle, ops)
	if err != nil {
		metrics.Submission(string(KindBroadcast), metrics.OutcomeFailed)
		s.logger.Warn("broadcast failed", zap.String("author", id.Handle), zap.String("permlink", c.Permlink), zap.Error(err))
		return nil, broadcastError(err)
	}

	metrics.Submission(string(KindBroadcast), metrics.OutcomeOK)
	s.logger.Info("post broadcast",
		zap.String("author", id.Handle),
		zap.String("permlink", c.Permlink),
		zap.String("tx", txID))

	return &Result{
		Kind:     KindBroadcast,
		Author:   id.Handle,
		Permlink: c.Permlink,
		TxID:     txID,
		URL:      PostURL(s.frontendURL, id.Handle, c.Permlink),
	}, nil
}

func broadcastError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Transport("submit", err, "no answer from the signer")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Submission("submit", err, "%s", err.Error())
}

// PostURL is where a published post can be read.
func PostURL(frontend, author, permlink string) string {
	return fmt.Sprintf("%s/@%s/%s", strings.TrimRight(frontend, "/"), author, permlink)
}
