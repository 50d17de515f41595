package hive

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/checkinecuador/checkin/internal/apperr"
	"go.uber.org/zap"
)

// SecretLength is the length of a WIF-encoded posting key.
const SecretLength = 51

var handlePattern = regexp.MustCompile(`^[a-z0-9.-]{3,16}$`)

// AccountFetcher looks up a single account.
type AccountFetcher interface {
	GetAccount(ctx context.Context, handle string) (*Account, error)
}

// Validator checks account handles and posting keys.
type Validator struct {
	accounts AccountFetcher
	keys     KeyDeriver
	logger   *zap.Logger
}

// NewValidator creates a validator. keys may be nil, in which case
// WIFDeriver is used.
func NewValidator(accounts AccountFetcher, keys KeyDeriver, logger *zap.Logger) *Validator {
	if keys == nil {
		keys = WIFDeriver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{accounts: accounts, keys: keys, logger: logger}
}

// ValidateHandle reports whether handle looks like a Hive account name.
func ValidateHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// NormalizeHandle lower-cases a handle and drops a leading @.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// ValidateSecretFormat reports whether secret has the shape of a posting
// key. It makes no network call.
func ValidateSecretFormat(secret string) bool {
	return len(secret) == SecretLength && secret[0] == '5'
}

// AccountExists reports whether the handle is a registered account. Any
// lookup failure counts as "no".
func (v *Validator) AccountExists(ctx context.Context, handle string) bool {
	_, err := v.accounts.GetAccount(ctx, handle)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			v.logger.Debug("account lookup failed", zap.String("handle", handle), zap.Error(err))
		}
		return false
	}
	return true
}

// ValidateSecretFormat reports whether secret has the shape of a posting key.
func (v *Validator) ValidateSecretFormat(secret string) bool {
	return ValidateSecretFormat(secret)
}

// ValidateSecretMatchesAccount checks that secret is a posting key of the
// account. Every failure, including lookup and derivation errors, is an
// authentication error.
func (v *Validator) ValidateSecretMatchesAccount(ctx context.Context, handle, secret string) error {
	account, err := v.accounts.GetAccount(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return apperr.Authentication("login", err, "Hive account not found")
		}
		return apperr.Authentication("login", err, "could not load the account's keys")
	}

	pub, err := v.keys.PublicKey(secret)
	if err != nil {
		return apperr.Authentication("login", err, "invalid posting key")
	}

	for _, auth := range account.Posting.KeyAuths {
		if SamePublicKey(auth.Key, pub) {
			return nil
		}
	}

	return apperr.Authentication("login", nil, "the posting key does not belong to @%s", handle)
}
