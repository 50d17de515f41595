// Package post builds the onboarding post: title, body, permlink and
// metadata. Everything here is pure; time is passed in.
package post

import (
	"fmt"
	"strings"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
)

// Submission is the validated form input for one post.
type Submission struct {
	IntroText       string
	OnboarderHandle string
	ImageURL        string
}

// Identity is the logged-in author. Secret is only set in the raw-key flow.
type Identity struct {
	Handle string
	Secret string
}

// Composed is a post ready to be turned into ledger operations.
type Composed struct {
	Title    string
	Body     string
	Permlink string
	Metadata Metadata
}

// Title returns the post title for the given onboarder.
func Title(ledgerName, onboarder string) string {
	return fmt.Sprintf("I was onboarded to %s by @%s", ledgerName, onboarder)
}

// Body returns the post body: the selfie followed by the introduction.
func Body(imageURL, intro string) string {
	return fmt.Sprintf("![Selfie](%s)\n\n%s", imageURL, intro)
}

// Normalize trims the submission fields and drops a leading @ from the
// onboarder handle.
func (s Submission) Normalize() Submission {
	return Submission{
		IntroText:       strings.TrimSpace(s.IntroText),
		OnboarderHandle: strings.TrimPrefix(strings.TrimSpace(s.OnboarderHandle), "@"),
		ImageURL:        strings.TrimSpace(s.ImageURL),
	}
}

// Compose derives the post from a submission. Identical inputs give an
// identical result.
func Compose(sub Submission, id Identity, now time.Time, cfg Settings) (*Composed, error) {
	sub = sub.Normalize()
	id.Handle = strings.TrimSpace(id.Handle)

	switch {
	case id.Handle == "":
		return nil, apperr.Validation("compose", "Please log in first")
	case sub.IntroText == "":
		return nil, apperr.Validation("compose", "Please write a short introduction")
	case sub.OnboarderHandle == "":
		return nil, apperr.Validation("compose", "Please enter who onboarded you")
	case sub.ImageURL == "":
		return nil, apperr.Validation("compose", "Please add a selfie")
	}

	title := Title(cfg.LedgerName, sub.OnboarderHandle)

	return &Composed{
		Title:    title,
		Body:     Body(sub.ImageURL, sub.IntroText),
		Permlink: MakeSlug(title, now),
		Metadata: BuildMetadata(sub, id, cfg),
	}, nil
}
