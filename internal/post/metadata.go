package post

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Tags every onboarding post carries, in this order.
var DefaultTags = []string{"introduceyourself", "checkin"}

// Settings are the community constants baked into every post.
type Settings struct {
	LedgerName    string // shown in the title, e.g. "Hive"
	Community     string // community id, used as parent_permlink
	AppID         string
	Country       string
	PaymentDomain string // lightning address domain
	Developer     string // optional
}

// Metadata is the json_metadata record of the comment operation.
type Metadata struct {
	Tags           []string `json:"tags"`
	AppID          string   `json:"app"`
	AuthorHandle   string   `json:"username"`
	ImageRefs      []string `json:"image"`
	Country        string   `json:"country"`
	Onboarder      string   `json:"onboarder"`
	IntroText      string   `json:"introductionText"`
	CommunityID    string   `json:"communityName"`
	PaymentAddress string   `json:"lightningAddress"`
	Developer      string   `json:"developer,omitempty"`
}

// BuildMetadata assembles the metadata record. Inputs are assumed to be
// validated already; it never fails.
func BuildMetadata(sub Submission, id Identity, cfg Settings) Metadata {
	tags := make([]string, len(DefaultTags))
	copy(tags, DefaultTags)

	return Metadata{
		Tags:           tags,
		AppID:          cfg.AppID,
		AuthorHandle:   id.Handle,
		ImageRefs:      []string{sub.ImageURL},
		Country:        cfg.Country,
		Onboarder:      sub.OnboarderHandle,
		IntroText:      sub.IntroText,
		CommunityID:    cfg.Community,
		PaymentAddress: id.Handle + "@" + cfg.PaymentDomain,
		Developer:      cfg.Developer,
	}
}

// JSON returns the metadata serialized for the json_metadata field.
func (m Metadata) JSON() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only strings and string slices: Encode cannot fail.
	_ = enc.Encode(m)
	return strings.TrimSuffix(buf.String(), "\n")
}
