// Package hive builds ledger operations and talks to Hive RPC nodes.
package hive

import (
	"encoding/json"

	"github.com/checkinecuador/checkin/internal/post"
)

// Operation names.
const (
	OpComment        = "comment"
	OpCommentOptions = "comment_options"
)

// Fixed comment_options values.
const (
	MaxAcceptedPayout = "1000000.000 HBD"
	PercentHBD        = 10000
	ExportCategory    = "onboarding"
)

// Operation is a [name, params] pair as the ledger expects it.
type Operation struct {
	Name   string
	Params any
}

// MarshalJSON encodes the operation as a two-element array.
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{o.Name, o.Params})
}

// Comment is the params object of a comment operation.
type Comment struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

// Beneficiary gets Weight basis points of the post's author rewards.
type Beneficiary struct {
	Account string `json:"account"`
	Weight  uint16 `json:"weight"`
}

// CommentOptions is the params object of a comment_options operation.
type CommentOptions struct {
	Author               string                   `json:"author"`
	Permlink             string                   `json:"permlink"`
	MaxAcceptedPayout    string                   `json:"max_accepted_payout"`
	PercentHBD           int                      `json:"percent_hbd"`
	AllowVotes           bool                     `json:"allow_votes"`
	AllowCurationRewards bool                     `json:"allow_curation_rewards"`
	Extensions           []BeneficiariesExtension `json:"extensions"`
}

// BeneficiariesExtension encodes as [0, {"beneficiaries": [...]}].
type BeneficiariesExtension struct {
	Beneficiaries []Beneficiary
}

func (e BeneficiariesExtension) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{0, struct {
		Beneficiaries []Beneficiary `json:"beneficiaries"`
	}{e.Beneficiaries}})
}

// BuildOperations returns the comment and comment_options pair for a post.
// Both submission strategies go through here so their payloads match.
func BuildOperations(c *post.Composed, author string, beneficiaries []Beneficiary) []Operation {
	return []Operation{
		{
			Name: OpComment,
			Params: Comment{
				ParentAuthor:   "",
				ParentPermlink: c.Metadata.CommunityID,
				Author:         author,
				Permlink:       c.Permlink,
				Title:          c.Title,
				Body:           c.Body,
				JSONMetadata:   c.Metadata.JSON(),
			},
		},
		{
			Name: OpCommentOptions,
			Params: CommentOptions{
				Author:               author,
				Permlink:             c.Permlink,
				MaxAcceptedPayout:    MaxAcceptedPayout,
				PercentHBD:           PercentHBD,
				AllowVotes:           true,
				AllowCurationRewards: true,
				Extensions: []BeneficiariesExtension{
					{Beneficiaries: beneficiaries},
				},
			},
		},
	}
}

// Export is the offline transaction document a user can broadcast later.
type Export struct {
	Operations  []Operation `json:"operations"`
	PostingData PostingData `json:"posting_data"`
}

// PostingData is the human-oriented summary in an export.
type PostingData struct {
	Community     string        `json:"community"`
	Category      string        `json:"category"`
	Title         string        `json:"title"`
	Permlink      string        `json:"permlink"`
	Tags          []string      `json:"tags"`
	App           string        `json:"app"`
	Beneficiaries []Beneficiary `json:"beneficiaries"`
}

// BuildExport wraps the operations of a post with its summary.
func BuildExport(c *post.Composed, author string, beneficiaries []Beneficiary) *Export {
	return &Export{
		Operations: BuildOperations(c, author, beneficiaries),
		PostingData: PostingData{
			Community:     c.Metadata.CommunityID,
			Category:      ExportCategory,
			Title:         c.Title,
			Permlink:      c.Permlink,
			Tags:          c.Metadata.Tags,
			App:           c.Metadata.AppID,
			Beneficiaries: beneficiaries,
		},
	}
}
