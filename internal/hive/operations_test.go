package hive

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/checkinecuador/checkin/internal/post"
)

func composedFixture(t *testing.T) *post.Composed {
	t.Helper()
	c, err := post.Compose(
		post.Submission{IntroText: "Hello Hive!", OnboarderHandle: "alice", ImageURL: "https://img.example/x.jpg"},
		post.Identity{Handle: "bob"},
		time.UnixMilli(1700000000000),
		post.Settings{
			LedgerName:    "Hive",
			Community:     "hive-115276",
			AppID:         "checkinecuador/1.0.0",
			Country:       "Ecuador",
			PaymentDomain: "sats.v4v.app",
		},
	)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	return c
}

var testBeneficiaries = []Beneficiary{{Account: "hiveecuador", Weight: 8000}}

func TestBuildOperationsWireFormat(t *testing.T) {
	ops := BuildOperations(composedFixture(t), "bob", testBeneficiaries)

	data, err := json.Marshal(ops)
	if err != nil {
		t.Fatal(err)
	}

	var decoded [][]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("operations are not [name, params] pairs: %v\n%s", err, data)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d operations, want 2", len(decoded))
	}
	if string(decoded[0][0]) != `"comment"` || string(decoded[1][0]) != `"comment_options"` {
		t.Errorf("operation names = %s, %s", decoded[0][0], decoded[1][0])
	}

	var comment map[string]any
	if err := json.Unmarshal(decoded[0][1], &comment); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"parent_author":   "",
		"parent_permlink": "hive-115276",
		"author":          "bob",
		"permlink":        "i-was-onboarded-to-hive-by-alice-1700000000000",
		"title":           "I was onboarded to Hive by @alice",
	}
	for k, v := range want {
		if comment[k] != v {
			t.Errorf("comment[%q] = %v, want %v", k, comment[k], v)
		}
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(comment["json_metadata"].(string)), &meta); err != nil {
		t.Fatalf("json_metadata is not a JSON string: %v", err)
	}
	if meta["lightningAddress"] != "bob@sats.v4v.app" {
		t.Errorf("lightningAddress = %v", meta["lightningAddress"])
	}

	options := string(decoded[1][1])
	for _, fragment := range []string{
		`"max_accepted_payout":"1000000.000 HBD"`,
		`"percent_hbd":10000`,
		`"allow_votes":true`,
		`"allow_curation_rewards":true`,
		`"extensions":[[0,{"beneficiaries":[{"account":"hiveecuador","weight":8000}]}]]`,
	} {
		if !strings.Contains(options, fragment) {
			t.Errorf("comment_options missing %s in %s", fragment, options)
		}
	}
}

func TestBuildExport(t *testing.T) {
	c := composedFixture(t)
	export := BuildExport(c, "bob", testBeneficiaries)

	opsJSON, _ := json.Marshal(BuildOperations(c, "bob", testBeneficiaries))
	exportOpsJSON, _ := json.Marshal(export.Operations)
	if string(opsJSON) != string(exportOpsJSON) {
		t.Errorf("export operations differ from BuildOperations:\n%s\n%s", opsJSON, exportOpsJSON)
	}

	pd := export.PostingData
	if pd.Community != "hive-115276" || pd.Category != "onboarding" || pd.App != "checkinecuador/1.0.0" {
		t.Errorf("posting_data = %+v", pd)
	}
	if pd.Permlink != c.Permlink || pd.Title != c.Title {
		t.Errorf("posting_data title/permlink = %q / %q", pd.Title, pd.Permlink)
	}
	if len(pd.Tags) != 2 || len(pd.Beneficiaries) != 1 {
		t.Errorf("posting_data tags/beneficiaries = %v / %v", pd.Tags, pd.Beneficiaries)
	}

	data, err := json.Marshal(export)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	if _, ok := generic["operations"]; !ok {
		t.Error("missing operations key")
	}
	if _, ok := generic["posting_data"]; !ok {
		t.Error("missing posting_data key")
	}
}
