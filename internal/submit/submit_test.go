package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/hive"
	"github.com/checkinecuador/checkin/internal/post"
)

// flakyBroadcaster records what it was asked to sign and fails every
// failEvery-th call with failErr. failEvery 0 never fails.
type flakyBroadcaster struct {
	mu        sync.Mutex
	calls     int
	failEvery int
	failErr   error
	handle    string
	ops       []hive.Operation
}

func (f *flakyBroadcaster) SignAndBroadcast(_ context.Context, handle string, ops []hive.Operation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.handle = handle
	f.ops = ops
	if f.failEvery > 0 && f.calls%f.failEvery == 0 {
		return "", f.failErr
	}
	return "tx" + strings.Repeat("0", 38), nil
}

var testSettings = post.Settings{
	LedgerName:    "Hive",
	Community:     "hive-115276",
	AppID:         "checkinecuador/1.0.0",
	Country:       "Ecuador",
	PaymentDomain: "sats.v4v.app",
}

var testBeneficiaries = []hive.Beneficiary{{Account: "hiveecuador", Weight: 8000}}

func compose(t *testing.T) (*post.Composed, post.Identity) {
	t.Helper()
	id := post.Identity{Handle: "alice"}
	c, err := post.Compose(post.Submission{
		IntroText:       "Hola, soy Alice",
		OnboarderHandle: "@bob",
		ImageURL:        "https://i.imgur.com/x.jpg",
	}, id, time.UnixMilli(1700000000000), testSettings)
	if err != nil {
		t.Fatal(err)
	}
	return c, id
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"":          KindBroadcast,
		"keychain":  KindBroadcast,
		"Broadcast": KindBroadcast,
		"export":    KindExport,
		"offline":   KindExport,
	} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestSignedBroadcastSuccess(t *testing.T) {
	c, id := compose(t)
	b := &flakyBroadcaster{}
	s := NewSignedBroadcast(b, Options{Beneficiaries: testBeneficiaries, FrontendURL: "https://hive.blog/"})

	res, err := s.Submit(context.Background(), c, id)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Kind != KindBroadcast || res.TxID == "" {
		t.Errorf("result = %+v", res)
	}
	if want := "https://hive.blog/@alice/" + c.Permlink; res.URL != want {
		t.Errorf("URL = %q, want %q", res.URL, want)
	}
	if b.handle != "alice" || len(b.ops) != 2 {
		t.Errorf("broadcaster got handle %q and %d ops", b.handle, len(b.ops))
	}
	if b.ops[0].Name != hive.OpComment || b.ops[1].Name != hive.OpCommentOptions {
		t.Errorf("op order = %s, %s", b.ops[0].Name, b.ops[1].Name)
	}
}

func TestSignedBroadcastErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		wantMsg  string
	}{
		{"remote refusal", errors.New("Missing Posting Authority alice"), apperr.KindSubmission, "Missing Posting Authority alice"},
		{"timeout", context.DeadlineExceeded, apperr.KindTransport, ""},
		{"cancelled", context.Canceled, apperr.KindTransport, ""},
		{"already classified", apperr.Authentication("keychain", nil, "wrong key"), apperr.KindAuthentication, "wrong key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, id := compose(t)
			s := NewSignedBroadcast(&flakyBroadcaster{failEvery: 1, failErr: tt.err}, Options{})

			_, err := s.Submit(context.Background(), c, id)
			if !apperr.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want %v", err, tt.wantKind)
			}
			var ae *apperr.Error
			errors.As(err, &ae)
			if tt.wantMsg != "" && ae.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", ae.Message, tt.wantMsg)
			}
		})
	}
}

func TestFlakyBroadcasterFailsOnSchedule(t *testing.T) {
	c, id := compose(t)
	s := NewSignedBroadcast(&flakyBroadcaster{failEvery: 3, failErr: errors.New("node busy")}, Options{})

	var failures int
	for i := 0; i < 9; i++ {
		if _, err := s.Submit(context.Background(), c, id); err != nil {
			failures++
		}
	}
	if failures != 3 {
		t.Errorf("failures = %d, want 3", failures)
	}
}

func TestOfflineExport(t *testing.T) {
	c, id := compose(t)
	d := &MemoryDeliverer{}
	e := NewOfflineExport(d, Options{Beneficiaries: testBeneficiaries})

	res, err := e.Submit(context.Background(), c, id)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if want := "hive-post-alice-" + c.Permlink[:20] + ".json"; res.Filename != want {
		t.Errorf("Filename = %q, want %q", res.Filename, want)
	}

	name, data, ok := d.Last()
	if !ok || name != res.Filename || !bytes.Equal(data, res.Data) {
		t.Fatalf("deliverer has %q (%v)", name, ok)
	}
	if !bytes.Contains(data, []byte("\n  \"operations\": [")) {
		t.Errorf("export is not 2-space indented:\n%s", data)
	}

	var doc struct {
		Operations  []json.RawMessage `json:"operations"`
		PostingData hive.PostingData  `json:"posting_data"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Operations) != 2 {
		t.Fatalf("operations = %d", len(doc.Operations))
	}
	pd := doc.PostingData
	if pd.Community != "hive-115276" || pd.Category != "onboarding" || pd.Title != c.Title || pd.App != "checkinecuador/1.0.0" {
		t.Errorf("posting_data = %+v", pd)
	}
	if len(pd.Beneficiaries) != 1 || pd.Beneficiaries[0].Weight != 8000 {
		t.Errorf("beneficiaries = %+v", pd.Beneficiaries)
	}
}

func TestStrategiesProduceIdenticalOperations(t *testing.T) {
	c, id := compose(t)

	b := &flakyBroadcaster{}
	if _, err := NewSignedBroadcast(b, Options{Beneficiaries: testBeneficiaries}).Submit(context.Background(), c, id); err != nil {
		t.Fatal(err)
	}
	res, err := NewOfflineExport(&MemoryDeliverer{}, Options{Beneficiaries: testBeneficiaries}).Submit(context.Background(), c, id)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Operations json.RawMessage `json:"operations"`
	}
	if err := json.Unmarshal(res.Data, &doc); err != nil {
		t.Fatal(err)
	}
	var exported bytes.Buffer
	if err := json.Compact(&exported, doc.Operations); err != nil {
		t.Fatal(err)
	}
	broadcast, err := json.Marshal(b.ops)
	if err != nil {
		t.Fatal(err)
	}

	if exported.String() != string(broadcast) {
		t.Errorf("operations differ\nexport:    %s\nbroadcast: %s", exported.String(), broadcast)
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		author, permlink, want string
	}{
		{"alice", "i-was-onboarded-to-hive-by-bob-1700000000000", "hive-post-alice-i-was-onboarded-to-h.json"},
		{"bob", "short", "hive-post-bob-short.json"},
	}
	for _, tt := range tests {
		if got := ExportFilename(tt.author, tt.permlink); got != tt.want {
			t.Errorf("ExportFilename(%q, %q) = %q, want %q", tt.author, tt.permlink, got, tt.want)
		}
	}
}

func TestDirDeliverer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := DirDeliverer{Dir: dir}.Deliver(context.Background(), "hive-post-a-b.json", []byte("{}"))
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if path != filepath.Join(dir, "hive-post-a-b.json") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{}" {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestExportDeliveryFailure(t *testing.T) {
	c, id := compose(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewOfflineExport(DirDeliverer{Dir: file}, Options{}).Submit(context.Background(), c, id)
	if !apperr.Is(err, apperr.KindSubmission) {
		t.Errorf("error = %v, want submission error", err)
	}
}

func TestPostURL(t *testing.T) {
	if got := PostURL("https://peakd.com/", "alice", "p-1"); got != "https://peakd.com/@alice/p-1" {
		t.Errorf("PostURL() = %q", got)
	}
}
