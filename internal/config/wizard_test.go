package config

import (
	"errors"
	"path/filepath"
	"testing"
)

// scriptedPrompter answers prompts in order. An empty answer keeps the default.
type scriptedPrompter struct {
	answers  []string
	confirms []bool
	asked    []string
}

func (s *scriptedPrompter) PromptDefault(message, def string) (string, error) {
	s.asked = append(s.asked, message)
	if len(s.answers) == 0 {
		return "", errors.New("unexpected prompt: " + message)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a == "" {
		return def, nil
	}
	return a, nil
}

func (s *scriptedPrompter) Confirm(message string, def bool) (bool, error) {
	s.asked = append(s.asked, message)
	if len(s.confirms) == 0 {
		return def, nil
	}
	c := s.confirms[0]
	s.confirms = s.confirms[1:]
	return c, nil
}

func TestRunWizardKeepsDefaults(t *testing.T) {
	p := &scriptedPrompter{answers: []string{"", "", "", "", "", ""}}
	cfg, err := RunWizard(nil, p)
	if err != nil {
		t.Fatalf("RunWizard() error = %v", err)
	}

	def := Default()
	if cfg.Community != def.Community || cfg.Beneficiary != def.Beneficiary {
		t.Errorf("defaults changed: %+v", cfg)
	}
	if len(cfg.Upload.Hosts) != 1 || cfg.Upload.Hosts[0] != def.Upload.Hosts[0] {
		t.Errorf("hosts = %+v", cfg.Upload.Hosts)
	}
}

func TestRunWizardAnswers(t *testing.T) {
	p := &scriptedPrompter{
		answers:  []string{"hive-111111", "Peru", "hivepe", "abc", "15%", "id1, id2,id1", "exports"},
		confirms: []bool{false},
	}
	cfg, err := RunWizard(nil, p)
	if err != nil {
		t.Fatalf("RunWizard() error = %v", err)
	}

	if cfg.Community != "hive-111111" || cfg.Country != "Peru" || cfg.Beneficiary.Account != "hivepe" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	// "abc" is rejected and asked again
	if cfg.Beneficiary.Weight != 1500 {
		t.Errorf("weight = %d, want 1500", cfg.Beneficiary.Weight)
	}
	if len(cfg.Upload.Hosts) != 2 || cfg.Upload.Hosts[1].ClientID != "id2" || cfg.Upload.Hosts[1].Endpoint != DefaultImgurEndpoint {
		t.Errorf("hosts = %+v", cfg.Upload.Hosts)
	}
	if cfg.Upload.AllowFallback {
		t.Error("fallback should be off")
	}
	if cfg.ExportDir != "exports" {
		t.Errorf("export dir = %q", cfg.ExportDir)
	}
}

func TestRunWizardRejectsUnusableUpload(t *testing.T) {
	// No hosts and no fallback: nothing could ever be uploaded.
	p := &scriptedPrompter{answers: []string{"", "", "", "", " , ", ""}, confirms: []bool{false}}
	if _, err := RunWizard(nil, p); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	cfg := Default()
	cfg.Community = "hive-222222"

	if err := Save(cfg, path, false); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := Save(cfg, path, false); !errors.Is(err, ErrExists) {
		t.Fatalf("second Save() error = %v, want ErrExists", err)
	}
	if err := Save(cfg, path, true); err != nil {
		t.Fatalf("forced Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Community != "hive-222222" || loaded.CallTimeout != cfg.CallTimeout || loaded.KeychainTimeout != cfg.KeychainTimeout {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("saved config does not validate: %v", err)
	}
}
