package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/checkinecuador/checkin/internal/ui"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned by Save when the file is already there.
var ErrExists = errors.New("config file already exists")

// Prompter asks the questions of the setup wizard.
type Prompter interface {
	PromptDefault(message, defaultValue string) (string, error)
	Confirm(message string, defaultYes bool) (bool, error)
}

// TerminalPrompter asks on the terminal.
type TerminalPrompter struct{}

func (TerminalPrompter) PromptDefault(message, defaultValue string) (string, error) {
	return ui.PromptDefault(message, defaultValue)
}

func (TerminalPrompter) Confirm(message string, defaultYes bool) (bool, error) {
	return ui.Confirm(message, defaultYes)
}

// RunWizard asks for the settings a community usually changes, starting
// from defaults (or the built-in defaults when nil).
func RunWizard(defaults *Config, p Prompter) (*Config, error) {
	cfg := Default()
	if defaults != nil {
		*cfg = *defaults
	}

	var err error
	if cfg.Community, err = p.PromptDefault("Community tag", cfg.Community); err != nil {
		return nil, err
	}
	if cfg.Country, err = p.PromptDefault("Country", cfg.Country); err != nil {
		return nil, err
	}
	if cfg.Beneficiary.Account, err = p.PromptDefault("Beneficiary account", cfg.Beneficiary.Account); err != nil {
		return nil, err
	}

	for {
		pct, err := p.PromptDefault("Beneficiary share in %", strconv.Itoa(int(cfg.Beneficiary.Weight)/100))
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(pct), "%"))
		if convErr == nil && n >= 1 && n <= 100 {
			cfg.Beneficiary.Weight = uint16(n * 100)
			break
		}
		ui.WarningStatus("Invalid", "enter a whole number between 1 and 100")
	}

	current := strings.Join(lo.Map(cfg.Upload.Hosts, func(h ImageHost, _ int) string { return h.ClientID }), ",")
	ids, err := p.PromptDefault("Image host client IDs (comma-separated)", current)
	if err != nil {
		return nil, err
	}
	if ids != current {
		cfg.Upload.Hosts = lo.Map(SplitList(ids), func(id string, _ int) ImageHost {
			return ImageHost{Endpoint: DefaultImgurEndpoint, ClientID: id}
		})
	}

	if cfg.Upload.AllowFallback, err = p.Confirm("Embed the selfie in the post when every host fails?", cfg.Upload.AllowFallback); err != nil {
		return nil, err
	}
	if cfg.ExportDir, err = p.PromptDefault("Directory for exported transactions", cfg.ExportDir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML. An existing file is only replaced with force.
func Save(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
