// Package config handles YAML configuration parsing and validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/checkinecuador/checkin/internal/post"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "checkin.yaml"

// DefaultImgurEndpoint is the image upload endpoint used when only client IDs are given.
const DefaultImgurEndpoint = "https://api.imgur.com/3/image"

// Config represents the checkin.yaml configuration file.
type Config struct {
	// Ledger presentation
	LedgerName  string `yaml:"ledger_name" validate:"required"`
	FrontendURL string `yaml:"frontend_url" validate:"required,url"`

	// Post constants
	Community     string      `yaml:"community" validate:"required"`
	AppID         string      `yaml:"app_id" validate:"required"`
	Developer     string      `yaml:"developer,omitempty"`
	Country       string      `yaml:"country" validate:"required"`
	PaymentDomain string      `yaml:"payment_domain" validate:"required,hostname"`
	Beneficiary   Beneficiary `yaml:"beneficiary"`

	// Remote collaborators
	Upload UploadConfig `yaml:"upload"`
	RPC    RPCConfig    `yaml:"rpc"`

	// Timeouts for a single external call and for a Keychain round trip
	CallTimeout     time.Duration `yaml:"call_timeout" validate:"gt=0"`
	KeychainTimeout time.Duration `yaml:"keychain_timeout" validate:"gt=0"`

	Server    ServerConfig `yaml:"server"`
	ExportDir string       `yaml:"export_dir,omitempty"`
	Log       LogConfig    `yaml:"log"`

	// BaseDir is the directory containing the config file (for relative paths).
	// Not parsed from YAML, set by Load().
	BaseDir string `yaml:"-"`
}

// Beneficiary receives a fixed share of the post's rewards.
// Weight is in basis points (10000 = 100%).
type Beneficiary struct {
	Account string `yaml:"account" validate:"required"`
	Weight  uint16 `yaml:"weight" validate:"min=1,max=10000"`
}

// ImageHost is one (endpoint, credential) pair of the upload fallback chain.
type ImageHost struct {
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	ClientID string `yaml:"client_id" validate:"required"`
}

// UploadConfig configures the upload gateway.
type UploadConfig struct {
	MaxSize       int64       `yaml:"max_size" validate:"gt=0"`
	AllowFallback bool        `yaml:"allow_fallback"`
	Hosts         []ImageHost `yaml:"hosts" validate:"dive"`
}

// RPCConfig configures the ledger RPC client.
type RPCConfig struct {
	Nodes []string `yaml:"nodes" validate:"min=1,dive,url"`
	// BreakerFailures is the number of consecutive failures after which a
	// node is skipped for a while. 0 disables the breaker.
	BreakerFailures uint32 `yaml:"breaker_failures"`
}

// ServerConfig configures the local web form server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port" validate:"min=0,max=65535"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration for the Ecuador community.
func Default() *Config {
	return &Config{
		LedgerName:    "Hive",
		FrontendURL:   "https://hive.blog",
		Community:     "hive-115276",
		AppID:         "checkinecuador/1.0.0",
		Country:       "Ecuador",
		PaymentDomain: "sats.v4v.app",
		Developer:     "menobass",
		Beneficiary: Beneficiary{
			Account: "hiveecuador",
			Weight:  8000,
		},
		Upload: UploadConfig{
			MaxSize:       10 * 1024 * 1024,
			AllowFallback: true,
			Hosts: []ImageHost{
				{Endpoint: DefaultImgurEndpoint, ClientID: "4d83e353ac99be2"},
			},
		},
		RPC: RPCConfig{
			Nodes: []string{
				"https://api.hive.blog",
				"https://hived.privex.io",
				"https://anyx.io",
				"https://api.openhive.network",
			},
			BreakerFailures: 5,
		},
		CallTimeout:     15 * time.Second,
		KeychainTimeout: 120 * time.Second,
		Server: ServerConfig{
			Listen: "127.0.0.1",
			Port:   8000,
		},
		ExportDir: ".",
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, err
	}

	// Set base directory for relative path resolution
	absPath, err := filepath.Abs(path)
	if err == nil {
		cfg.BaseDir = filepath.Dir(absPath)
	}

	return cfg, nil
}

// Parse reads config from a reader on top of the defaults.
// Keys missing from the document keep their default value.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// GetEnv returns the value of a CHECKIN_ prefixed environment variable.
func GetEnv(name string) string {
	return os.Getenv("CHECKIN_" + name)
}

// ApplyEnv overrides config values from CHECKIN_* environment variables.
// getenv is usually GetEnv; tests pass a map lookup.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LEDGER_NAME"); v != "" {
		c.LedgerName = v
	}
	if v := getenv("COMMUNITY"); v != "" {
		c.Community = v
	}
	if v := getenv("BENEFICIARY"); v != "" {
		c.Beneficiary.Account = v
	}
	if v := getenv("IMGUR_CLIENT_IDS"); v != "" {
		c.Upload.Hosts = lo.Map(SplitList(v), func(id string, _ int) ImageHost {
			return ImageHost{Endpoint: DefaultImgurEndpoint, ClientID: id}
		})
	}
	if v := getenv("RPC_NODES"); v != "" {
		c.RPC.Nodes = SplitList(v)
	}
	if v := getenv("ALLOW_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHECKIN_ALLOW_FALLBACK %q: %w", v, err)
		}
		c.Upload.AllowFallback = b
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHECKIN_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// SplitList splits a comma-separated list, trimming blanks and duplicates.
func SplitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(parts))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the config has required fields and valid URLs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if len(c.Upload.Hosts) == 0 && !c.Upload.AllowFallback {
		return fmt.Errorf("no image hosts configured and fallback disabled: uploads cannot succeed")
	}

	for _, node := range c.RPC.Nodes {
		if err := ValidateURL(node); err != nil {
			return fmt.Errorf("invalid rpc node %q: %w", node, err)
		}
	}

	return nil
}

// ValidateURL checks if a string is a valid URL with http/https scheme.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must have http or https scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	// Host must be localhost, an IP or contain a dot (domain.tld)
	host := parsed.Hostname()
	if host != "localhost" && !strings.Contains(host, ".") && !strings.Contains(host, ":") {
		return fmt.Errorf("invalid host %q: must be a valid domain (e.g., api.hive.blog)", host)
	}

	return nil
}

// ResolvePath resolves a path relative to the config file directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// ListenAddr returns host:port for the web server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Listen, c.Server.Port)
}

// PostSettings returns the community constants used to compose posts.
func (c *Config) PostSettings() post.Settings {
	return post.Settings{
		LedgerName:    c.LedgerName,
		Community:     c.Community,
		AppID:         c.AppID,
		Country:       c.Country,
		PaymentDomain: c.PaymentDomain,
		Developer:     c.Developer,
	}
}
