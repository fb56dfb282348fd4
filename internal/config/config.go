// Package config loads the click session file: per-context endpoint,
// credential sources, trust directive, plus session tunables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/goyalankit/click/internal/identity"
	"github.com/goyalankit/click/internal/logging"
)

// Defaults for tunable policies. Exposed as configuration, not contracts.
const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultCancelGrace     = 5 * time.Second
)

// File mirrors the on-disk YAML layout.
type File struct {
	Contexts []Context `json:"contexts"`
	Settings Settings  `json:"settings"`
}

// Settings holds session-wide tunables.
type Settings struct {
	RefreshInterval string `json:"refresh-interval"`
	CancelGrace     string `json:"cancel-grace"`
	LogFile         string `json:"log-file"`
	LogLevel        string `json:"log-level"`
	LogFormat       string `json:"log-format"`
}

// Context is one named cluster target.
type Context struct {
	Name        string       `json:"name"`
	Server      string       `json:"server"`
	Credentials []Credential `json:"credentials"`
	Trust       Trust        `json:"trust"`
}

// Credential is one credential source block. File and Data are mutually
// exclusive; Data is base64.
type Credential struct {
	Encoding       string `json:"encoding"`
	File           string `json:"file"`
	Data           string `json:"data"`
	Passphrase     string `json:"passphrase"`
	PassphraseFile string `json:"passphrase-file"`
}

// Trust is the per-context trust directive. Exactly one of CAFile/CAData or
// InsecureSkipVerify must be set.
type Trust struct {
	CAFile             string `json:"ca-file"`
	CAData             string `json:"ca-data"`
	InsecureSkipVerify bool   `json:"insecure-skip-verify"`
}

// Config is the validated, loaded session configuration.
type Config struct {
	Contexts        []Context
	RefreshInterval time.Duration
	CancelGrace     time.Duration
	LogFile         string
	LogLevel        string
	LogFormat       string

	// Skipped records context names rejected during validation, so the
	// session can report them without failing the others.
	Skipped map[string]error
}

// DefaultPath returns ~/.click/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".click", "config.yaml")
}

// Load reads and validates the session file. A malformed context block is
// skipped (recorded in Skipped) so the remaining contexts still load; only
// a file with no usable context at all is a load failure.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML session configuration.
func Parse(data []byte) (*Config, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		RefreshInterval: DefaultRefreshInterval,
		CancelGrace:     DefaultCancelGrace,
		LogFile:         file.Settings.LogFile,
		LogLevel:        file.Settings.LogLevel,
		LogFormat:       file.Settings.LogFormat,
		Skipped:         map[string]error{},
	}

	if s := file.Settings.RefreshInterval; s != "" {
		d, err := parsePositiveDuration(s)
		if err != nil {
			return nil, fmt.Errorf("settings.refresh-interval: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if s := file.Settings.CancelGrace; s != "" {
		d, err := parsePositiveDuration(s)
		if err != nil {
			return nil, fmt.Errorf("settings.cancel-grace: %w", err)
		}
		cfg.CancelGrace = d
	}

	log := logging.Get()
	seen := map[string]bool{}
	for i, ctx := range file.Contexts {
		if err := validateContext(ctx, seen); err != nil {
			name := ctx.Name
			if name == "" {
				name = fmt.Sprintf("contexts[%d]", i)
			}
			cfg.Skipped[name] = err
			log.Warn("skipping malformed context", "context", name, "error", err)
			continue
		}
		seen[ctx.Name] = true
		cfg.Contexts = append(cfg.Contexts, ctx)
	}

	if len(cfg.Contexts) == 0 {
		return nil, fmt.Errorf("no usable contexts in configuration (%d skipped)", len(cfg.Skipped))
	}
	return cfg, nil
}

// parsePositiveDuration rejects non-positive values; both tunables drive
// tickers and timeouts that require d > 0.
func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", s)
	}
	return d, nil
}

func validateContext(ctx Context, seen map[string]bool) error {
	if ctx.Name == "" {
		return fmt.Errorf("missing name")
	}
	if seen[ctx.Name] {
		return fmt.Errorf("duplicate context name")
	}
	if ctx.Server == "" {
		return fmt.Errorf("missing server endpoint")
	}
	if len(ctx.Credentials) == 0 {
		return fmt.Errorf("no credential sources")
	}
	for i, cred := range ctx.Credentials {
		if cred.File == "" && cred.Data == "" {
			return fmt.Errorf("credentials[%d]: neither file nor data set", i)
		}
		if cred.File != "" && cred.Data != "" {
			return fmt.Errorf("credentials[%d]: file and data are mutually exclusive", i)
		}
		switch identity.Encoding(cred.Encoding) {
		case "", identity.EncodingAuto, identity.EncodingPEM, identity.EncodingPKCS12:
		default:
			return fmt.Errorf("credentials[%d]: unknown encoding %q", i, cred.Encoding)
		}
	}
	strict := ctx.Trust.CAFile != "" || ctx.Trust.CAData != ""
	if strict == ctx.Trust.InsecureSkipVerify {
		return fmt.Errorf("trust: exactly one of ca-file/ca-data or insecure-skip-verify required")
	}
	return nil
}

// CredentialSources materializes the context's credential blobs, reading
// referenced files.
func (c Context) CredentialSources() ([]identity.CredentialSource, error) {
	sources := make([]identity.CredentialSource, 0, len(c.Credentials))
	for i, cred := range c.Credentials {
		var data []byte
		var err error
		switch {
		case cred.File != "":
			data, err = os.ReadFile(cred.File)
		default:
			data, err = base64.StdEncoding.DecodeString(cred.Data)
		}
		if err != nil {
			return nil, fmt.Errorf("credentials[%d]: %w", i, err)
		}

		passphrase := cred.Passphrase
		if cred.PassphraseFile != "" {
			raw, err := os.ReadFile(cred.PassphraseFile)
			if err != nil {
				return nil, fmt.Errorf("credentials[%d] passphrase: %w", i, err)
			}
			passphrase = string(trimNewline(raw))
		}

		encoding := identity.Encoding(cred.Encoding)
		if encoding == "" {
			encoding = identity.EncodingAuto
		}
		sources = append(sources, identity.CredentialSource{
			Encoding:   encoding,
			Data:       data,
			Passphrase: passphrase,
		})
	}
	return sources, nil
}

// TrustPolicy materializes the context's trust directive.
func (c Context) TrustPolicy() (identity.TrustPolicy, error) {
	if c.Trust.InsecureSkipVerify {
		return identity.InsecureSkipVerify(), nil
	}
	var bundle []byte
	var err error
	switch {
	case c.Trust.CAFile != "":
		bundle, err = os.ReadFile(c.Trust.CAFile)
	case c.Trust.CAData != "":
		bundle, err = base64.StdEncoding.DecodeString(c.Trust.CAData)
	default:
		return identity.TrustPolicy{}, identity.ErrNoTrustPolicy
	}
	if err != nil {
		return identity.TrustPolicy{}, fmt.Errorf("trust bundle: %w", err)
	}
	return identity.StrictCA(bundle)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
