package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// DotfilePolicy controls how path segments starting with '.' are treated.
type DotfilePolicy string

const (
	// DotfilesAllow serves dotfiles like any other file.
	DotfilesAllow DotfilePolicy = "allow"
	// DotfilesDeny rejects dotfile requests. Observable behavior is 404,
	// identical to DotfilesIgnore; the two exist so operators can state
	// intent in configuration.
	DotfilesDeny DotfilePolicy = "deny"
	// DotfilesIgnore treats dotfiles as nonexistent.
	DotfilesIgnore DotfilePolicy = "ignore"
)

// LogLevel defines the minimum severity for error logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server     *ServerConfig     `json:"server,omitempty" toml:"server,omitempty"`
	FileServer *FileServerConfig `json:"file_server,omitempty" toml:"file_server,omitempty"`
	Logging    *LoggingConfig    `json:"logging,omitempty" toml:"logging,omitempty"`
}

// ServerConfig holds general server settings.
type ServerConfig struct {
	Address         *string `json:"address,omitempty" toml:"address,omitempty"`
	ReadTimeout     *string `json:"read_timeout,omitempty" toml:"read_timeout,omitempty"`         // e.g. "10s"
	ShutdownTimeout *string `json:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty"` // e.g. "30s"
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	LogLevel  LogLevel         `json:"log_level,omitempty" toml:"log_level,omitempty"`
	AccessLog *AccessLogConfig `json:"access_log,omitempty" toml:"access_log,omitempty"`
	ErrorLog  *ErrorLogConfig  `json:"error_log,omitempty" toml:"error_log,omitempty"`
}

// AccessLogConfig configures access logging.
type AccessLogConfig struct {
	Enabled *bool  `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Target  string `json:"target,omitempty" toml:"target,omitempty"`
}

// ErrorLogConfig configures error logging.
type ErrorLogConfig struct {
	Target string `json:"target,omitempty" toml:"target,omitempty"`
}

// CacheControlRule pairs a path pattern (regexp) with the Cache-Control
// directive emitted for matching paths. Rules are evaluated in order, first
// match wins.
type CacheControlRule struct {
	Pattern   string `json:"pattern" toml:"pattern"`
	Directive string `json:"directive" toml:"directive"`
}

// FileServerConfig configures the static file serving pipeline.
//
// Etag and Compression are unions in the file format (bool | string, and
// bool | string-array respectively), so they are declared as interface{} and
// normalized exactly once by Validate into EtagPolicy and EncodingPolicy.
// Request handling only ever reads the normalized forms.
type FileServerConfig struct {
	DocumentRoot          string             `json:"document_root" toml:"document_root"`
	IndexFiles            []string           `json:"index_files,omitempty" toml:"index_files,omitempty"`
	Dotfiles              string             `json:"dotfiles,omitempty" toml:"dotfiles,omitempty"`
	Headers               map[string]string  `json:"headers,omitempty" toml:"headers,omitempty"`
	Streaming             *bool              `json:"streaming,omitempty" toml:"streaming,omitempty"`
	Etag                  interface{}        `json:"etag,omitempty" toml:"etag,omitempty"`
	Compression           interface{}        `json:"compression,omitempty" toml:"compression,omitempty"`
	Precompressed         *bool              `json:"precompressed,omitempty" toml:"precompressed,omitempty"`
	CacheControl          *string            `json:"cache_control,omitempty" toml:"cache_control,omitempty"`
	CacheControlRules     []CacheControlRule `json:"cache_control_rules,omitempty" toml:"cache_control_rules,omitempty"`
	ServeDirectoryListing *bool              `json:"serve_directory_listing,omitempty" toml:"serve_directory_listing,omitempty"`
	MimeTypes             map[string]string  `json:"mime_types,omitempty" toml:"mime_types,omitempty"`

	// Normalized forms, populated by Validate.
	EtagPolicy         EtagPolicy         `json:"-" toml:"-"`
	EncodingPolicy     EncodingPolicy     `json:"-" toml:"-"`
	CacheControlPolicy CacheControlPolicy `json:"-" toml:"-"`
	DotfilePolicy      DotfilePolicy      `json:"-" toml:"-"`
}

// EtagPolicy is the resolved form of the etag option.
type EtagPolicy struct {
	Enabled bool
	Weak    bool
}

// EncodingPolicy is the resolved form of the compression option.
// Allowed holds canonical tokens from {"br", "gzip", "deflate"}.
type EncodingPolicy struct {
	Enabled bool
	Allowed []string
}

// Allows reports whether the given canonical encoding token is permitted.
func (p EncodingPolicy) Allows(token string) bool {
	if !p.Enabled {
		return false
	}
	for _, a := range p.Allowed {
		if a == token {
			return true
		}
	}
	return false
}

// CacheControlPolicy is the resolved form of the cache_control options:
// either a single global directive, an ordered list of compiled pattern
// rules, or nothing at all.
type CacheControlPolicy struct {
	Global string
	Rules  []CompiledCacheRule
}

// CompiledCacheRule is a CacheControlRule with its pattern compiled. Patterns
// are compiled during Validate so that serving never pays for compilation and
// invalid patterns are rejected before the server starts.
type CompiledCacheRule struct {
	Pattern   *regexp.Regexp
	Directive string
}

// Directive returns the Cache-Control value for the given request path, if
// any rule (or the global directive) applies.
func (p CacheControlPolicy) Directive(path string) (string, bool) {
	for _, r := range p.Rules {
		if r.Pattern.MatchString(path) {
			return r.Directive, true
		}
	}
	if p.Global != "" {
		return p.Global, true
	}
	return "", false
}

// ConfigError describes a configuration problem tied to a file.
type ConfigError struct {
	FilePath string
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.FilePath, e.Message, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.FilePath, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsFilePath reports whether a log target names a file rather than one of
// the standard streams.
func IsFilePath(target string) bool {
	return target != "stdout" && target != "stderr"
}

// LoadConfig reads and parses the configuration file at path. The format is
// chosen by extension (.json or .toml); for any other extension TOML is
// tried first, then JSON. The parsed configuration is defaulted and
// validated before being returned.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{FilePath: path, Message: "failed to parse JSON configuration", Err: err}
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{FilePath: path, Message: "failed to parse TOML configuration", Err: err}
		}
	default:
		if tomlErr := toml.Unmarshal(data, cfg); tomlErr != nil {
			*cfg = Config{}
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, &ConfigError{
					FilePath: path,
					Message:  fmt.Sprintf("failed to parse configuration as TOML (%v) or JSON", tomlErr),
					Err:      jsonErr,
				}
			}
		}
	}

	applyDefaults(cfg)
	if err := Validate(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Address == nil {
		addr := ":8080"
		cfg.Server.Address = &addr
	}
	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.LogLevel == "" {
		cfg.Logging.LogLevel = LogLevelInfo
	}
	if cfg.Logging.ErrorLog == nil {
		cfg.Logging.ErrorLog = &ErrorLogConfig{Target: "stderr"}
	}
	if cfg.Logging.AccessLog == nil {
		enabled := true
		cfg.Logging.AccessLog = &AccessLogConfig{Enabled: &enabled, Target: "stdout"}
	}
	if cfg.Logging.AccessLog.Target == "" {
		cfg.Logging.AccessLog.Target = "stdout"
	}
	if cfg.Logging.ErrorLog.Target == "" {
		cfg.Logging.ErrorLog.Target = "stderr"
	}
}

// Validate checks the full configuration and normalizes the file server
// section. filePath is used only for error reporting.
func Validate(cfg *Config, filePath string) error {
	if cfg.FileServer == nil {
		return &ConfigError{FilePath: filePath, Message: "file_server section is required"}
	}
	return ValidateFileServerConfig(cfg.FileServer, filePath)
}

// ValidateFileServerConfig applies defaults to and validates a
// FileServerConfig, resolving all union-typed options into their normalized
// policy structs.
func ValidateFileServerConfig(fs *FileServerConfig, filePath string) error {
	if fs.DocumentRoot == "" {
		return &ConfigError{FilePath: filePath, Message: "document_root is required"}
	}
	absRoot, err := filepath.Abs(fs.DocumentRoot)
	if err != nil {
		return &ConfigError{FilePath: filePath, Message: "document_root could not be made absolute", Err: err}
	}
	fs.DocumentRoot = filepath.Clean(absRoot)

	fi, err := os.Stat(fs.DocumentRoot)
	if err != nil {
		return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("document_root %q is not accessible", fs.DocumentRoot), Err: err}
	}
	if !fi.IsDir() {
		return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("document_root %q is not a directory", fs.DocumentRoot)}
	}

	if len(fs.IndexFiles) == 0 {
		fs.IndexFiles = []string{"index.html"}
	}
	for _, name := range fs.IndexFiles {
		if name == "" || strings.ContainsAny(name, "/\\") {
			return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("index file name %q must be a bare file name", name)}
		}
	}

	switch fs.Dotfiles {
	case "":
		fs.DotfilePolicy = DotfilesIgnore
	case string(DotfilesAllow), string(DotfilesDeny), string(DotfilesIgnore):
		fs.DotfilePolicy = DotfilePolicy(fs.Dotfiles)
	default:
		return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("dotfiles must be one of allow, deny, ignore; got %q", fs.Dotfiles)}
	}

	if fs.Streaming == nil {
		streaming := true
		fs.Streaming = &streaming
	}
	if fs.Precompressed == nil {
		pre := true
		fs.Precompressed = &pre
	}
	if fs.ServeDirectoryListing == nil {
		listing := false
		fs.ServeDirectoryListing = &listing
	}

	etagPolicy, err := normalizeEtag(fs.Etag)
	if err != nil {
		return &ConfigError{FilePath: filePath, Message: err.Error()}
	}
	fs.EtagPolicy = etagPolicy

	encPolicy, err := normalizeCompression(fs.Compression)
	if err != nil {
		return &ConfigError{FilePath: filePath, Message: err.Error()}
	}
	fs.EncodingPolicy = encPolicy

	ccPolicy, err := normalizeCacheControl(fs.CacheControl, fs.CacheControlRules)
	if err != nil {
		return &ConfigError{FilePath: filePath, Message: err.Error()}
	}
	fs.CacheControlPolicy = ccPolicy

	for ext, mt := range fs.MimeTypes {
		if !strings.HasPrefix(ext, ".") {
			return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("mime_types extension %q must start with '.'", ext)}
		}
		if mt == "" {
			return &ConfigError{FilePath: filePath, Message: fmt.Sprintf("mime_types entry for %q has an empty type", ext)}
		}
	}

	return nil
}

// normalizeEtag resolves the etag union (true | "strong" | "weak" | false)
// into an EtagPolicy. The default is strong validators.
func normalizeEtag(raw interface{}) (EtagPolicy, error) {
	switch v := raw.(type) {
	case nil:
		return EtagPolicy{Enabled: true}, nil
	case bool:
		return EtagPolicy{Enabled: v}, nil
	case string:
		switch strings.ToLower(v) {
		case "strong":
			return EtagPolicy{Enabled: true}, nil
		case "weak":
			return EtagPolicy{Enabled: true, Weak: true}, nil
		}
		return EtagPolicy{}, fmt.Errorf("etag must be true, false, \"strong\" or \"weak\"; got %q", v)
	default:
		return EtagPolicy{}, fmt.Errorf("etag must be a boolean or string, got %T", raw)
	}
}

// canonicalEncodingToken maps config spellings to the Accept-Encoding token
// used on the wire. "brotli" is accepted as an alias for "br".
func canonicalEncodingToken(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "br", "brotli":
		return "br", true
	case "gzip":
		return "gzip", true
	case "deflate":
		return "deflate", true
	}
	return "", false
}

// normalizeCompression resolves the compression union (absent | false |
// string-array) into an EncodingPolicy. Absent means all supported
// algorithms are negotiable.
func normalizeCompression(raw interface{}) (EncodingPolicy, error) {
	allAllowed := []string{"br", "gzip", "deflate"}
	switch v := raw.(type) {
	case nil:
		return EncodingPolicy{Enabled: true, Allowed: allAllowed}, nil
	case bool:
		if v {
			return EncodingPolicy{Enabled: true, Allowed: allAllowed}, nil
		}
		return EncodingPolicy{}, nil
	case []interface{}:
		if len(v) == 0 {
			return EncodingPolicy{}, nil
		}
		var allowed []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return EncodingPolicy{}, fmt.Errorf("compression list entries must be strings, got %T", item)
			}
			token, ok := canonicalEncodingToken(s)
			if !ok {
				return EncodingPolicy{}, fmt.Errorf("unsupported compression algorithm %q (supported: br, gzip, deflate)", s)
			}
			allowed = appendUnique(allowed, token)
		}
		return EncodingPolicy{Enabled: true, Allowed: allowed}, nil
	case []string:
		items := make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
		return normalizeCompression(items)
	default:
		return EncodingPolicy{}, fmt.Errorf("compression must be a boolean or a list of algorithm names, got %T", raw)
	}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// normalizeCacheControl compiles the rule list, or adopts the single global
// directive. Configuring both is rejected.
func normalizeCacheControl(global *string, rules []CacheControlRule) (CacheControlPolicy, error) {
	if global != nil && len(rules) > 0 {
		return CacheControlPolicy{}, fmt.Errorf("cache_control and cache_control_rules are mutually exclusive")
	}
	if global != nil {
		if *global == "" {
			return CacheControlPolicy{}, fmt.Errorf("cache_control directive must not be empty")
		}
		return CacheControlPolicy{Global: *global}, nil
	}
	policy := CacheControlPolicy{}
	for _, rule := range rules {
		if rule.Directive == "" {
			return CacheControlPolicy{}, fmt.Errorf("cache_control_rules entry %q has an empty directive", rule.Pattern)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return CacheControlPolicy{}, fmt.Errorf("invalid cache_control_rules pattern %q: %v", rule.Pattern, err)
		}
		policy.Rules = append(policy.Rules, CompiledCacheRule{Pattern: re, Directive: rule.Directive})
	}
	return policy, nil
}
