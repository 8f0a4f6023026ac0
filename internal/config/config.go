// Package config loads and persists the pdf-editor service configuration.
package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

const (
	DefaultConfigFileName = "pdf-editor-config.json"

	// EnvPort overrides the listen port, as the hosted deployment expects.
	EnvPort         = "PORT"
	EnvUploadDir    = "PDF_EDITOR_UPLOAD_DIR"
	EnvSignatureDir = "PDF_EDITOR_SIGNATURE_DIR"
	EnvRedisAddr    = "PDF_EDITOR_REDIS_ADDR"

	DefaultListenAddr      = ":5000"
	DefaultUploadDir       = "uploads"
	DefaultSignatureDir    = "signatures"
	DefaultDataDir         = ".pdf-editor"
	DefaultCursiveFontPath = "GreatVibes-Regular.ttf"
	DefaultCursiveFontName = "GreatVibes"
	DefaultRedisKey        = "pdf-editor:signatures"
	DefaultMaxUploadMB     = 50
)

// ConfigManager owns the on-disk config file and the effective Config,
// which is the file content overlaid with environment overrides.
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a manager for configPath. An empty path resolves
// to ~/.config/pdf-editor/pdf-editor-config.json.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-editor", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		ListenAddr:       DefaultListenAddr,
		UploadDir:        DefaultUploadDir,
		SignatureDir:     DefaultSignatureDir,
		DataDir:          DefaultDataDir,
		CursiveFontPath:  DefaultCursiveFontPath,
		CursiveFontName:  DefaultCursiveFontName,
		SignatureBackend: types.SignatureBackendFS,
		RedisKey:         DefaultRedisKey,
		MaxUploadMB:      DefaultMaxUploadMB,
		LogLevel:         "info",
	}
}

// Load reads the config file. A missing file or invalid JSON yields the
// defaults; empty fields are back-filled and environment overrides applied.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		m.config = defaultConfig()
	case err != nil:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		cfg := &types.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			m.config = cfg
		}
	}

	m.backfill()
	m.applyEnv()

	logger.Info("configuration loaded",
		logger.String("listen", m.config.ListenAddr),
		logger.String("uploads", m.config.UploadDir),
		logger.String("signatures", m.config.SignatureDir),
		logger.String("signatureBackend", string(m.config.SignatureBackend)))
	return nil
}

func (m *ConfigManager) backfill() {
	d := defaultConfig()
	c := m.config
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.UploadDir == "" {
		c.UploadDir = d.UploadDir
	}
	if c.SignatureDir == "" {
		c.SignatureDir = d.SignatureDir
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.CursiveFontName == "" {
		c.CursiveFontName = d.CursiveFontName
	}
	if c.SignatureBackend == "" {
		c.SignatureBackend = d.SignatureBackend
	}
	if c.RedisKey == "" {
		c.RedisKey = d.RedisKey
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = d.MaxUploadMB
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func (m *ConfigManager) applyEnv() {
	if port := os.Getenv(EnvPort); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			host, _, splitErr := net.SplitHostPort(m.config.ListenAddr)
			if splitErr != nil {
				host = ""
			}
			m.config.ListenAddr = net.JoinHostPort(host, port)
		} else {
			logger.Warn("ignoring non-numeric PORT", logger.String("value", port))
		}
	}
	if v := os.Getenv(EnvUploadDir); v != "" {
		m.config.UploadDir = v
	}
	if v := os.Getenv(EnvSignatureDir); v != "" {
		m.config.SignatureDir = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		m.config.RedisAddr = v
	}
}

// Save writes the current configuration to the config file.
func (m *ConfigManager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the effective configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

func (m *ConfigManager) GetListenAddr() string {
	if m.config != nil && m.config.ListenAddr != "" {
		return m.config.ListenAddr
	}
	return DefaultListenAddr
}

func (m *ConfigManager) GetUploadDir() string {
	if m.config != nil && m.config.UploadDir != "" {
		return m.config.UploadDir
	}
	return DefaultUploadDir
}

func (m *ConfigManager) GetSignatureDir() string {
	if m.config != nil && m.config.SignatureDir != "" {
		return m.config.SignatureDir
	}
	return DefaultSignatureDir
}

func (m *ConfigManager) GetDataDir() string {
	if m.config != nil && m.config.DataDir != "" {
		return m.config.DataDir
	}
	return DefaultDataDir
}

// GetMaxUploadBytes returns the upload size limit in bytes.
func (m *ConfigManager) GetMaxUploadBytes() int64 {
	mb := DefaultMaxUploadMB
	if m.config != nil && m.config.MaxUploadMB > 0 {
		mb = m.config.MaxUploadMB
	}
	return int64(mb) << 20
}

// UpdateDirectories changes the storage directories and saves. Empty
// arguments leave the current value.
func (m *ConfigManager) UpdateDirectories(uploadDir, signatureDir string) error {
	if m.config == nil {
		m.config = defaultConfig()
	}
	if uploadDir != "" {
		m.config.UploadDir = uploadDir
	}
	if signatureDir != "" {
		m.config.SignatureDir = signatureDir
	}
	return m.Save()
}
