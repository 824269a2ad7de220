package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	ServerConfig      ServerConfig      `json:"server_config"`
	AuthConfig        AuthConfig        `json:"auth_config"`
	EligibilityConfig EligibilityConfig `json:"eligibility_config"`
	LogConfig         LogConfig         `json:"log_config"`
	AlertConfig       AlertConfig       `json:"alert_config"`
	DBConfig          DBConfig          `json:"db_config"`
	MetricsConfig     MetricsConfig     `json:"metrics_config"`
	RetentionConfig   RetentionConfig   `json:"retention_config"`
}

type ServerConfig struct {
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

func (cfg *ServerConfig) Validate() {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		panic("server port is not correct")
	}
}

// AuthConfig carries the secrets the voting core holds itself: the HMAC key
// used to mint token secrets and the pre-shared secret for s2s endpoints.
// Both may be overridden by command-line flags, see main.go.
type AuthConfig struct {
	IssuingKey   string `json:"issuing_key"`
	S2SSecret    string `json:"s2s_secret"`
	TokenTTLSecs int64  `json:"token_ttl_secs"`
}

func (cfg *AuthConfig) Validate() {
	if cfg.TokenTTLSecs < 0 {
		panic("token_ttl_secs must not be negative")
	}
}

// EligibilityConfig points at the external membership collaborator that
// answers eligibility lookups. The core never stores membership data itself.
type EligibilityConfig struct {
	BaseURL              string `json:"base_url"`
	APIKey               string `json:"api_key"`
	CacheIntervalSeconds int64  `json:"cache_interval_seconds"`
}

func (cfg *EligibilityConfig) Validate() {
	if cfg.BaseURL == "" {
		panic("eligibility base_url should not be empty")
	}
}

type LogConfig struct {
	Level                        string `json:"level"`
	Filename                     string `json:"filename"`
	MaxFileSizeInMB              int    `json:"max_file_size_in_mb"`
	MaxBackupsOfLogFiles         int    `json:"max_backups_of_log_files"`
	MaxAgeToRetainLogFilesInDays int    `json:"max_age_to_retain_log_files_in_days"`
	UseConsoleLogger             bool   `json:"use_console_logger"`
	UseFileLogger                bool   `json:"use_file_logger"`
	Compress                     bool   `json:"compress"`
}

func (cfg *LogConfig) Validate() {
	if cfg.UseFileLogger {
		if cfg.Filename == "" {
			panic("filename should not be empty if use file logger")
		}
		if cfg.MaxFileSizeInMB <= 0 {
			panic("max_file_size_in_mb should be larger than 0 if use file logger")
		}
		if cfg.MaxBackupsOfLogFiles <= 0 {
			panic("max_backups_of_log_files should be larger than 0 if use file logger")
		}
	}
}

type DBConfig struct {
	Dialect      string `json:"dialect"`
	DBPath       string `json:"db_path"`
	Password     string `json:"password"`
	Username     string `json:"username"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
	DebugMode    bool   `json:"debug_mode"`
}

func (cfg *DBConfig) Validate() {
	if cfg.Dialect != DBDialectMysql {
		panic(fmt.Sprintf("only %s supported", DBDialectMysql))
	}
	if cfg.Username == "" || cfg.DBPath == "" {
		panic("db config is not correct")
	}
}

type AlertConfig struct {
	Identity       string `json:"identity"`
	TelegramBotId  string `json:"telegram_bot_id"`
	TelegramChatId string `json:"telegram_chat_id"`
}

type MetricsConfig struct {
	Port int `json:"port"`
}

// RetentionConfig governs the audit-log sweep. Token and ballot rows are
// never wiped, they are the audit trail.
type RetentionConfig struct {
	AuditRetentionDays int `json:"audit_retention_days"`
}

func (cfg *RetentionConfig) Validate() {
	if cfg.AuditRetentionDays <= 0 {
		panic("audit_retention_days should be larger than 0")
	}
}

func (cfg *Config) Validate() {
	cfg.ServerConfig.Validate()
	cfg.AuthConfig.Validate()
	cfg.EligibilityConfig.Validate()
	cfg.LogConfig.Validate()
	cfg.DBConfig.Validate()
	cfg.RetentionConfig.Validate()
}

func ParseConfigFromJson(content string) *Config {
	var config Config
	if err := json.Unmarshal([]byte(content), &config); err != nil {
		panic(err)
	}
	return &config
}

func ParseConfigFromFile(filePath string) *Config {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		panic(err)
	}

	var config Config
	if err := json.Unmarshal(bz, &config); err != nil {
		panic(err)
	}

	config.Validate()

	return &config
}
