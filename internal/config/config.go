package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is read when no --config flag is given and the file exists.
const DefaultFile = "config.ini"

// Supported date orderings. The separator is substituted for "-" at validation time.
var dateLayouts = []string{"dd-mm-yyyy", "yyyy-mm-dd", "mm-dd-yyyy"}

// Config dwh-etl configuration. Sections mirror the INI file layout used by the warehouse team.
type Config struct {
	Sources struct {
		PatientFile     string // SOURCES.FILEPATH_PATIENT
		DocumentsDir    string // SOURCES.FILEPATH_DOCUMENTS
		OriginPatientID string // SOURCES.ORIGIN_PATIENT_ID, origin system written to the IPP history
	}
	Date struct {
		Format    string // e.g. "dd-mm-yyyy" or "yyyy/mm/dd"
		Separator string
	}
	Duplication struct {
		MatchingCount int // similarity threshold, 0..8
	}
	Constant struct {
		LastMasterPatientID string
	}
	Output struct {
		ErrorDir string
	}
	Database DatabaseConfig
	Log      struct {
		Level  string
		Format string
	}
	Notify NotifyConfig
}

// DatabaseConfig warehouse connection. Driver "sqlite3" uses Path, "postgres" the network fields.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// NotifyConfig batch-completed notification targets. Every target is off while its address is empty.
type NotifyConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisStream    string
	MQTTBroker     string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTTopic      string
	MQTTQoS        int
	WebhookURL     string
	WebhookTimeout time.Duration
}

// GetDSN returns the driver specific data source name.
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	}
	return c.Path
}

// key -> environment variable override
var envBindings = map[string]string{
	"sources.filepath_patient":        "DWH_FILEPATH_PATIENT",
	"sources.filepath_documents":      "DWH_FILEPATH_DOCUMENTS",
	"sources.database_path":           "DWH_DATABASE_PATH",
	"sources.origin_patient_id":       "DWH_ORIGIN_PATIENT_ID",
	"date.format":                     "DWH_DATE_FORMAT",
	"date.separator":                  "DWH_DATE_SEPARATOR",
	"duplication.matching_count":      "DWH_MATCHING_COUNT",
	"constant.last_master_patient_id": "DWH_LAST_MASTER_PATIENT_ID",
	"output.filepath_error":           "DWH_FILEPATH_ERROR",
	"database.driver":                 "DB_DRIVER",
	"database.host":                   "DB_HOST",
	"database.port":                   "DB_PORT",
	"database.user":                   "DB_USER",
	"database.password":               "DB_PASSWORD",
	"database.name":                   "DB_NAME",
	"database.sslmode":                "DB_SSLMODE",
	"database.max_conns":              "DB_MAX_CONNS",
	"log.level":                       "LOG_LEVEL",
	"log.format":                      "LOG_FORMAT",
	"notify.redis_addr":               "REDIS_ADDR",
	"notify.redis_password":           "REDIS_PASSWORD",
	"notify.redis_db":                 "REDIS_DB",
	"notify.redis_stream":             "DWH_NOTIFY_STREAM",
	"notify.mqtt_broker":              "MQTT_BROKER",
	"notify.mqtt_client_id":           "MQTT_CLIENT_ID",
	"notify.mqtt_username":            "MQTT_USERNAME",
	"notify.mqtt_password":            "MQTT_PASSWORD",
	"notify.mqtt_topic":               "DWH_NOTIFY_TOPIC",
	"notify.mqtt_qos":                 "MQTT_QOS",
	"notify.webhook_url":              "DWH_NOTIFY_WEBHOOK_URL",
	"notify.webhook_timeout":          "DWH_NOTIFY_WEBHOOK_TIMEOUT",
}

// Load reads the INI file at path (DefaultFile when empty and present) and applies
// environment overrides on top of it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("ini")

	v.SetDefault("sources.database_path", "dwh.db")
	v.SetDefault("sources.origin_patient_id", "HOSPITAL")
	v.SetDefault("date.format", "dd-mm-yyyy")
	v.SetDefault("date.separator", "-")
	v.SetDefault("duplication.matching_count", 6)
	v.SetDefault("constant.last_master_patient_id", "1")
	v.SetDefault("output.filepath_error", ".")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "dwh")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("notify.redis_stream", "dwh:batches")
	v.SetDefault("notify.mqtt_client_id", "dwh-etl")
	v.SetDefault("notify.mqtt_topic", "dwh/batches")
	v.SetDefault("notify.mqtt_qos", 1)
	v.SetDefault("notify.webhook_timeout", "10s")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.Sources.PatientFile = v.GetString("sources.filepath_patient")
	cfg.Sources.DocumentsDir = v.GetString("sources.filepath_documents")
	cfg.Sources.OriginPatientID = v.GetString("sources.origin_patient_id")
	cfg.Date.Format = v.GetString("date.format")
	cfg.Date.Separator = v.GetString("date.separator")
	cfg.Duplication.MatchingCount = v.GetInt("duplication.matching_count")
	cfg.Constant.LastMasterPatientID = v.GetString("constant.last_master_patient_id")
	cfg.Output.ErrorDir = v.GetString("output.filepath_error")

	cfg.Database.Driver = strings.ToLower(v.GetString("database.driver"))
	cfg.Database.Path = v.GetString("sources.database_path")
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Database = v.GetString("database.name")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.MaxConns = v.GetInt("database.max_conns")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.Notify.RedisAddr = v.GetString("notify.redis_addr")
	cfg.Notify.RedisPassword = v.GetString("notify.redis_password")
	cfg.Notify.RedisDB = v.GetInt("notify.redis_db")
	cfg.Notify.RedisStream = v.GetString("notify.redis_stream")
	cfg.Notify.MQTTBroker = v.GetString("notify.mqtt_broker")
	cfg.Notify.MQTTClientID = v.GetString("notify.mqtt_client_id")
	cfg.Notify.MQTTUsername = v.GetString("notify.mqtt_username")
	cfg.Notify.MQTTPassword = v.GetString("notify.mqtt_password")
	cfg.Notify.MQTTTopic = v.GetString("notify.mqtt_topic")
	cfg.Notify.MQTTQoS = v.GetInt("notify.mqtt_qos")
	cfg.Notify.WebhookURL = v.GetString("notify.webhook_url")
	cfg.Notify.WebhookTimeout = v.GetDuration("notify.webhook_timeout")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings shared by both jobs.
func (c *Config) Validate() error {
	var errs []error
	if c.Duplication.MatchingCount < 0 || c.Duplication.MatchingCount > 8 {
		errs = append(errs, fmt.Errorf("DUPLICATION.MATCHING_COUNT must be between 0 and 8, got %d", c.Duplication.MatchingCount))
	}
	if c.Date.Separator == "" {
		errs = append(errs, errors.New("DATE.SEPARATOR is required"))
	} else if !c.knownDateFormat() {
		errs = append(errs, fmt.Errorf("DATE.FORMAT %q does not match separator %q", c.Date.Format, c.Date.Separator))
	}
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("SOURCES.DATABASE_PATH is required for sqlite3"))
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE.DRIVER %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// RequirePatientSource is checked by the patient job only.
func (c *Config) RequirePatientSource() error {
	if c.Sources.PatientFile == "" {
		return errors.New("SOURCES.FILEPATH_PATIENT is required")
	}
	return nil
}

// RequireDocumentSource is checked by the document job only.
func (c *Config) RequireDocumentSource() error {
	if c.Sources.DocumentsDir == "" {
		return errors.New("SOURCES.FILEPATH_DOCUMENTS is required")
	}
	return nil
}

func (c *Config) knownDateFormat() bool {
	for _, layout := range dateLayouts {
		if strings.ReplaceAll(layout, "-", c.Date.Separator) == c.Date.Format {
			return true
		}
	}
	return false
}
