package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" validate:"required,numeric"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=json pretty"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver" validate:"required,oneof=memory postgres mongo"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl" validate:"omitempty,duration"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Bank struct {
		TTL  string `yaml:"ttl" validate:"omitempty,duration"`
		File string `yaml:"file"`
	} `yaml:"bank"`
	Session struct {
		TTL      string `yaml:"ttl" validate:"omitempty,duration"`
		LeaseTTL string `yaml:"lease_ttl" validate:"omitempty,duration"`
	} `yaml:"session"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Roles struct {
		Admins    []string `yaml:"admins" validate:"dive,required"`
		Operators []string `yaml:"operators" validate:"dive,required"`
	} `yaml:"roles"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Storage.Driver = DriverMemory
	cfg.Redis.TTL = "5m"
	cfg.Mongo.Database = "assessment"
	cfg.Bank.TTL = "10m"
	cfg.Session.TTL = "2h"
	cfg.Session.LeaseTTL = "5s"
	cfg.AMQP.Exchange = "assessment.events"
	return cfg
}

// Load reads YAML config from path on top of Default, applies a .env file if
// present and environment overrides, then validates. An empty path skips the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Port, "PORT")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	setFromEnv(&cfg.Log.Format, "LOG_FORMAT")
	setFromEnv(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	setFromEnv(&cfg.Postgres.URL, "POSTGRES_URL")
	setFromEnv(&cfg.Mongo.URI, "MONGO_URI")
	setFromEnv(&cfg.Mongo.Database, "MONGO_DATABASE")
	setFromEnv(&cfg.AMQP.URL, "AMQP_URL")
	setFromEnv(&cfg.Bank.File, "BANK_FILE")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks field tags and the per-driver requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fe.Translate(trans))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("invalid config: postgres.url is required for the postgres driver")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("invalid config: mongo.uri and mongo.database are required for the mongo driver")
		}
	}
	return nil
}

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New()
	// Report yaml paths (storage.driver) rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
	_ = validate.RegisterTranslation("duration", trans,
		func(t ut.Translator) error {
			return t.Add("duration", "{0} must be a positive duration such as 90s or 5m", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("duration", fe.Field())
			return msg
		},
	)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
