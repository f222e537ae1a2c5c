// Package config loads configuration from environment variables and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Env holds the configuration values for the application.
type Env struct {
	Region         string
	Backend        string
	Table          string
	DatabaseURL    string
	Bucket         string // empty disables image upload presigning
	ImageBaseURL   string
	Endpoint       string // AWS_ENDPOINT_URL, e.g. LocalStack
	PresignTTL     time.Duration
	RequestTimeout time.Duration
	LogLevel       string
}

// fileConfig is the YAML shape accepted by LoadFile. Every field is optional.
type fileConfig struct {
	Region                string `yaml:"region"`
	Backend               string `yaml:"backend"`
	Table                 string `yaml:"table"`
	DatabaseURL           string `yaml:"database_url"`
	Bucket                string `yaml:"bucket"`
	ImageBaseURL          string `yaml:"image_base_url"`
	Endpoint              string `yaml:"endpoint"`
	PresignTTLSeconds     int    `yaml:"presign_ttl_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LogLevel              string `yaml:"log_level"`
}

func defaults() Env {
	return Env{
		Region:         "us-east-1",
		Backend:        BackendDynamoDB,
		PresignTTL:     300 * time.Second,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
	}
}

// Load reads the environment variables and validates the result.
func Load() (Env, error) {
	e := defaults()
	if err := applyEnv(&e, os.LookupEnv); err != nil {
		return Env{}, err
	}
	return e, e.Validate()
}

// MustLoad is Load for process start-up; it panics on invalid configuration.
func MustLoad() Env {
	e, err := Load()
	if err != nil {
		panic(err)
	}
	return e
}

// LoadFile reads a YAML file and overlays the environment on top of it.
// An empty path behaves like Load.
func LoadFile(path string) (Env, error) {
	if path == "" {
		return Load()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Env{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return Env{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	e := defaults()
	fc.apply(&e)
	if err := applyEnv(&e, os.LookupEnv); err != nil {
		return Env{}, err
	}
	return e, e.Validate()
}

// Validate checks that the selected backend has what it needs.
func (e Env) Validate() error {
	switch e.Backend {
	case BackendDynamoDB:
		if e.Table == "" {
			return fmt.Errorf("missing env DDB_TABLE for backend %s", e.Backend)
		}
	case BackendSQLite, BackendPostgres:
		if e.DatabaseURL == "" {
			return fmt.Errorf("missing env DATABASE_URL for backend %s", e.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", e.Backend)
	}
	if e.PresignTTL <= 0 {
		return fmt.Errorf("PRESIGN_TTL_SECONDS must be positive")
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func (fc fileConfig) apply(e *Env) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&e.Region, fc.Region)
	set(&e.Backend, strings.ToLower(fc.Backend))
	set(&e.Table, fc.Table)
	set(&e.DatabaseURL, fc.DatabaseURL)
	set(&e.Bucket, fc.Bucket)
	set(&e.ImageBaseURL, fc.ImageBaseURL)
	set(&e.Endpoint, fc.Endpoint)
	set(&e.LogLevel, fc.LogLevel)
	if fc.PresignTTLSeconds != 0 {
		e.PresignTTL = time.Duration(fc.PresignTTLSeconds) * time.Second
	}
	if fc.RequestTimeoutSeconds != 0 {
		e.RequestTimeout = time.Duration(fc.RequestTimeoutSeconds) * time.Second
	}
}

func applyEnv(e *Env, lookup func(string) (string, bool)) error {
	get := func(k string, dst *string) {
		if v, ok := lookup(k); ok && v != "" {
			*dst = v
		}
	}
	get("AWS_REGION", &e.Region)
	get("STORE_BACKEND", &e.Backend)
	get("DDB_TABLE", &e.Table)
	get("DATABASE_URL", &e.DatabaseURL)
	get("S3_BUCKET", &e.Bucket)
	get("IMAGE_BASE_URL", &e.ImageBaseURL)
	get("AWS_ENDPOINT_URL", &e.Endpoint)
	get("LOG_LEVEL", &e.LogLevel)
	e.Backend = strings.ToLower(e.Backend)

	seconds := func(k string, dst *time.Duration) error {
		v, ok := lookup(k)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", k, err)
		}
		*dst = time.Duration(n) * time.Second
		return nil
	}
	if err := seconds("PRESIGN_TTL_SECONDS", &e.PresignTTL); err != nil {
		return err
	}
	return seconds("REQUEST_TIMEOUT_SECONDS", &e.RequestTimeout)
}
