package bootstrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	shared "github.com/fitglue/polar-ingest/pkg"
)

// Environment keys understood by LoadConfig.
const (
	KeyProjectID          = "PROJECT_ID"
	KeyZone               = "ZONE"
	KeyDataset            = "DATASET"
	KeyBucket             = "BUCKET"
	KeyClientID           = "CLIENT_ID"
	KeyClientSecret       = "CLIENT_SECRET"
	KeyAccessToken        = "ACCESS_TOKEN"
	KeyUserID             = "USER_ID"
	KeyTopic              = "TOPIC"
	KeySignatureSecret    = "SIGNATURE_SECRET_KEY"
	KeyEnablePublish      = "ENABLE_PUBLISH"
	KeyEnableExecutionLog = "ENABLE_EXECUTION_LOG"
	KeySentryDSN          = "SENTRY_DSN"
	KeyEnvironment        = "ENVIRONMENT"
	KeyLogLevel           = "LOG_LEVEL"
	KeyPort               = "PORT"
	KeyPolarBaseURL       = "POLAR_BASE_URL"
)

// Config holds standard configuration for all functions
type Config struct {
	ProjectID       string
	Zone            string
	Dataset         string
	Bucket          string
	ClientID        string
	ClientSecret    string
	AccessToken     string
	UserID          string
	Topic           string
	SignatureSecret string

	EnablePublish      bool
	EnableExecutionLog bool

	SentryDSN    string
	Environment  string
	LogLevel     string
	Port         string
	PolarBaseURL string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	return loadFrom(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyPort, shared.DefaultLocalPort)
	v.SetDefault(KeyPolarBaseURL, shared.PolarDefaultBaseURL)
	v.SetDefault(KeyEnablePublish, false)
	v.SetDefault(KeyEnableExecutionLog, false)
	v.SetDefault(KeyLogLevel, "info")
	return v
}

func loadFrom(v *viper.Viper) *Config {
	projectID := strings.TrimSpace(v.GetString(KeyProjectID))
	if projectID == "" {
		projectID = strings.TrimSpace(v.GetString("GOOGLE_CLOUD_PROJECT"))
	}

	return &Config{
		ProjectID:          projectID,
		Zone:               strings.TrimSpace(v.GetString(KeyZone)),
		Dataset:            strings.TrimSpace(v.GetString(KeyDataset)),
		Bucket:             strings.TrimSpace(v.GetString(KeyBucket)),
		ClientID:           strings.TrimSpace(v.GetString(KeyClientID)),
		ClientSecret:       v.GetString(KeyClientSecret),
		AccessToken:        v.GetString(KeyAccessToken),
		UserID:             strings.TrimSpace(v.GetString(KeyUserID)),
		Topic:              strings.TrimSpace(v.GetString(KeyTopic)),
		SignatureSecret:    v.GetString(KeySignatureSecret),
		EnablePublish:      v.GetBool(KeyEnablePublish),
		EnableExecutionLog: v.GetBool(KeyEnableExecutionLog),
		SentryDSN:          strings.TrimSpace(v.GetString(KeySentryDSN)),
		Environment:        strings.TrimSpace(v.GetString(KeyEnvironment)),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		Port:               strings.TrimSpace(v.GetString(KeyPort)),
		PolarBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString(KeyPolarBaseURL)), "/"),
	}
}

func (c *Config) value(key string) (string, bool) {
	switch key {
	case KeyProjectID:
		return c.ProjectID, true
	case KeyZone:
		return c.Zone, true
	case KeyDataset:
		return c.Dataset, true
	case KeyBucket:
		return c.Bucket, true
	case KeyClientID:
		return c.ClientID, true
	case KeyClientSecret:
		return c.ClientSecret, true
	case KeyAccessToken:
		return c.AccessToken, true
	case KeyUserID:
		return c.UserID, true
	case KeyTopic:
		return c.Topic, true
	case KeySignatureSecret:
		return c.SignatureSecret, true
	case KeySentryDSN:
		return c.SentryDSN, true
	case KeyPolarBaseURL:
		return c.PolarBaseURL, true
	}
	return "", false
}

// Require returns an error naming every key that is unset.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		val, known := c.value(key)
		if !known {
			return fmt.Errorf("config: unknown key %s", key)
		}
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
}
