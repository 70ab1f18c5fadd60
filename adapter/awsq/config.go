package awsq

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Config for the SQS queue and S3 blob transports. Credentials come from
// the default AWS chain (environment, shared config, instance role); the
// Endpoint override exists for localstack-style testing.
type Config struct {
	Region   string
	Endpoint string

	Queue  string
	Bucket string

	// S3PathStyle forces path-style addressing (required by most local
	// S3 emulators).
	S3PathStyle bool
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Region: "us-east-1",
		Queue:  "xclaim",
		Bucket: "xclaim-payloads",
	}
}

// Validate checks Config before construction.
func (c Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("config: region required")
	}
	return nil
}

// toMap converts Config to the generic map expected by the factories.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"region":        c.Region,
		"endpoint":      c.Endpoint,
		"queue":         c.Queue,
		"bucket":        c.Bucket,
		"s3_path_style": c.S3PathStyle,
	}
}

// ConfigFromMap safely converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["region"].(string); ok && v != "" {
		c.Region = v
	}
	if v, ok := m["endpoint"].(string); ok {
		c.Endpoint = v
	}
	if v, ok := m["queue"].(string); ok && v != "" {
		c.Queue = v
	}
	if v, ok := m["bucket"].(string); ok && v != "" {
		c.Bucket = v
	}
	// Accept the generic "container" key as an alias for bucket.
	if v, ok := m["container"].(string); ok && v != "" {
		c.Bucket = v
	}
	if v, ok := m["s3_path_style"].(bool); ok {
		c.S3PathStyle = v
	}
	return c
}

// newSession builds an AWS session from the config.
func (c Config) newSession() (*session.Session, error) {
	awsCfg := &aws.Config{
		Region: aws.String(c.Region),
		// S3 canonicalizes user metadata keys on the wire ("expiresAt"
		// comes back as "Expiresat" otherwise); fold them to lowercase
		// so readers get a predictable casing.
		LowerCaseHeaderMaps: aws.Bool(true),
	}
	if c.Endpoint != "" {
		awsCfg.Endpoint = aws.String(c.Endpoint)
	}
	if c.S3PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	return session.NewSession(awsCfg)
}
