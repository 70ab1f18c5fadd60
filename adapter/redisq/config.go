package redisq

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config for the Redis transports with production-grade settings.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Backends
	Queue     string
	Container string
	KeyPrefix string

	// Capability URIs issued by the blob transport are HMAC-signed with
	// this secret. Every process that issues or resolves them must share it.
	SigningSecret string
}

// Defaults returns a Config with production-safe defaults. The signing
// secret has no usable default; single-process setups get a random one.
func Defaults() Config {
	return Config{
		Addr:      "127.0.0.1:6379",
		DB:        0,
		TLS:       false,
		Queue:     "xclaim",
		Container: "xclaim-payloads",
		KeyPrefix: "xclaim",
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("config: key_prefix required")
	}
	return nil
}

// toMap converts Config to the generic map expected by the factories.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"queue":           c.Queue,
		"container":       c.Container,
		"key_prefix":      c.KeyPrefix,
		"signing_secret":  c.SigningSecret,
	}
}

// ConfigFromMap safely converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["queue"].(string); ok && v != "" {
		c.Queue = v
	}
	if v, ok := m["container"].(string); ok && v != "" {
		c.Container = v
	}
	if v, ok := m["key_prefix"].(string); ok && v != "" {
		c.KeyPrefix = v
	}
	if v, ok := m["signing_secret"].(string); ok && v != "" {
		c.SigningSecret = v
	}

	return c
}

// newClient dials Redis and verifies connectivity.
func (c Config) newClient() (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    c.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		return nil, err
	}
	return client, nil
}

func (c Config) signingSecret() []byte {
	if c.SigningSecret != "" {
		return []byte(c.SigningSecret)
	}
	var b [32]byte
	_, _ = rand.Read(b[:])
	return []byte(hex.EncodeToString(b[:]))
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
