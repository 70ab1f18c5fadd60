package memory

import "fmt"

// Config for the in-memory transports. Queue and Container name the two
// backends; a single process can host any number of each.
type Config struct {
	Queue     string
	Container string
}

// Defaults returns a Config with development-friendly defaults.
func Defaults() Config {
	return Config{
		Queue:     "xclaim",
		Container: "xclaim-payloads",
	}
}

// Validate checks Config before construction.
func (c Config) Validate() error {
	if c.Queue == "" && c.Container == "" {
		return fmt.Errorf("config: queue or container required")
	}
	return nil
}

// toMap converts Config to the generic map expected by the factories.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"queue":     c.Queue,
		"container": c.Container,
	}
}

// ConfigFromMap safely converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["queue"].(string); ok && v != "" {
		c.Queue = v
	}
	if v, ok := m["container"].(string); ok && v != "" {
		c.Container = v
	}
	return c
}
