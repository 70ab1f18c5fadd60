// Package redisq provides Redis-backed queue and blob transports for xclaim.
//
// Transport name: "redis" (both registries)
//
// Minimal config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - queue: queue name (default "xclaim")
// - container: blob container name (default "xclaim-payloads")
// - key_prefix: Redis key namespace (default "xclaim")
// - signing_secret: HMAC secret shared by every issuer/resolver of
//   redis+blob:// capability URIs (random per-process when unset)
//
// Example builder usage:
//
//	client, _ := xclaim.New(func(cb *xclaim.ClientBuilder) {
//	    cb.WithQueue(redisq.TransportName, map[string]any{
//	        "addr":           "localhost:6379",
//	        "queue":          "orders",
//	        "container":      "order-payloads",
//	        "signing_secret": "shared-secret",
//	    }).WithBlob(redisq.TransportName, map[string]any{
//	        "addr":      "localhost:6379",
//	        "container": "order-payloads",
//	    })
//	})
package redisq
