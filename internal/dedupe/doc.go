// Package dedupe deduplicates retried capture submissions. Clients send an
// Idempotency-Key header with each create; the cache maps recent keys to the
// capture they produced so a network retry returns the original capture
// instead of creating a second one. Entries expire after a configurable TTL
// and the cache is size-capped with oldest-first eviction.
package dedupe
