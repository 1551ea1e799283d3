// Package config handles configuration loading for snagbox.
//
// Configuration is loaded from a YAML file with environment variable
// expansion (${VAR_NAME} syntax) and sensible defaults.
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  ttl: "168h"
//	  refresh_threshold: "24h"
//
// A complete file:
//
//	server:
//	  http_addr: ":8080"
//	  base_url: "https://snagbox.example.com"
//	  secure_cookies: true
//
//	database:
//	  path: "/var/lib/snagbox/snagbox.db"
//
//	auth:
//	  challenge_secret: "${SNAGBOX_CHALLENGE_SECRET}"
//	  invite_secret: "${SNAGBOX_INVITE_SECRET}"
//	  rp_name: "Snagbox"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Load() validates that the database path is set and that both signing
// secrets are at least 32 bytes.
package config
