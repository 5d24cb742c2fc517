// Package config provides configuration management for the gomoku relay.
//
// The config package handles:
//   - Default settings (0.0.0.0:12345, legacy decoding on, NATS off)
//   - Loading overrides from a YAML file
//   - Validation that reports every problem in one error
//   - Building the logger, transport limits and event bus from settings
//
// Configuration Format:
//
//	server:
//	  host: 0.0.0.0
//	  port: 12345
//	  shutdown_timeout: 10s
//	websocket:
//	  write_wait: 10s
//	  pong_wait: 60s
//	  ping_period: 54s
//	  max_message_size: 4096
//	  send_buffer: 256
//	  overflow_policy: disconnect   # or drop
//	  rate_limit: 20                # frames per second, 0 disables
//	  rate_burst: 40
//	  allowed_origins: []
//	protocol:
//	  legacy_decoding: true
//	log:
//	  level: info
//	  format: text                  # or json
//	nats:
//	  enabled: false
//	  url: ""                       # empty runs an embedded server
//	  host: 127.0.0.1
//	  port: 4222
//	  prefix: gomoku
//	  start_timeout: 10s
//	ngrok:
//	  enabled: false
//	  authtoken: ""
//	  domain: ""
//	mcp:
//	  enabled: true
//
// Keys missing from the file keep their defaults. Unknown keys are an error.
// Command line flags and environment variables are applied by main on top of
// the loaded file.
package config
