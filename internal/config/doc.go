// Package config loads morsel's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/morsel/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - Config file: ~/.config/morsel/config.toml
//   - API base: http://127.0.0.1:8080/api
//   - State directory: ~/.local/share/morsel
//   - Client log: <state_dir>/morsel.log
//   - Session slot: <state_dir>/session.toml (file backend)
//   - Request timeout: 10s
//
// # TOML Format
//
//	api_base         = "http://127.0.0.1:8080/api"
//	state_dir        = "~/.local/share/morsel"
//	log_level        = "info"
//	request_timeout  = "10s"
//	coalesce_reissue = false
//	metrics_addr     = ""
//
//	[session]
//	backend    = "file"   # file | redis | memory
//	redis_addr = "127.0.0.1:6379"
//	redis_key  = "morsel"
//
// Every field is optional. Tilde expansion is performed for state_dir.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML syntax errors and values that cannot be interpreted
// (unknown log level, malformed duration, unknown session backend).
// A missing file is NOT an error.
package config
