// Package config loads tickbox's TOML configuration.
//
// # Discovery
//
// Load resolves the file in this order:
//
//  1. An explicitly provided path (the --config flag)
//  2. ~/.config/tickbox/config.toml
//  3. Built-in defaults when the file does not exist
//
// Keys that are absent or blank keep their default. Values that would make
// the client misbehave (a zero debounce window, a negative concurrency cap,
// a failure rate outside 0..1) are rejected with an error rather than
// silently clamped.
//
// # TOML Format
//
//	api_bind = "127.0.0.1:7480"
//	debounce_ms = 500
//	max_in_flight = 0          # 0 = unlimited
//	requests_per_second = 0    # 0 = unlimited
//	request_timeout_ms = 5000
//	refresh_seconds = 10       # 0 disables background refresh
//	log_file = "~/.local/state/tickbox/tickbox.log"
//	log_level = "info"
//
//	[server]
//	bind = "127.0.0.1:7480"
//	db_path = "~/.local/share/tickbox/todos.db"
//	latency_ms = 0
//	fail_rate = 0.0
//	seed = ["Buy milk", "Water the plants"]
//
// Paths starting with ~ are expanded to the home directory and made
// absolute. db_path also accepts ":memory:".
package config
