//go:generate go run ./internal/tools/versiongen -o VERSION

// Package netbrowser is a terminal-driven multi-session web browser. The
// command lives in cmd/netbrowser; the session shell lives in core.
package netbrowser
