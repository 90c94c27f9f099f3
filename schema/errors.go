package schema

import "errors"

var (
	// ErrSessionNotFound indicates a requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyInput indicates navigation input was blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrNoContentView indicates the session has no bound content view.
	ErrNoContentView = errors.New("no content view")
	// ErrHostUnavailable indicates the privileged host is not configured.
	ErrHostUnavailable = errors.New("host not available")
	// ErrDownloadNotFound indicates an event referenced an unknown download.
	ErrDownloadNotFound = errors.New("download not found")
	// ErrTerminalDownload indicates a download already reached a terminal state.
	ErrTerminalDownload = errors.New("download already finished")
	// ErrInvalidDownloadState indicates an update carried an unexpected state.
	ErrInvalidDownloadState = errors.New("invalid download state")
	// ErrInvalidConfig indicates a configuration value was rejected.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidPreference indicates an unknown preference key or value.
	ErrInvalidPreference = errors.New("invalid preference")
)
