package schema

import "strings"

// Engine error codes referenced by the coordinator and the error view.
const (
	// NetErrorAborted is reported when a new navigation preempts a load.
	NetErrorAborted = -3
	// NetErrorBlockedByClient is reported for requests cancelled by blocking rules.
	NetErrorBlockedByClient = -20
	// NetErrorNetworkChanged is reported when the network changed mid-load.
	NetErrorNetworkChanged = -21
	// NetErrorBlockedByResponse is reported for responses refused by policy.
	NetErrorBlockedByResponse = -27
	// NetErrorConnectionRefused is reported when the server refuses the connection.
	NetErrorConnectionRefused = -102
	// NetErrorNameNotResolved is reported when DNS lookup fails.
	NetErrorNameNotResolved = -105
	// NetErrorInternetDisconnected is reported when the host is offline.
	NetErrorInternetDisconnected = -106
	// NetErrorSSLProtocol is reported for TLS handshake failures.
	NetErrorSSLProtocol = -107
	// NetErrorTimedOut is reported when the connection timed out.
	NetErrorTimedOut = -118
	// NetErrorNameResolutionFailed is reported for resolver failures.
	NetErrorNameResolutionFailed = -137
	// NetErrorCertCommonNameInvalid is the first certificate error code.
	NetErrorCertCommonNameInvalid = -200
	// NetErrorCertEnd bounds the certificate error range.
	NetErrorCertEnd = -299
	// NetErrorDisallowedURLScheme is reported for unsupported schemes.
	NetErrorDisallowedURLScheme = -301
	// NetErrorFailed is the generic failure code.
	NetErrorFailed = -2
)

// ErrorPageTitle is the session title while an error view is shown.
const ErrorPageTitle = "Error loading page"

var netErrorNames = map[string]int{
	"ERR_FAILED":                         NetErrorFailed,
	"ERR_ABORTED":                        NetErrorAborted,
	"ERR_BLOCKED_BY_CLIENT":              NetErrorBlockedByClient,
	"ERR_NETWORK_CHANGED":                NetErrorNetworkChanged,
	"ERR_BLOCKED_BY_RESPONSE":            NetErrorBlockedByResponse,
	"ERR_CONNECTION_REFUSED":             NetErrorConnectionRefused,
	"ERR_NAME_NOT_RESOLVED":              NetErrorNameNotResolved,
	"ERR_INTERNET_DISCONNECTED":          NetErrorInternetDisconnected,
	"ERR_SSL_PROTOCOL_ERROR":             NetErrorSSLProtocol,
	"ERR_TIMED_OUT":                      NetErrorTimedOut,
	"ERR_NAME_RESOLUTION_FAILED":         NetErrorNameResolutionFailed,
	"ERR_CERT_COMMON_NAME_INVALID":       NetErrorCertCommonNameInvalid,
	"ERR_CERT_DATE_INVALID":              -201,
	"ERR_CERT_AUTHORITY_INVALID":         -202,
	"ERR_CERT_REVOKED":                   -206,
	"ERR_CERT_INVALID":                   -207,
	"ERR_DISALLOWED_URL_SCHEME":          NetErrorDisallowedURLScheme,
	"ERR_CONNECTION_RESET":               -101,
	"ERR_CONNECTION_CLOSED":              -100,
	"ERR_CONNECTION_TIMED_OUT":           -118,
	"ERR_ADDRESS_UNREACHABLE":            -109,
	"ERR_TOO_MANY_REDIRECTS":             -310,
	"ERR_EMPTY_RESPONSE":                 -324,
	"ERR_INVALID_URL":                    -300,
	"ERR_UNKNOWN_URL_SCHEME":             -302,
	"ERR_HTTP2_PROTOCOL_ERROR":           -337,
	"ERR_CONTENT_DECODING_FAILED":        -330,
	"ERR_SSL_VERSION_OR_CIPHER_MISMATCH": -113,
}

// NetErrorCode maps an engine error string such as "net::ERR_ABORTED" to
// its numeric code. Unknown names map to NetErrorFailed with ok=false.
func NetErrorCode(text string) (int, bool) {
	name := strings.TrimSpace(text)
	name = strings.TrimPrefix(name, "net::")
	if idx := strings.IndexAny(name, " ("); idx > 0 {
		name = name[:idx]
	}
	code, ok := netErrorNames[strings.ToUpper(name)]
	if !ok {
		return NetErrorFailed, false
	}
	return code, true
}

// PageErrorKind groups error codes for display.
type PageErrorKind string

const (
	// PageErrorOffline indicates no network connectivity.
	PageErrorOffline PageErrorKind = "offline"
	// PageErrorNameNotResolved indicates a DNS failure.
	PageErrorNameNotResolved PageErrorKind = "dns"
	// PageErrorSecurity indicates a TLS or certificate failure.
	PageErrorSecurity PageErrorKind = "security"
	// PageErrorBlocked indicates the request was blocked.
	PageErrorBlocked PageErrorKind = "blocked"
	// PageErrorHTTP indicates an HTTP status >= 400 on the main document.
	PageErrorHTTP PageErrorKind = "http"
	// PageErrorGeneric covers everything else.
	PageErrorGeneric PageErrorKind = "generic"
)

// PageError is the error display state of a session.
type PageError struct {
	Code        int           `json:"code"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	Kind        PageErrorKind `json:"kind"`
}

// NewPageError builds a classified PageError.
func NewPageError(code int, description, url string) PageError {
	return PageError{Code: code, Description: description, URL: url, Kind: ClassifyPageError(code)}
}

// ClassifyPageError maps an engine or HTTP code to a display kind.
func ClassifyPageError(code int) PageErrorKind {
	switch {
	case code >= 400:
		return PageErrorHTTP
	case code == NetErrorInternetDisconnected, code == NetErrorNetworkChanged:
		return PageErrorOffline
	case code == NetErrorNameNotResolved, code == NetErrorNameResolutionFailed:
		return PageErrorNameNotResolved
	case code == NetErrorSSLProtocol, code == -113, code <= NetErrorCertCommonNameInvalid && code >= NetErrorCertEnd:
		return PageErrorSecurity
	case code == NetErrorBlockedByClient, code == NetErrorBlockedByResponse, code == NetErrorDisallowedURLScheme:
		return PageErrorBlocked
	default:
		return PageErrorGeneric
	}
}

// Title returns the heading shown by the error view.
func (e PageError) Title() string {
	switch e.Kind {
	case PageErrorOffline:
		return "No internet"
	case PageErrorNameNotResolved:
		return "Site can't be reached"
	case PageErrorSecurity:
		return "Connection is not private"
	case PageErrorBlocked:
		return "Blocked"
	case PageErrorHTTP:
		return "Page returned an error"
	default:
		return "Something went wrong"
	}
}

// Message returns the explanatory text shown by the error view.
func (e PageError) Message() string {
	switch e.Kind {
	case PageErrorOffline:
		return "Check your network connection and try again."
	case PageErrorNameNotResolved:
		return "The server's address could not be found."
	case PageErrorSecurity:
		return "The site's security certificate or TLS setup is not trusted."
	case PageErrorBlocked:
		return "The request was blocked before it could load."
	case PageErrorHTTP:
		if e.Description != "" {
			return "The server responded with " + e.Description + "."
		}
		return "The server responded with an error."
	default:
		if e.Description != "" {
			return e.Description
		}
		return "The page failed to load."
	}
}
