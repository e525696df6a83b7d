// Package version provides version information for the faresearch application.
package version

// Version is the current version of the faresearch application.
const Version = "0.3.1"

// UserAgent returns the User-Agent string sent on outbound HTTP requests.
// Format: tripgrid-faresearch/v{version}
func UserAgent() string {
	return "tripgrid-faresearch/v" + Version
}
