package zenodo

import "regexp"

// Accepts http, https, ftp, or ftps URLs with a domain name, a literal
// IPv4 address, or localhost, an optional port, and an optional path.
var urlPattern = regexp.MustCompile(`(?i)^(?:http|ftp)s?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// ValidateURL reports whether s is a well formed URL. It gates download
// and upload target construction against malformed bucket links.
func ValidateURL(s string) bool {
	return urlPattern.MatchString(s)
}
