// Package gateway forwards allow-listed Dialogflow REST calls to the
// regionally scoped API endpoint, authenticating with machine credentials
// rather than the end user's token.
package gateway

import "regexp"

// DefaultLocation is assumed when a path carries no locations segment.
const DefaultLocation = "global"

// locationPattern extracts the location segment from a request path.
var locationPattern = regexp.MustCompile(`/projects/[^/]+/locations/([^/]+)`)

// ResolveLocation returns the target location from a URL path, defaulting
// to global when the path has no locations segment.
func ResolveLocation(path string) string {
	m := locationPattern.FindStringSubmatch(path)
	if m == nil || m[1] == "" {
		return DefaultLocation
	}
	return m[1]
}

// ResolveHost returns the regional API host for a location. The global
// location maps to the unprefixed base host; any other location is
// prefixed onto it.
func ResolveHost(location, baseHost string) string {
	if location == "" || location == DefaultLocation {
		return baseHost
	}
	return location + "-" + baseHost
}
