// Package api contains the HTTP surface of the proxy server: the OAuth
// entry and redirect flow, the token issuance endpoints, and the wiring
// that mounts the regional API gateway behind proxy-token authentication.
package api
