// Package gateway is the stateless HTTP client for the remote auth
// authority.
//
// Every call is a pure function of its explicit arguments: the gateway holds
// no session state, performs no retries, and caches nothing. Errors from the
// server are mapped to the structured taxonomy in errors.go and propagated
// unchanged to the caller; deciding what a failure means for the session is
// the session manager's job.
package gateway
