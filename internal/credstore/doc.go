// Package credstore persists the long-lived refresh credential across
// process restarts.
//
// A credential exists if and only if the user has an active session they have
// not explicitly logged out of on this device; absence at startup means
// "not logged in here". Stores are fail-closed: when the backing storage is
// unavailable, Load reports absent so callers treat the device as logged out
// instead of crashing.
//
// Three backends are provided: an in-memory store for tests and ephemeral
// processes, an encrypted file store for device installs, and a Redis store
// for headless agents that keep their credential off-host.
package credstore
