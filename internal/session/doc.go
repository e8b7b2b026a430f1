// Package session owns the client-side session lifecycle: acquiring,
// caching, rotating, and proactively refreshing the credentials of an
// authenticated session.
//
// The Manager is the composition root and the only type other subsystems
// talk to. Internally it wires a mutex-guarded State (the single source of
// truth for "am I logged in"), a single-flight refresh coordinator (so
// concurrent callers never race the server's refresh-token rotation), a
// durable credential store, and the stateless auth gateway.
//
// Access tokens are opaque to this package; it never inspects or verifies
// them locally. The server is authoritative for issuance and revocation.
package session
