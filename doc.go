// Package identity provides credential, session, and role management for a
// blog platform backend: password backed accounts, short lived signed access
// tokens paired with rotating opaque refresh tokens, single use action tokens
// for email verification, password resets, and admin invitations, plus the
// author application lifecycle and administrator grants.
//
// The package is storage backed through bun repositories and exposes its
// inbound operations both as command handlers and as a mountable go-router
// JSON controller.
package identity
