// Package accounts provides the account and credential lifecycle core for the
// screenhall movie-theater backend: JWT issuance and validation, single-use
// activation and password-reset tokens, persisted refresh tokens, and the HTTP
// controllers that expose them.
//
// Token model:
//   - Access tokens are short-lived, stateless JWTs signed with their own key.
//     Nothing is persisted for them; the bearer middleware validates signature,
//     expiry, and token type on every protected request.
//   - Refresh tokens are longer-lived JWTs that are ALSO persisted as records.
//     Deleting the record revokes an otherwise valid token, which is what makes
//     logout and operator revocation possible.
//   - Activation and password-reset tokens are opaque random strings with a
//     fixed TTL. They are single-use: any terminal outcome that touches an
//     existing record (success, expiry, string mismatch for resets) removes it.
//
// Lifecycle commands (register, activate, password reset init/finalize) run
// inside a single transaction via RepositoryManager.RunInTx; email dispatch is
// handed to a background goroutine after commit and never affects the request
// outcome.
package accounts
