// Package identity provides credential issuance and verification primitives
// (bcrypt password hashing, JWT issuance, bearer-token authentication) plus
// the registration and login flows that sit on top of them.
//
// Password hashing:
//   - HashPassword generates a fresh salt on every call, so hashing the same
//     plaintext twice yields different hashes. ComparePasswordAndHash is the
//     only supported way to check a candidate; a malformed stored hash reports
//     a verification failure rather than panicking.
//
// Tokens:
//   - TokenService signs HS256 JWTs carrying {sub, iat, exp, iss, aud} and
//     validates presented tokens with signing-method pinning. Tokens are
//     stateless: nothing is stored at issuance and there is no revocation
//     list. Rotating the signing key invalidates every outstanding token.
//
// Authentication:
//   - Auther.Authenticate converts a presented bearer token into a verified,
//     currently active account. The account is re-resolved from the
//     repository on every call so disabled or deleted users lose access on
//     their next request, not when their token expires.
//
// Flows:
//   - RegisterUserHandler creates accounts with a normalized unique email and
//     translates uniqueness races into ErrDuplicateEmail. Auther.Login
//     collapses unknown-email and wrong-password failures into a single
//     ErrInvalidCredentials, running a dummy hash comparison on the
//     unknown-email path so both failures cost the same.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     registration handler to describe login, registration, and token events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package identity
