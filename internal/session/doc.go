// Package session manages the client's authenticated identity.
//
// [Store] performs login, registration, logout and restore. A successful login resets the
// resource cache to a new epoch, persists the identity under [KeyCurrentUser] and [KeyLoggedIn],
// and hands the session to a [Hydrator] without waiting for it.
//
// Failed logins surface as [*AuthError], whose message is the backend's own text when it sent one.
package session
