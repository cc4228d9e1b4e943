// Package router decides whether a navigation may proceed.
//
// [Decide] is a pure function of the target, the current session and a local-only [Restorer].
// It never performs network calls.
package router
