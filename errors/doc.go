// Package errors provides the error classification used across SimuCore.
//
// Errors fall into three classes:
//
//   - Transient: temporary conditions such as a port still held by a previous
//     process or a peer that went away. Retrying may succeed.
//   - Invalid: bad input such as a malformed frame, an unknown command or a
//     write to a read-only signal. Retrying the same input never succeeds.
//   - Fatal: conditions that prevent the process from starting or continuing.
//
// Wrapping follows the "component.method: action failed: %w" pattern so that
// log lines read the same everywhere:
//
//	if err := ln.Close(); err != nil {
//		return errors.WrapTransient(err, "Server", "Stop", "listener close")
//	}
//
// Sentinels defined here work with the standard errors.Is and errors.As
// through any number of wrapping layers.
package errors
