// Package process runs the external tools slimpack coordinates: the CSS
// compiler, the compose service manager, the test runner and the dev server.
//
// Optional tools that are not configured for the project are represented by
// Absent variants that honor the same contract, so callers never branch on
// presence.
package process
