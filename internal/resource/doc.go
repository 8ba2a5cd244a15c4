// Package resource wraps long-lived esbuild sessions for the client and
// server targets behind a small Resource contract.
//
// A Resource is created ready, may be rebuilt any number of times, may be
// switched into watch mode once, and is terminally disposed. Targets whose
// optional source directory is missing are represented by Noop, which honors
// the same contract without touching the file system.
package resource
