// Package e2e runs the project's end-to-end suite: it builds and starts the
// application with its dependency services and runs cypress against it.
package e2e
