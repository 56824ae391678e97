// Package logging provides opt-in file-based logging with rotation for raptor.
// When the --debug flag is set, comprehensive logs are written to ~/.raptor/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
package logging
