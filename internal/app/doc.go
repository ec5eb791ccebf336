// Package app contains the command-line application logic. It loads the
// disposal policy, builds an observer from it and runs either a policy check
// or the built-in demonstration, decoupled from any specific entrypoint.
package app
