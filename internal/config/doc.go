// Package config defines the format-agnostic model of a disposal policy file,
// along with the Loader interface implemented by each file format.
//
// A Model only carries names. Resolving those names against real Go types
// and functions, and applying the result to observer options, happens in the
// root package.
package config
