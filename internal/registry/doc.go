// Package registry maps the names used in policy files to the compiled Go
// types and funcs they refer to.
//
// A policy file can only say "*shop.Cart" or "OpenConn"; the registry is
// what turns those strings into a reflect.Type or an *expr.Func. Types and
// funcs are registered once at startup, usually by a Module, and every
// loaded model is validated against the registry before it is applied, so a
// misspelt name fails loudly instead of silently disabling a rule.
package registry
