// Package normalize rewrites JSON-like values scraped from review pages into
// the flat, snake_case shape the column table expects.
//
// Every function here is pure: inputs are never mutated and results share no
// mutable state, so they are safe to call from multiple goroutines.
package normalize
