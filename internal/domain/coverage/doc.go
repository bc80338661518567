// Package coverage defines the per-framework coverage counter: how many of a
// framework's objectives have at least one accepted mapping.
package coverage
