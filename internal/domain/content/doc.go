// Package content contains educational content items and the mappings that
// tie them to standard objectives.
package content
