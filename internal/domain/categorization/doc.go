// Package categorization contains the Categorization bounded context: batch
// jobs that ask a categorizer to map content items onto standard objectives.
//
// A Job owns its progress counters. Processed always equals Succeeded plus
// Failed, and every recorded item is counted exactly once, so callers may
// read a snapshot at any moment of a run.
package categorization
