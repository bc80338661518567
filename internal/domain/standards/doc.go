// Package standards contains the Standards bounded context.
// A tenant owns standards frameworks (official accreditation sets or custom
// ones), each holding a tree of objectives that content can be mapped to.
// The package also provides the pure grouping used to present frameworks by
// educational area and the validated objective tree used as categorization
// candidates.
package standards
