// Package roots maintains the ordered set of named root templates that
// logical paths are resolved against.
//
// A Registry starts with the baseline roots (current, user, global, usr,
// local, fast, cache, bulk, lib, tmp and the default alias) and can be
// extended at runtime with Add, AddAlias, Prepend and Append, or from a
// YAML/JSONC file with LoadFile. Order returns the search order: the baseline
// order first, roots ending in "_lib" right before "lib", then every other
// registered root with the most recently added first. Roots pinned with
// Prepend or Append keep their position across later additions.
package roots
