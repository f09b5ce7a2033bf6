// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Helpers
//
// [WriteAtomic] writes through a uniquely named temporary sibling and renames it
// into place, so readers never observe a half-written artifact. [Exists],
// [ModTime] and [ReadFile] are thin conveniences over a [FileSystem].
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.SetLimit(1024) // Fail after 1KB written
//	// inject ffs into component under test
//
// # Design Notes
//
// This package does NOT include context.Context parameters. Filesystem
// operations on local disks are non-interruptible at the syscall level.
package fs
