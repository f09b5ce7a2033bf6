// Package persist memoizes the results of expensive computations on disk.
//
// A call to (*Store).Persist maps a key to a stable path, takes a lock on that
// path that is honored across processes, and either loads the cached artifact
// or runs the producer and stores what it returns. Values are serialized
// according to their ValueType; live byte streams are teed so the caller and a
// background writer observe the same bytes.
//
//	store := persist.New(dir)
//	entry, err := store.Persist(ctx, "genes/BRCA1", persist.JSON,
//	    func(ctx context.Context, path string) (persist.Result, error) {
//	        return persist.Value(fetch()), nil
//	    })
//
// The Memory type skips the disk and the lock and keeps values in a
// process-wide MemoryIndex.
package persist
