// Package locus resolves logical resource paths to files and caches the
// results of expensive computations.
//
// A logical path such as "share/organisms/Hsa/identifiers" is expanded
// through an ordered set of named roots (current, user, local, global, lib,
// and more). Each root is a template with placeholders like {PKGDIR},
// {TOPLEVEL} and {SUBPATH}. The first expansion that exists on disk wins.
// Missing resources can be produced on demand by a registered producer.
//
// # Quick Start
//
//	l, _ := locus.New(locus.WithPackage("rbbt"))
//	defer l.Close()
//
//	p, _ := l.Find(ctx, "share/databases/genes.tsv", "")
//	fmt.Println(p) // e.g. /home/me/.rbbt/share/databases/genes.tsv
//
// # Caching
//
// Persist memoizes a computation under a key. The artifact is stored under
// the cache directory and guarded by a lock shared with other processes:
//
//	entry, err := l.Persist(ctx, "genes/BRCA1", persist.JSON,
//	    func(ctx context.Context, path string) (persist.Result, error) {
//	        return persist.Value(lookup("BRCA1")), nil
//	    })
//
// Stream results are teed so the caller reads while a background writer
// stores the same bytes.
//
// # Configuration
//
// FromConfig builds an instance from a config.Config loaded from YAML or
// JSON and the LOCUS_* environment variables.
package locus
