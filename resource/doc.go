// Package resource resolves logical paths to concrete files and produces
// missing resources on demand.
//
// A Namespace carries a package id, a root registry, a producer and a lock
// manager. Paths created from it are value objects: they share the
// namespace registry until they are given their own roots, at which point
// they copy it.
//
//	ns := resource.NewNamespace("locus")
//	p := ns.Path("share/data/genes.tsv")
//	found := p.Find()               // first existing root, or the default root
//	all := p.FindAll()              // every existing root, in priority order
//	in, _ := p.FindIn(roots.Local)  // that root, whether or not it exists
//
// Resolution never fails: when nothing exists the default root's expansion is
// returned. Production runs at most once per Path instance and is serialized
// across processes by a lock on the concrete target.
package resource
