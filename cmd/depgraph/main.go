// Command depgraph prints the internal/... import graph as Graphviz
// DOT and fails if a lower layer imports a higher one (mem importing
// sched, say), the same layering check the teacher's own dependency
// tool runs before a release.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// layer assigns each internal package a rank; an import from a higher
// rank to a lower one is fine (scall depending on vm), the reverse is
// a layering violation (mem depending on sched).
var layer = map[string]int{
	"defs": 0, "util": 0, "ustr": 0, "limits": 0, "stat": 0, "caller": 0,
	"hashtable": 0, "circbuf": 0, "bounds": 0, "res": 0, "oommsg": 0, "msi": 0,
	"archlow": 0, "boot": 0, "accnt": 0, "stats": 0,
	"mem": 1, "bpath": 1, "fdops": 1,
	"vm": 2, "fd": 2,
	"slab": 3,
	"cpu": 4,
	"sched": 5,
	"scall": 6,
	"bio": 2, "pci": 1, "ahci": 2, "storage": 3,
	"ext2": 4, "fat32": 4, "pipe": 2, "devfs": 2,
	"vfs": 5,
	"panics": 1,
}

func pkgName(importPath string) string {
	i := strings.LastIndex(importPath, "/")
	if i < 0 {
		return importPath
	}
	return importPath[i+1:]
}

func main() {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, "keelos/internal/...")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(1)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}

	type edge struct{ from, to string }
	var edges []edge
	violations := 0

	for _, p := range pkgs {
		from := pkgName(p.PkgPath)
		for imp := range p.Imports {
			if !strings.HasPrefix(imp, "keelos/internal/") {
				continue
			}
			to := pkgName(imp)
			edges = append(edges, edge{from, to})
			fl, fok := layer[from]
			tl, tok := layer[to]
			if fok && tok && fl < tl {
				fmt.Fprintf(os.Stderr, "layering violation: %s (layer %d) imports %s (layer %d)\n", from, fl, to, tl)
				violations++
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	fmt.Println("digraph deps {")
	for _, e := range edges {
		fmt.Printf("    %q -> %q;\n", e.from, e.to)
	}
	fmt.Println("}")

	if violations > 0 {
		os.Exit(1)
	}
}
