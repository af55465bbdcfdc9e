// Package main is a command line client of the filesystem bridge. Each
// invocation connects to a worker, runs one command and exits; watch runs
// until interrupted.
//
// Usage:
//
//	fsbridge [flags] stat PATH
//	fsbridge [flags] exists PATH
//	fsbridge [flags] ls PATH
//	fsbridge [flags] cat PATH...
//	fsbridge [flags] write [-token HASH] PATH < content
//	fsbridge [flags] mkdir [-mode 0755] PATH
//	fsbridge [flags] mv OLD NEW
//	fsbridge [flags] rm PATH
//	fsbridge [flags] watch [-ignore GLOB]... PATH
//
// Results are printed as JSON lines. The worker URL, concurrency bound and
// coalescing window come from FSBRIDGE_* variables or -config.
package main
