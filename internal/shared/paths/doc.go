// Package paths maps the slash-separated paths the bridge sends to OS
// paths on the worker, optionally confined to a root directory.
//
// # Usage
//
//	sandbox, _ := paths.NewSandbox("/srv/data")
//	osPath, err := sandbox.Resolve("/docs/a.txt") // /srv/data/docs/a.txt
//	_, err = sandbox.Resolve("/../etc/passwd")    // still under /srv/data
//	_, err = sandbox.Resolve("../../etc/passwd")  // ErrOutsideRoot
package paths
