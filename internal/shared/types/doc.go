// Package types defines the commands, requests and results exchanged
// between the bridge and the worker.
//
// Every command is one channel call. Requests travel as the call's params
// and results as its result; binary payloads (file content, binary stat
// records and batch framing) travel in the frame's data.
//
// Commands:
//   - stat, exists, readdir, mkdir: PathRequest / MkdirRequest
//   - readFile, readAllFiles: PathRequest / ReadAllRequest
//   - writeFile: WriteRequest, answered by WriteResult
//   - rename, unlink: RenameRequest / PathRequest, no result
//   - watchPath, unwatchPath, unwatchAll: WatchRequest / PathRequest
//
// Events:
//   - fileChanged: ChangeEvent
package types
