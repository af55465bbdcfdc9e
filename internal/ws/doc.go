// Package ws serves bridge connections on the worker.
//
// Each websocket connection gets its own watch registrations, dropped when
// it closes. Call frames are executed concurrently and answered with result
// frames carrying the same id; change notifications are pushed as
// "fileChanged" event frames on the same connection.
package ws
