// Package codec converts stat records and file payloads to and from the two
// wire representations used between the bridge and the worker.
//
// Binary mode (encoding == Binary) uses a dense little-endian layout:
//
//	bytes 0-7    modification time, float64 epoch milliseconds
//	bytes 8-15   size, float64
//	bytes 16-17  uint16 flags = (R << 1) | fileBit
//	bytes 18...  R UTF-16LE code units of the resolved path
//
// A single-file read is the stat block followed by the raw content; a
// multi-file read concatenates entries each prefixed by a status byte (0 ok,
// 1 failed). The content length of an entry is the size field of its stat
// block, so a decoder walks the buffer sequentially.
//
// Structured mode carries the same record as a JSON object
// {isFile, mtime, size, resolvedPath} and text content as a string that has
// been transcoded from the named encoding.
package codec
