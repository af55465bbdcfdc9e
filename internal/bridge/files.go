package bridge

import (
	"context"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

// NamedStatResult is one directory entry. Exactly one of Stat and Err is
// meaningful: Err is nil when the entry could be stat'ed.
type NamedStatResult struct {
	Name string
	Stat codec.StatRecord
	Err  error
}

// File is the outcome of a read. In text mode Content holds UTF-8.
type File struct {
	Stat    codec.StatRecord
	Content []byte
}

// FileResult is one entry of a bulk read.
type FileResult struct {
	Path string
	File
	Err error
}

// WriteOptions are the recognized options of WriteFile.
type WriteOptions struct {
	// Encoding of the written content; codec.Binary writes data verbatim.
	Encoding codec.Encoding
	// ConcurrencyToken is a previously observed StatRecord.Hash. When set,
	// the write fails with ContentsModified if the file changed since.
	ConcurrencyToken string
}

// WriteResult reports a completed write.
type WriteResult struct {
	Stat    codec.StatRecord
	Created bool
}

func decodeStat(resp *channel.Response, enc codec.Encoding) (codec.StatRecord, error) {
	if enc.IsBinary() {
		rec, _, err := codec.DecodeBinary(resp.Data)
		return rec, err
	}
	var s codec.StatJSON
	if err := resp.Decode(&s); err != nil {
		return codec.StatRecord{}, err
	}
	return codec.FromStructured(s), nil
}

// Stat returns the metadata of path.
func (b *Bridge) Stat(ctx context.Context, path string) (codec.StatRecord, error) {
	resp, err := b.call(ctx, types.MethodStat, path, types.PathRequest{Path: path, Encoding: b.encoding}, nil)
	if err != nil {
		return codec.StatRecord{}, err
	}
	rec, err := decodeStat(resp, b.encoding)
	if err != nil {
		return codec.StatRecord{}, malformed(types.MethodStat, path, err)
	}
	return rec, nil
}

// Exists reports whether path exists.
func (b *Bridge) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := b.call(ctx, types.MethodExists, path, types.PathRequest{Path: path}, nil)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := resp.Decode(&ok); err != nil {
		return false, malformed(types.MethodExists, path, err)
	}
	return ok, nil
}

// Readdir lists path. Entries that could not be stat'ed carry their own
// error and do not fail the listing.
func (b *Bridge) Readdir(ctx context.Context, path string) ([]NamedStatResult, error) {
	resp, err := b.call(ctx, types.MethodReaddir, path, types.PathRequest{Path: path, Encoding: b.encoding}, nil)
	if err != nil {
		return nil, err
	}

	var entries []types.DirEntry
	if err := resp.Decode(&entries); err != nil {
		return nil, malformed(types.MethodReaddir, path, err)
	}

	var stats []codec.BatchEntry
	if b.encoding.IsBinary() {
		if stats, err = codec.DecodeStatList(resp.Data); err != nil {
			return nil, malformed(types.MethodReaddir, path, err)
		}
		if len(stats) != len(entries) {
			return nil, malformed(types.MethodReaddir, path,
				fmt.Errorf("%d names but %d stat records", len(entries), len(stats)))
		}
	}

	out := make([]NamedStatResult, len(entries))
	for i, e := range entries {
		out[i].Name = e.Name
		entryPath := joinPath(path, e.Name)
		switch {
		case e.Error != nil:
			out[i].Err = b.translator.Translate(types.MethodStat, entryPath, e.Error)
		case stats != nil && stats[i].OK:
			out[i].Stat = stats[i].Stat
		case stats == nil && e.Stat != nil:
			out[i].Stat = codec.FromStructured(*e.Stat)
		default:
			out[i].Err = malformed(types.MethodStat, entryPath, fmt.Errorf("no stat for %q", e.Name))
		}
	}
	return out, nil
}

// ReadFile reads path. Text encodings refuse binary content with
// BinaryContentError.
func (b *Bridge) ReadFile(ctx context.Context, path string, enc codec.Encoding) (File, error) {
	resp, err := b.call(ctx, types.MethodReadFile, path, types.PathRequest{Path: path, Encoding: enc}, nil)
	if err != nil {
		return File{}, err
	}

	if enc.IsBinary() {
		rec, content, err := codec.DecodeFile(resp.Data)
		if err != nil {
			return File{}, malformed(types.MethodReadFile, path, err)
		}
		return File{Stat: rec, Content: content}, nil
	}

	var f codec.FileJSON
	if err := resp.Decode(&f); err != nil {
		return File{}, malformed(types.MethodReadFile, path, err)
	}
	return File{Stat: codec.FromStructured(f.Stat), Content: []byte(f.Content)}, nil
}

// ReadAllFiles reads every path in one worker call. The results follow the
// order of paths and each entry fails on its own.
func (b *Bridge) ReadAllFiles(ctx context.Context, paths []string, enc codec.Encoding) ([]FileResult, error) {
	resp, err := b.call(ctx, types.MethodReadAllFiles, "", types.ReadAllRequest{Paths: paths, Encoding: enc}, nil)
	if err != nil {
		return nil, err
	}

	out := make([]FileResult, len(paths))
	for i, path := range paths {
		out[i].Path = path
	}

	if enc.IsBinary() {
		var errs []*fserrors.RawError
		if err := resp.Decode(&errs); err != nil {
			return nil, malformed(types.MethodReadAllFiles, "", err)
		}
		entries, err := codec.DecodeBatch(resp.Data)
		if err != nil {
			return nil, malformed(types.MethodReadAllFiles, "", err)
		}
		if len(entries) != len(paths) {
			return nil, malformed(types.MethodReadAllFiles, "",
				fmt.Errorf("%d paths but %d entries", len(paths), len(entries)))
		}
		for i, e := range entries {
			if e.OK {
				out[i].File = File{Stat: e.Stat, Content: e.Content}
				continue
			}
			var raw *fserrors.RawError
			if i < len(errs) {
				raw = errs[i]
			}
			out[i].Err = b.entryError(paths[i], raw)
		}
		return out, nil
	}

	var files []types.BatchFile
	if err := resp.Decode(&files); err != nil {
		return nil, malformed(types.MethodReadAllFiles, "", err)
	}
	if len(files) != len(paths) {
		return nil, malformed(types.MethodReadAllFiles, "",
			fmt.Errorf("%d paths but %d entries", len(paths), len(files)))
	}
	for i, f := range files {
		switch {
		case f.Error != nil:
			out[i].Err = b.entryError(paths[i], f.Error)
		case f.Stat != nil:
			out[i].File = File{Stat: codec.FromStructured(*f.Stat), Content: []byte(f.Content)}
		default:
			out[i].Err = b.entryError(paths[i], nil)
		}
	}
	return out, nil
}

func (b *Bridge) entryError(path string, raw *fserrors.RawError) error {
	if raw == nil {
		return malformed(types.MethodReadFile, path, fmt.Errorf("entry failed without an error"))
	}
	return b.translator.Translate(types.MethodReadFile, path, raw)
}

// WriteFile replaces the content of path, creating the file if needed.
//
// The file is stat'ed first. A ConcurrencyToken that no longer matches
// fails with ContentsModified and nothing is written. NotFound means the
// write creates the file; any other stat failure is returned as is. The
// check is optimistic: a change between the stat and the write goes
// unnoticed.
func (b *Bridge) WriteFile(ctx context.Context, path string, data []byte, opts WriteOptions) (WriteResult, error) {
	created := false
	current, err := b.Stat(ctx, path)
	switch {
	case fserrors.Is(err, fserrors.KindNotFound):
		created = true
	case err != nil:
		return WriteResult{}, err
	case opts.ConcurrencyToken != "" && opts.ConcurrencyToken != current.Hash():
		b.logger.Debug("Refusing stale write",
			zap.String("path", path),
			zap.String("expected", opts.ConcurrencyToken),
			zap.String("actual", current.Hash()))
		return WriteResult{}, fserrors.ContentsModified(path, opts.ConcurrencyToken, current.Hash())
	}

	req := types.WriteRequest{Path: path, Encoding: opts.Encoding}
	var payload []byte
	if opts.Encoding.IsBinary() {
		payload = data
	} else {
		req.Content = string(data)
	}

	resp, err := b.call(ctx, types.MethodWriteFile, path, req, payload)
	if err != nil {
		return WriteResult{}, err
	}

	var res types.WriteResult
	if err := resp.Decode(&res); err != nil {
		return WriteResult{}, malformed(types.MethodWriteFile, path, err)
	}
	out := WriteResult{Created: created}
	if opts.Encoding.IsBinary() {
		if out.Stat, _, err = codec.DecodeBinary(resp.Data); err != nil {
			return WriteResult{}, malformed(types.MethodWriteFile, path, err)
		}
	} else if res.Stat != nil {
		out.Stat = codec.FromStructured(*res.Stat)
	}
	return out, nil
}

// Mkdir creates the directory path. A zero mode means 0777 before umask.
func (b *Bridge) Mkdir(ctx context.Context, path string, mode fs.FileMode) (codec.StatRecord, error) {
	req := types.MkdirRequest{Path: path, Mode: uint32(mode.Perm()), Encoding: b.encoding}
	resp, err := b.call(ctx, types.MethodMkdir, path, req, nil)
	if err != nil {
		return codec.StatRecord{}, err
	}
	rec, err := decodeStat(resp, b.encoding)
	if err != nil {
		return codec.StatRecord{}, malformed(types.MethodMkdir, path, err)
	}
	return rec, nil
}

// Rename moves oldPath to newPath.
func (b *Bridge) Rename(ctx context.Context, oldPath, newPath string) error {
	_, err := b.call(ctx, types.MethodRename, oldPath, types.RenameRequest{OldPath: oldPath, NewPath: newPath}, nil)
	return err
}

// Unlink removes a file or an empty directory.
func (b *Bridge) Unlink(ctx context.Context, path string) error {
	_, err := b.call(ctx, types.MethodUnlink, path, types.PathRequest{Path: path}, nil)
	return err
}

func joinPath(dir, name string) string {
	if dir == "" || dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}
