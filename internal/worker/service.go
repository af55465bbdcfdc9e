// Package worker is the process that performs filesystem calls on behalf of
// the bridge. It serves the bridge's commands over a websocket and pushes
// change notifications for watched paths.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

var (
	errInvalidParams = errors.New("invalid parameters")
	errUnreadable    = errors.New("content cannot be decoded")
)

const defaultDirMode = 0o777

// Service performs the OS side of every bridge command. It holds no
// per-connection state and is safe for concurrent use.
type Service struct {
	sandbox paths.Sandbox
	logger  *logging.Logger
}

// NewService creates a service confined to sandbox.
func NewService(sandbox paths.Sandbox, logger *logging.Logger) *Service {
	return &Service{
		sandbox: sandbox,
		logger:  logging.OrNop(logger).Named("worker"),
	}
}

// Sandbox returns the path mapping in use.
func (s *Service) Sandbox() paths.Sandbox { return s.sandbox }

func (s *Service) resolve(path string) (string, error) {
	osPath, err := s.sandbox.Resolve(path)
	if err != nil {
		if errors.Is(err, paths.ErrOutsideRoot) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return osPath, nil
}

// statPath stats osPath, following a symbolic link to its target and
// recording where it resolved to.
func (s *Service) statPath(osPath string) (codec.StatRecord, error) {
	info, err := os.Lstat(osPath)
	if err != nil {
		return codec.StatRecord{}, err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return codec.NewStatRecord(!info.IsDir(), info.ModTime(), uint64(info.Size()), ""), nil
	}

	target, err := os.Stat(osPath)
	if err != nil {
		return codec.StatRecord{}, err
	}
	resolved, err := filepath.EvalSymlinks(osPath)
	if err != nil {
		return codec.StatRecord{}, err
	}
	return codec.NewStatRecord(!target.IsDir(), target.ModTime(), uint64(target.Size()),
		s.sandbox.Bridge(resolved, target.IsDir())), nil
}

// encodeStat picks the structured or binary representation.
func encodeStat(rec codec.StatRecord, enc codec.Encoding) (any, []byte, error) {
	if enc.IsBinary() {
		data, err := codec.EncodeBinary(rec)
		return nil, data, err
	}
	return codec.ToStructured(rec), nil, nil
}

// Stat returns the metadata of one path.
func (s *Service) Stat(_ context.Context, req types.PathRequest) (any, []byte, error) {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.statPath(osPath)
	if err != nil {
		return nil, nil, err
	}
	return encodeStat(rec, req.Encoding)
}

// Exists reports whether a path exists. Only "not found" counts as false;
// other failures are errors.
func (s *Service) Exists(_ context.Context, req types.PathRequest) (bool, error) {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(osPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Readdir lists a directory. Each entry is stat'ed on its own; one entry
// failing does not fail the listing.
func (s *Service) Readdir(_ context.Context, req types.PathRequest) ([]types.DirEntry, []byte, error) {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return nil, nil, err
	}
	dirents, err := os.ReadDir(osPath)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]types.DirEntry, len(dirents))
	stats := make([]codec.BatchEntry, len(dirents))
	for i, d := range dirents {
		entries[i].Name = d.Name()
		rec, err := s.statPath(filepath.Join(osPath, d.Name()))
		if err != nil {
			entries[i].Error = toRaw(err)
			continue
		}
		if req.Encoding.IsBinary() {
			stats[i] = codec.BatchEntry{OK: true, Stat: rec}
			continue
		}
		structured := codec.ToStructured(rec)
		entries[i].Stat = &structured
	}

	if !req.Encoding.IsBinary() {
		return entries, nil, nil
	}
	data, err := codec.EncodeStatList(stats)
	if err != nil {
		return nil, nil, err
	}
	return entries, data, nil
}

// readFile reads content and metadata of one file. Text encodings refuse
// binary-looking content and transcode the rest to UTF-8.
func (s *Service) readFile(path string, enc codec.Encoding) (codec.StatRecord, []byte, string, error) {
	osPath, err := s.resolve(path)
	if err != nil {
		return codec.StatRecord{}, nil, "", err
	}
	rec, err := s.statPath(osPath)
	if err != nil {
		return codec.StatRecord{}, nil, "", err
	}
	content, err := os.ReadFile(osPath)
	if err != nil {
		return codec.StatRecord{}, nil, "", err
	}
	// the file may have changed between stat and read
	rec.Size = uint64(len(content))

	if enc.IsBinary() {
		return rec, content, "", nil
	}
	if codec.IsBinaryContent(content) {
		return codec.StatRecord{}, nil, "", errBinaryContent
	}
	text, err := codec.DecodeText(content, enc)
	if err != nil {
		if errors.Is(err, codec.ErrUnsupportedEncoding) {
			return codec.StatRecord{}, nil, "", err
		}
		return codec.StatRecord{}, nil, "", fmt.Errorf("%w: %v", errUnreadable, err)
	}
	return rec, nil, text, nil
}

// ReadFile returns one file. In binary mode the data is the stat record
// followed by the raw content.
func (s *Service) ReadFile(_ context.Context, req types.PathRequest) (any, []byte, error) {
	rec, content, text, err := s.readFile(req.Path, req.Encoding)
	if err != nil {
		return nil, nil, err
	}
	if req.Encoding.IsBinary() {
		data, err := codec.EncodeFile(rec, content)
		return nil, data, err
	}
	return codec.FileJSON{Stat: codec.ToStructured(rec), Content: text}, nil, nil
}

// ReadAllFiles reads every path independently, preserving order. In binary
// mode the data is the batch framing and the result carries each failed
// entry's error at its index.
func (s *Service) ReadAllFiles(_ context.Context, req types.ReadAllRequest) (any, []byte, error) {
	if req.Encoding.IsBinary() {
		entries := make([]codec.BatchEntry, len(req.Paths))
		errs := make([]*fserrors.RawError, len(req.Paths))
		for i, path := range req.Paths {
			rec, content, _, err := s.readFile(path, req.Encoding)
			if err != nil {
				errs[i] = toRaw(err)
				continue
			}
			entries[i] = codec.BatchEntry{OK: true, Stat: rec, Content: content}
		}
		data, err := codec.EncodeBatch(entries)
		if err != nil {
			return nil, nil, err
		}
		return errs, data, nil
	}

	files := make([]types.BatchFile, len(req.Paths))
	for i, path := range req.Paths {
		rec, _, text, err := s.readFile(path, req.Encoding)
		if err != nil {
			files[i].Error = toRaw(err)
			continue
		}
		structured := codec.ToStructured(rec)
		files[i].Stat = &structured
		files[i].Content = text
	}
	return files, nil, nil
}

// WriteFile replaces a file's content, creating it if needed.
func (s *Service) WriteFile(_ context.Context, req types.WriteRequest, data []byte) (any, []byte, error) {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return nil, nil, err
	}

	content := data
	if !req.Encoding.IsBinary() {
		if content, err = codec.EncodeText(req.Content, req.Encoding); err != nil {
			return nil, nil, err
		}
	}

	_, statErr := os.Lstat(osPath)
	created := errors.Is(statErr, fs.ErrNotExist)

	if err := os.WriteFile(osPath, content, 0o666); err != nil {
		return nil, nil, writeErr(err)
	}
	rec, err := s.statPath(osPath)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Wrote file", zap.String("path", osPath), zap.Int("bytes", len(content)), zap.Bool("created", created))
	if req.Encoding.IsBinary() {
		statData, err := codec.EncodeBinary(rec)
		return types.WriteResult{Created: created}, statData, err
	}
	structured := codec.ToStructured(rec)
	return types.WriteResult{Created: created, Stat: &structured}, nil, nil
}

// Mkdir creates one directory. Mode 0 means 0777 before umask.
func (s *Service) Mkdir(_ context.Context, req types.MkdirRequest) (any, []byte, error) {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return nil, nil, err
	}
	mode := fs.FileMode(req.Mode) & fs.ModePerm
	if mode == 0 {
		mode = defaultDirMode
	}
	if err := os.Mkdir(osPath, mode); err != nil {
		return nil, nil, writeErr(err)
	}
	rec, err := s.statPath(osPath)
	if err != nil {
		return nil, nil, err
	}
	return encodeStat(rec, req.Encoding)
}

// Rename moves oldPath to newPath.
func (s *Service) Rename(_ context.Context, req types.RenameRequest) error {
	from, err := s.resolve(req.OldPath)
	if err != nil {
		return err
	}
	to, err := s.resolve(req.NewPath)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return writeErr(err)
	}
	return nil
}

// Unlink removes a file or an empty directory.
func (s *Service) Unlink(_ context.Context, req types.PathRequest) error {
	osPath, err := s.resolve(req.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(osPath); err != nil {
		return writeErr(err)
	}
	return nil
}

// writeError marks a failure of a mutating call so permission problems
// travel as "cant-write".
type writeError struct{ err error }

func (e writeError) Error() string { return e.err.Error() }
func (e writeError) Unwrap() error { return e.err }

func writeErr(err error) error { return writeError{err} }
