package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/watcher"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commandOrder = []string{"stat", "exists", "ls", "cat", "write", "mkdir", "mv", "rm", "watch"}

var commands = map[string]command{
	"stat":   {usage: "PATH  print metadata and version hash", run: runStat},
	"exists": {usage: "PATH  print whether the path exists", run: runExists},
	"ls":     {usage: "PATH  list a directory with per-entry metadata", run: runList},
	"cat":    {usage: "PATH...  print file contents", run: runCat},
	"write":  {usage: "[-token HASH] PATH  write stdin to a file", run: runWrite},
	"mkdir":  {usage: "[-mode 0755] PATH  create a directory", run: runMkdir},
	"mv":     {usage: "OLD NEW  rename a file or directory", run: runRename},
	"rm":     {usage: "PATH  remove a file or directory", run: runRemove},
	"watch":  {usage: "[-ignore GLOB]... PATH  print coalesced changes", run: runWatch},
}

type statOutput struct {
	Path string `json:"path"`
	codec.StatJSON
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func newStatOutput(path string, stat *codec.StatRecord, err error) statOutput {
	out := statOutput{Path: path}
	if stat != nil {
		out.StatJSON = codec.ToStructured(*stat)
		out.Hash = stat.Hash()
	}
	if err != nil {
		out.Error = err.Error()
		out.Kind = fserrors.KindOf(err).String()
	}
	return out
}

// printer serializes JSON lines; watch callbacks write from other goroutines.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) json(v any) error {
	line, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintf(p.w, "%s\n", line)
	return err
}

func (p *printer) raw(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.w.Write(data)
	return err
}

func (p *printer) change(c watcher.Change) {
	_ = p.json(newStatOutput(c.Path, c.Stat, nil))
}

func exactArgs(args []string, n int) error {
	if len(args) != n {
		return errUsage
	}
	return nil
}

func runStat(ctx context.Context, e *env, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	stat, err := e.bridge.Stat(ctx, args[0])
	if err != nil {
		return err
	}
	return e.out.json(newStatOutput(args[0], &stat, nil))
}

func runExists(ctx context.Context, e *env, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	ok, err := e.bridge.Exists(ctx, args[0])
	if err != nil {
		return err
	}
	return e.out.json(ok)
}

func runList(ctx context.Context, e *env, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	entries, err := e.bridge.Readdir(ctx, args[0])
	if err != nil {
		return err
	}
	for _, entry := range entries {
		var stat *codec.StatRecord
		if entry.Err == nil {
			stat = &entry.Stat
		}
		if err := e.out.json(newStatOutput(entry.Name, stat, entry.Err)); err != nil {
			return err
		}
	}
	return nil
}

func runCat(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if len(args) == 1 {
		file, err := e.bridge.ReadFile(ctx, args[0], e.encoding)
		if err != nil {
			return err
		}
		return e.out.raw(file.Content)
	}

	results, err := e.bridge.ReadAllFiles(ctx, args, e.encoding)
	if err != nil {
		return err
	}
	var failed error
	for _, r := range results {
		if r.Err != nil {
			failed = errors.Join(failed, r.Err)
			continue
		}
		if err := e.out.raw(r.File.Content); err != nil {
			return err
		}
	}
	return failed
}

func runWrite(ctx context.Context, e *env, args []string) error {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)
	token := flags.String("token", "", "Version hash the file must still have")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if err := exactArgs(flags.Args(), 1); err != nil {
		return err
	}
	path := flags.Arg(0)

	data, err := io.ReadAll(e.stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	res, err := e.bridge.WriteFile(ctx, path, data, bridge.WriteOptions{
		Encoding:         e.encoding,
		ConcurrencyToken: *token,
	})
	if err != nil {
		return err
	}
	return e.out.json(struct {
		statOutput
		Created bool `json:"created"`
	}{newStatOutput(path, &res.Stat, nil), res.Created})
}

func runMkdir(ctx context.Context, e *env, args []string) error {
	flags := flag.NewFlagSet("mkdir", flag.ContinueOnError)
	mode := flags.String("mode", "0755", "Permission bits in octal")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if err := exactArgs(flags.Args(), 1); err != nil {
		return err
	}
	perm, err := strconv.ParseUint(*mode, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", *mode, err)
	}
	stat, err := e.bridge.Mkdir(ctx, flags.Arg(0), fs.FileMode(perm).Perm())
	if err != nil {
		return err
	}
	return e.out.json(newStatOutput(flags.Arg(0), &stat, nil))
}

func runRename(ctx context.Context, e *env, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	return e.bridge.Rename(ctx, args[0], args[1])
}

func runRemove(ctx context.Context, e *env, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.bridge.Unlink(ctx, args[0])
}

type globList []string

func (g *globList) String() string { return fmt.Sprint(*g) }

func (g *globList) Set(v string) error {
	*g = append(*g, v)
	return nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	var ignored globList
	flags.Var(&ignored, "ignore", "Glob of paths to ignore; repeatable")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if err := exactArgs(flags.Args(), 1); err != nil {
		return err
	}
	path := flags.Arg(0)

	if err := e.bridge.WatchPath(ctx, path, ignored...); err != nil {
		return err
	}
	<-ctx.Done()
	e.bridge.UnwatchPath(path)
	return nil
}
