// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse mounts a [vfs.ReadOnlyDirectory] as a FUSE filesystem so
// a guest sees it as an ordinary read-only directory.
//
// Every lookup, getattr, readdir, and open goes back to the directory,
// so the mount reflects the secrets file as it is now. Kernel caching
// is kept short for metadata and disabled for content.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/gondolin/vfs"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted. It
	// is created if it does not exist.
	Mountpoint string

	// Directory serves the mount's content.
	Directory vfs.ReadOnlyDirectory

	// Name is the filesystem name shown in /proc/mounts. Default:
	// "gondolin".
	Name string

	// AllowOther permits other users, including the guest's uid, to
	// access the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, only errors are
	// written to stderr.
	Logger *slog.Logger
}

// Mount mounts options.Directory at options.Mountpoint. The caller
// must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if options.Name == "" {
		options.Name = "gondolin"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Short timeouts keep stat and readdir close to the live file.
	entryTimeout := 100 * time.Millisecond
	attrTimeout := 100 * time.Millisecond
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     options.Name,
			Name:       "gondolin",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("read-only FUSE filesystem mounted",
		"mountpoint", options.Mountpoint,
		"name", options.Name,
	)
	return server, nil
}

// rootNode is the mount's only directory.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeCreater = (*rootNode)(nil)
var _ gofuse.NodeMkdirer = (*rootNode)(nil)
var _ gofuse.NodeUnlinker = (*rootNode)(nil)
var _ gofuse.NodeRmdirer = (*rootNode)(nil)
var _ gofuse.NodeRenamer = (*rootNode)(nil)

func (r *rootNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	info, err := r.options.Directory.Stat("/" + name)
	if err != nil {
		return nil, r.errno("lookup", name, err)
	}

	child := r.NewInode(ctx, &fileNode{options: r.options, name: name}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	fillAttr(&out.Attr, info)
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := r.options.Directory.ReadDir("/")
	if err != nil {
		return nil, r.errno("readdir", "/", err)
	}

	dirEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		dirEntries = append(dirEntries, fuse.DirEntry{
			Name: entry.Name(),
			Mode: syscall.S_IFREG,
		})
	}
	return &sliceDirStream{entries: dirEntries}, 0
}

func (r *rootNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (r *rootNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, r.errno("mkdir", name, r.options.Directory.Mkdir("/"+name, fs.FileMode(mode)))
}

func (r *rootNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return r.errno("unlink", name, r.options.Directory.Remove("/"+name))
}

func (r *rootNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return r.errno("rmdir", name, r.options.Directory.Remove("/"+name))
}

func (r *rootNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return r.errno("rename", name, r.options.Directory.Rename("/"+name, "/"+newName))
}

func (r *rootNode) errno(op, name string, err error) syscall.Errno {
	return toErrno(r.options.Logger, op, name, err)
}

// fileNode is one synthetic file. It holds only the name; content is
// fetched from the directory on every access.
type fileNode struct {
	gofuse.Inode
	options *Options
	name    string
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeSetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (f *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := f.options.Directory.Stat("/" + f.name)
	if err != nil {
		return toErrno(f.options.Logger, "getattr", f.name, err)
	}
	fillAttr(&out.Attr, info)
	return 0
}

// Setattr rejects truncation and mode changes.
func (f *fileNode) Setattr(ctx context.Context, fh gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		return toErrno(f.options.Logger, "truncate", f.name, f.options.Directory.Truncate("/"+f.name, int64(size)))
	}
	return syscall.EROFS
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	handle, err := f.options.Directory.Open("/"+f.name, int(flags))
	if err != nil {
		return nil, 0, toErrno(f.options.Logger, "open", f.name, err)
	}
	// Direct I/O keeps content out of the page cache so every open
	// reflects the directory.
	return &fileHandle{handle: handle}, fuse.FOPEN_DIRECT_IO, 0
}

// fileHandle adapts a vfs.Handle to go-fuse.
type fileHandle struct {
	handle vfs.Handle
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileWriter = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := h.handle.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, syscall.EROFS
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	_ = h.handle.Close()
	return 0
}

func fillAttr(out *fuse.Attr, info fs.FileInfo) {
	out.Mode = syscall.S_IFREG | uint32(info.Mode().Perm())
	out.Size = uint64(info.Size())
	out.Blocks = (out.Size + 511) / 512
	modTime := info.ModTime()
	out.SetTimes(&modTime, &modTime, &modTime)
}

// toErrno maps directory errors to errnos. Errno-carrying errors pass
// through; anything else is logged and reported as EIO.
func toErrno(logger *slog.Logger, op, name string, err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	logger.Error("read-only directory operation failed", "op", op, "name", name, "error", err)
	return syscall.EIO
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
