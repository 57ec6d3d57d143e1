// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// DirectoryMode is the permission of every synthetic directory.
	DirectoryMode fs.FileMode = fs.ModeDir | 0o555

	// FileMode is the permission of every synthetic file.
	FileMode fs.FileMode = 0o444
)

// ReadOnlyDirectory is a flat synthetic directory. Names may be given
// as "/NAME", "NAME", or "./NAME"; "/" is the directory itself.
type ReadOnlyDirectory interface {
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)

	// Open opens a file for reading. Any write, create, truncate, or
	// append flag fails with EROFS.
	Open(name string, flag int) (Handle, error)

	Mkdir(name string, perm fs.FileMode) error
	Remove(name string) error
	Rename(oldName, newName string) error
	Truncate(name string, size int64) error
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

// Handle is an open synthetic file. Its content is captured at Open.
type Handle interface {
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (fs.FileInfo, error)
	Close() error
}

// contentProvider is what distinguishes the directory variants.
type contentProvider interface {
	// names returns the current file names.
	names() ([]string, error)

	// content returns the bytes served for name; found is false when
	// name is not currently in the directory.
	content(name string) (data []byte, found bool, err error)
}

// readOnly implements every ReadOnlyDirectory operation on top of a
// contentProvider.
type readOnly struct {
	provider contentProvider
	modTime  time.Time
}

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// resolveName maps a path to a file name. isRoot is true for the
// directory itself. Nested paths are never present in a flat
// directory.
func resolveName(name string) (file string, isRoot bool, ok bool) {
	cleaned := path.Clean("/" + name)
	if cleaned == "/" {
		return "", true, true
	}
	file = strings.TrimPrefix(cleaned, "/")
	if strings.Contains(file, "/") {
		return "", false, false
	}
	return file, false, true
}

func (d *readOnly) Stat(name string) (fs.FileInfo, error) {
	file, isRoot, ok := resolveName(name)
	if !ok {
		return nil, pathError("stat", name, syscall.ENOENT)
	}
	if isRoot {
		return d.rootInfo(), nil
	}
	data, found, err := d.provider.content(file)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	if !found {
		return nil, pathError("stat", name, syscall.ENOENT)
	}
	return d.fileInfo(file, len(data)), nil
}

// Lstat is Stat: the directories contain no symlinks.
func (d *readOnly) Lstat(name string) (fs.FileInfo, error) {
	return d.Stat(name)
}

func (d *readOnly) ReadDir(name string) ([]fs.DirEntry, error) {
	_, isRoot, ok := resolveName(name)
	if !ok {
		return nil, pathError("readdir", name, syscall.ENOENT)
	}
	if !isRoot {
		if _, err := d.Stat(name); err != nil {
			return nil, pathError("readdir", name, underlying(err))
		}
		return nil, pathError("readdir", name, syscall.ENOTDIR)
	}

	names, err := d.provider.names()
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	sort.Strings(names)

	entries := make([]fs.DirEntry, 0, len(names))
	for _, file := range names {
		data, found, err := d.provider.content(file)
		if err != nil {
			return nil, pathError("readdir", name, err)
		}
		// The file can vanish between names and content.
		if !found {
			continue
		}
		entries = append(entries, fs.FileInfoToDirEntry(d.fileInfo(file, len(data))))
	}
	return entries, nil
}

func (d *readOnly) Open(name string, flag int) (Handle, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, pathError("open", name, syscall.EROFS)
	}
	file, isRoot, ok := resolveName(name)
	if !ok {
		return nil, pathError("open", name, syscall.ENOENT)
	}
	if isRoot {
		return nil, pathError("open", name, syscall.EISDIR)
	}
	data, found, err := d.provider.content(file)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	if !found {
		return nil, pathError("open", name, syscall.ENOENT)
	}
	return &handle{
		name:   name,
		info:   d.fileInfo(file, len(data)),
		reader: bytes.NewReader(data),
	}, nil
}

func (d *readOnly) Mkdir(name string, _ fs.FileMode) error {
	return pathError("mkdir", name, syscall.EROFS)
}

func (d *readOnly) Remove(name string) error {
	return pathError("remove", name, syscall.EROFS)
}

func (d *readOnly) Rename(oldName, _ string) error {
	return pathError("rename", oldName, syscall.EROFS)
}

func (d *readOnly) Truncate(name string, _ int64) error {
	return pathError("truncate", name, syscall.EROFS)
}

func (d *readOnly) WriteFile(name string, _ []byte, _ fs.FileMode) error {
	return pathError("write", name, syscall.EROFS)
}

func (d *readOnly) rootInfo() fs.FileInfo {
	return &fileInfo{name: "/", mode: DirectoryMode, modTime: d.modTime}
}

func (d *readOnly) fileInfo(name string, size int) fs.FileInfo {
	return &fileInfo{name: name, size: int64(size), mode: FileMode, modTime: d.modTime}
}

func underlying(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (f *fileInfo) Name() string       { return f.name }
func (f *fileInfo) Size() int64        { return f.size }
func (f *fileInfo) Mode() fs.FileMode  { return f.mode }
func (f *fileInfo) ModTime() time.Time { return f.modTime }
func (f *fileInfo) IsDir() bool        { return f.mode.IsDir() }
func (f *fileInfo) Sys() any           { return nil }

type handle struct {
	name   string
	info   fs.FileInfo
	reader *bytes.Reader
	closed atomic.Bool
}

func (h *handle) Read(p []byte) (int, error) {
	if h.closed.Load() {
		return 0, pathError("read", h.name, fs.ErrClosed)
	}
	return h.reader.Read(p)
}

func (h *handle) ReadAt(p []byte, off int64) (int, error) {
	if h.closed.Load() {
		return 0, pathError("read", h.name, fs.ErrClosed)
	}
	return h.reader.ReadAt(p, off)
}

func (h *handle) Write([]byte) (int, error) {
	return 0, pathError("write", h.name, syscall.EROFS)
}

func (h *handle) Stat() (fs.FileInfo, error) {
	return h.info, nil
}

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return pathError("close", h.name, fs.ErrClosed)
	}
	return nil
}
