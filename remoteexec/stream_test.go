// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestStreamReadersReplayFromStart(t *testing.T) {
	s := newStream()
	s.append([]byte("hello "))

	first := s.reader()
	s.append([]byte("world"))
	second := s.reader()
	s.close(nil)

	for index, reader := range []io.Reader{first, second} {
		data, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("reader %d: %v", index, err)
		}
		if string(data) != "hello world" {
			t.Errorf("reader %d = %q, want %q", index, data, "hello world")
		}
	}
}

func TestStreamReaderBlocksUntilData(t *testing.T) {
	s := newStream()
	reader := s.reader()

	result := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(reader)
		result <- string(data)
	}()

	select {
	case got := <-result:
		t.Fatalf("ReadAll returned %q before stream closed", got)
	case <-time.After(20 * time.Millisecond):
	}

	s.append([]byte("late"))
	s.close(nil)

	select {
	case got := <-result:
		if got != "late" {
			t.Errorf("ReadAll = %q, want %q", got, "late")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadAll did not return after close")
	}
}

func TestStreamErrorAfterDrain(t *testing.T) {
	failure := errors.New("boom")
	s := newStream()
	s.append([]byte("partial"))
	s.close(failure)
	s.append([]byte("ignored"))

	reader := s.reader()
	buffer := make([]byte, 64)
	n, err := reader.Read(buffer)
	if err != nil || string(buffer[:n]) != "partial" {
		t.Fatalf("first Read = %q, %v; want %q, nil", buffer[:n], err, "partial")
	}
	if _, err := reader.Read(buffer); !errors.Is(err, failure) {
		t.Errorf("second Read error = %v, want %v", err, failure)
	}
}

func TestStreamReaderClose(t *testing.T) {
	s := newStream()
	reader := s.reader()

	result := make(chan error, 1)
	go func() {
		_, err := reader.Read(make([]byte, 8))
		result <- err
	}()
	time.Sleep(10 * time.Millisecond)
	reader.Close()

	select {
	case err := <-result:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("Read after Close = %v, want io.ErrClosedPipe", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not wake blocked reader")
	}
}
