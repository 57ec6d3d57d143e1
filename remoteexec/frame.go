// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Channel identifies which output stream a frame belongs to.
type Channel byte

const (
	ChannelStdout Channel = 0x01
	ChannelStderr Channel = 0x02
)

func (c Channel) String() string {
	switch c {
	case ChannelStdout:
		return "stdout"
	case ChannelStderr:
		return "stderr"
	default:
		return fmt.Sprintf("channel(%d)", byte(c))
	}
}

// frameHeaderLength is 1 byte channel + 4 bytes big-endian session id.
const frameHeaderLength = 5

var (
	// ErrFrameTruncated is returned for a frame shorter than its header.
	ErrFrameTruncated = errors.New("remoteexec: truncated frame")

	// ErrUnknownChannel is returned for a channel byte other than
	// stdout or stderr.
	ErrUnknownChannel = errors.New("remoteexec: unknown frame channel")
)

// Frame is one unit of streamed output. The payload length is the
// rest of the transport message.
type Frame struct {
	Channel Channel
	Session uint32
	Payload []byte
}

// EncodeFrame serializes frame as [channel][session BE32][payload].
func EncodeFrame(frame Frame) []byte {
	data := make([]byte, frameHeaderLength+len(frame.Payload))
	data[0] = byte(frame.Channel)
	binary.BigEndian.PutUint32(data[1:frameHeaderLength], frame.Session)
	copy(data[frameHeaderLength:], frame.Payload)
	return data
}

// DecodeFrame parses one binary message. The returned payload aliases
// data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < frameHeaderLength {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrFrameTruncated, len(data), frameHeaderLength)
	}
	channel := Channel(data[0])
	if channel != ChannelStdout && channel != ChannelStderr {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownChannel, data[0])
	}
	return Frame{
		Channel: channel,
		Session: binary.BigEndian.Uint32(data[1:frameHeaderLength]),
		Payload: data[frameHeaderLength:],
	}, nil
}
