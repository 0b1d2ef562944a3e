// Package ipc implements the Discord local RPC transport: length-prefixed
// JSON frames over a Unix socket or Windows named pipe.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Opcode identifies the frame type.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

const (
	headerSize = 8
	// maxFrameSize bounds a single payload. Discord's replies are small.
	maxFrameSize = 64 * 1024
)

// ErrFrameTooLarge is returned when a frame header announces a payload
// larger than maxFrameSize.
var ErrFrameTooLarge = errors.New("ipc frame too large")

type frame struct {
	op   Opcode
	body []byte
}

func writeFrame(w io.Writer, op Opcode, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return writeRawFrame(w, op, body)
}

func writeRawFrame(w io.Writer, op Opcode, body []byte) error {
	buf := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[headerSize:], body)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, err
	}
	op := Opcode(binary.LittleEndian.Uint32(hdr[0:4]))
	n := binary.LittleEndian.Uint32(hdr[4:8])
	if n > maxFrameSize {
		return frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, fmt.Errorf("read frame body: %w", err)
	}
	return frame{op: op, body: body}, nil
}

// handshake is the first frame a client sends.
type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

// command is an outgoing RPC command.
type command struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}

type activityArgs struct {
	PID      int `json:"pid"`
	Activity any `json:"activity"`
}

// message is an incoming RPC frame.
type message struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// errorData is the payload of an ERROR event or a close frame.
type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	cmdDispatch    = "DISPATCH"
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

// RPCError is an error reported by the Discord client.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("discord rpc error %d: %s", e.Code, e.Message)
}

func decodeError(body []byte) *RPCError {
	var d errorData
	if err := json.Unmarshal(body, &d); err != nil {
		return &RPCError{Message: string(body)}
	}
	return &RPCError{Code: d.Code, Message: d.Message}
}
