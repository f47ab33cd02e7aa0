package realtime

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-stomp/stomp/v3/frame"
)

// STOMP 1.2 commands.
const (
	CmdConnect     = "CONNECT"
	CmdStomp       = "STOMP"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdAck         = "ACK"
	CmdNack        = "NACK"
	CmdBegin       = "BEGIN"
	CmdCommit      = "COMMIT"
	CmdAbort       = "ABORT"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

// Frame headers used by the broker.
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrMessage       = "message"
	HdrSession       = "session"
	HdrServer        = "server"
	HdrUserName      = "user-name"
	HdrAuthorization = "Authorization"
)

var (
	// ErrIncompleteFrame is returned when the data ends inside a frame.
	ErrIncompleteFrame = errors.New("stomp: incomplete frame")
	// ErrMalformedFrame is returned for unknown commands, header lines
	// without a colon and bad escapes.
	ErrMalformedFrame = errors.New("stomp: malformed frame")
)

// Header is a single frame header.
type Header struct {
	Key   string
	Value string
}

// Headers keeps frame headers in wire order. Repeated keys are allowed; the
// first occurrence wins on lookup.
type Headers []Header

// Get returns the first value for key.
func (h Headers) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Lookup returns the first value for key and whether it was present.
func (h Headers) Lookup(key string) (string, bool) {
	for _, hdr := range h {
		if hdr.Key == key {
			return hdr.Value, true
		}
	}
	return "", false
}

// Set replaces every value for key with a single value.
func (h *Headers) Set(key, value string) {
	out := (*h)[:0]
	for _, hdr := range *h {
		if hdr.Key != key {
			out = append(out, hdr)
		}
	}
	*h = append(out, Header{Key: key, Value: value})
}

// Frame is a STOMP frame.
type Frame struct {
	Command string
	Headers Headers
	Body    []byte
}

// NewFrame builds a frame from alternating key/value pairs.
func NewFrame(command string, kv ...string) *Frame {
	f := &Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Encode renders the frame, adding content-length when a body is present.
func (f *Frame) Encode() []byte {
	wire := frame.New(f.Command)
	hasLength := false
	for _, hdr := range f.Headers {
		if hdr.Key == HdrContentLength {
			hasLength = true
		}
		wire.Header.Add(hdr.Key, hdr.Value)
	}
	if len(f.Body) > 0 && !hasLength {
		wire.Header.Add(HdrContentLength, strconv.Itoa(len(f.Body)))
	}
	wire.Body = f.Body

	var buf bytes.Buffer
	// Writes to a bytes.Buffer do not fail.
	_ = frame.NewWriter(&buf).Write(wire)
	return buf.Bytes()
}

const readBufferSize = 4096

// Decode parses every frame in data. Heart-beat EOLs between frames are
// skipped, so a payload of only newlines yields no frames.
func Decode(data []byte) ([]*Frame, error) {
	src := bytes.NewReader(data)
	// frame.NewReaderSize reuses buf, so Buffered tells how far it has read.
	buf := bufio.NewReaderSize(src, readBufferSize)
	reader := frame.NewReaderSize(buf, readBufferSize)

	var frames []*Frame
	for {
		unread := src.Len() + buf.Buffered()
		wire, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) && onlyEOL(data[len(data)-unread:]) {
				return frames, nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, ErrIncompleteFrame
			}
			return frames, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if wire == nil {
			continue
		}
		frames = append(frames, fromWire(wire))
	}
}

func fromWire(wire *frame.Frame) *Frame {
	f := &Frame{Command: wire.Command, Body: wire.Body}
	for i := 0; i < wire.Header.Len(); i++ {
		key, value := wire.Header.GetAt(i)
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}
	return f
}

func onlyEOL(data []byte) bool {
	return len(bytes.Trim(data, "\r\n")) == 0
}
