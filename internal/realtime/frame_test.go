package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEscapesHeaders(t *testing.T) {
	frame := NewFrame(CmdMessage, HdrDestination, "/topic/chat.7", "note", "a:b\nc\\d")
	frame.Body = []byte(`{"content":"hi"}`)

	decoded, err := Decode(frame.Encode())
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, CmdMessage, decoded[0].Command)
	assert.Equal(t, "a:b\nc\\d", decoded[0].Headers.Get("note"))
	assert.Equal(t, "16", decoded[0].Headers.Get(HdrContentLength))
	assert.Equal(t, frame.Body, decoded[0].Body)
}

func TestEncodeWireFormat(t *testing.T) {
	raw := string(NewFrame(CmdReceipt, HdrReceiptID, "sub-0").Encode())
	assert.Equal(t, "RECEIPT\nreceipt-id:sub-0\n\n\x00", raw)

	frames, err := Decode(NewFrame(CmdConnected, HdrServer, "x:y", HdrHeartBeat, "0,0").Encode())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "x:y", frames[0].Headers.Get(HdrServer))
	assert.Equal(t, "0,0", frames[0].Headers.Get(HdrHeartBeat))
}

func TestDecodeMultipleFramesWithHeartbeats(t *testing.T) {
	data := []byte("\n\r\nCONNECT\r\naccept-version:1.2\r\nhost:school\r\n\r\n\x00\nSUBSCRIBE\nid:sub-0\ndestination:/topic/public\n\n\x00\n")

	frames, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, CmdConnect, frames[0].Command)
	assert.Equal(t, "1.2", frames[0].Headers.Get(HdrAcceptVersion))
	assert.Equal(t, "/topic/public", frames[1].Headers.Get(HdrDestination))
}

func TestDecodeHeartbeatOnly(t *testing.T) {
	frames, err := Decode([]byte("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestDecodeContentLengthAllowsNUL(t *testing.T) {
	frames, err := Decode([]byte("SEND\ndestination:/app/test\ncontent-length:3\n\na\x00b\x00"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("a\x00b"), frames[0].Body)
}

func TestDecodeFirstHeaderWins(t *testing.T) {
	frames, err := Decode([]byte("SEND\ndestination:/topic/a\ndestination:/topic/b\n\n\x00"))
	require.NoError(t, err)
	assert.Equal(t, "/topic/a", frames[0].Headers.Get(HdrDestination))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("SEND\ndestination:/topic/a\n\nno terminator"))
	assert.ErrorIs(t, err, ErrIncompleteFrame)

	_, err = Decode([]byte("PUBLISH\n\n\x00"))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte("SEND\nno-colon\n\n\x00"))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte("SEND\ncontent-length:10\n\nshort\x00"))
	assert.ErrorIs(t, err, ErrIncompleteFrame)

	frames, err := Decode([]byte("SEND\ndestination:/topic/a\n\n\x00SEND\ndestination:/top"))
	assert.ErrorIs(t, err, ErrIncompleteFrame)
	assert.Len(t, frames, 1)
}

func TestHeadersSetReplaces(t *testing.T) {
	var h Headers
	h = append(h, Header{Key: "a", Value: "1"}, Header{Key: "b", Value: "2"}, Header{Key: "a", Value: "3"})
	h.Set("a", "4")

	assert.Equal(t, "4", h.Get("a"))
	assert.Len(t, h, 2)
	_, ok := h.Lookup("missing")
	assert.False(t, ok)
}
