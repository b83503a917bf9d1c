package framing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostkit/toolhost/internal/wire"
)

func collectFramer(t *testing.T) (*Framer, *[]wire.Message) {
	t.Helper()

	var got []wire.Message

	f := New(slog.Default(), func(msg wire.Message) {
		got = append(got, msg)
	})

	return f, &got
}

// TestFeed_WholeLines tests that complete newline-terminated messages in a
// single chunk are emitted in order.
func TestFeed_WholeLines(t *testing.T) {
	f, got := collectFramer(t)

	f.Feed([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"result":{}}` + "\n"))

	require.Len(t, *got, 2)
	require.Equal(t, int64(1), (*got)[0].ID)
	require.Equal(t, int64(2), (*got)[1].ID)
}

// TestFeed_SplitAcrossChunks tests that a line spanning multiple feeds is
// emitted exactly once, after the newline arrives.
func TestFeed_SplitAcrossChunks(t *testing.T) {
	f, got := collectFramer(t)

	f.Feed([]byte(`{"jsonrpc":"2.0",`))
	require.Empty(t, *got)

	f.Feed([]byte(`"id":7,"result":{"ok":true}}`))
	require.Empty(t, *got, "incomplete trailing fragment must not be emitted")

	f.Feed([]byte("\n"))
	require.Len(t, *got, 1)
	require.Equal(t, int64(7), (*got)[0].ID)
}

// TestFeed_OneByteAtATime tests the chunking property: feeding the input
// byte by byte yields the same messages as feeding it whole.
func TestFeed_OneByteAtATime(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"result":"a"}` + "\n" +
		`{"jsonrpc":"2.0","method":"notify","params":{}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"error":{"code":-1,"message":"boom"}}` + "\n"

	f, got := collectFramer(t)

	for i := 0; i < len(input); i++ {
		f.Feed([]byte{input[i]})
	}

	require.Len(t, *got, 3)
	require.Equal(t, wire.KindResponse, (*got)[0].Kind)
	require.Equal(t, wire.KindNotification, (*got)[1].Kind)
	require.Equal(t, wire.KindResponse, (*got)[2].Kind)
	require.Equal(t, "boom", (*got)[2].Err.Message)
}

// TestFeed_ChunkingInvariance tests that every split point of a two-message
// input produces the identical message sequence.
func TestFeed_ChunkingInvariance(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":10,"result":[1,2]}` + "\n" +
		`{"jsonrpc":"2.0","id":11,"result":null}` + "\n"

	for split := 0; split <= len(input); split++ {
		f, got := collectFramer(t)

		f.Feed([]byte(input[:split]))
		f.Feed([]byte(input[split:]))

		require.Len(t, *got, 2, "split at %d", split)
		require.Equal(t, int64(10), (*got)[0].ID, "split at %d", split)
		require.Equal(t, int64(11), (*got)[1].ID, "split at %d", split)
	}
}

// TestFeed_NonJSONLinesSkipped tests that provider log noise interleaved on
// the stream is discarded without affecting surrounding messages.
func TestFeed_NonJSONLinesSkipped(t *testing.T) {
	f, got := collectFramer(t)

	f.Feed([]byte("starting up...\n"))
	f.Feed([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"))
	f.Feed([]byte("WARN something unrelated\n"))
	f.Feed([]byte(`{"jsonrpc":"2.0","id":2,"result":{}}` + "\n"))

	require.Len(t, *got, 2)
	require.Equal(t, int64(1), (*got)[0].ID)
	require.Equal(t, int64(2), (*got)[1].ID)
}

// TestFeed_BlankLinesIgnored tests that empty and whitespace-only lines
// produce nothing.
func TestFeed_BlankLinesIgnored(t *testing.T) {
	f, got := collectFramer(t)

	f.Feed([]byte("\n\n  \n\r\n"))

	require.Empty(t, *got)
}

// TestFeed_MultipleMessagesPerChunk tests many messages delivered in one
// read.
func TestFeed_MultipleMessagesPerChunk(t *testing.T) {
	const n = 50

	var input []byte
	for i := 1; i <= n; i++ {
		input = append(input, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%d}`+"\n", i, i)...)
	}

	f, got := collectFramer(t)
	f.Feed(input)

	require.Len(t, *got, n)

	for i, msg := range *got {
		require.Equal(t, int64(i+1), msg.ID)

		var v int
		require.NoError(t, json.Unmarshal(msg.Result, &v))
		require.Equal(t, i+1, v)
	}
}

// TestFeed_TrailingFragmentWithoutNewline tests that input not terminated
// by a newline is never emitted.
func TestFeed_TrailingFragmentWithoutNewline(t *testing.T) {
	f, got := collectFramer(t)

	f.Feed([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))

	require.Empty(t, *got)
}

// TestFeed_OversizedLineDiscarded tests that a line exceeding the buffer
// cap is dropped while later messages still decode.
func TestFeed_OversizedLineDiscarded(t *testing.T) {
	f, got := collectFramer(t)

	huge := make([]byte, maxBufferSize+2)
	for i := range huge {
		huge[i] = 'x'
	}

	f.Feed(huge)
	f.Feed([]byte("\n"))
	f.Feed([]byte(`{"jsonrpc":"2.0","id":3,"result":{}}` + "\n"))

	require.Len(t, *got, 1)
	require.Equal(t, int64(3), (*got)[0].ID)
}
