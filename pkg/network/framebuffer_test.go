package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameBufferWriteCoalescesUnderChunkSize(t *testing.T) {
	b := NewFrameBuffer()
	_, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = b.Write([]byte("def"))
	require.NoError(t, err)
	require.Len(t, b.chunks, 1)
	require.Equal(t, "abcdef", string(b.chunks[0]))
}

func TestFrameBufferWritePushesNewChunkPastChunkSize(t *testing.T) {
	b := NewFrameBuffer()
	_, err := b.Write(make([]byte, chunkSize))
	require.NoError(t, err)
	_, err = b.Write([]byte("x"))
	require.NoError(t, err)
	require.Len(t, b.chunks, 2)
}

func TestFrameBufferReadAcrossChunks(t *testing.T) {
	b := NewFrameBuffer()
	_, _ = b.Write(make([]byte, chunkSize))
	_, _ = b.Write([]byte("tail"))

	dst := make([]byte, chunkSize+4)
	n, err := b.Read(dst)
	require.NoError(t, err)
	require.Equal(t, chunkSize+4, n)
	require.Equal(t, "tail", string(dst[chunkSize:]))
}

func TestFrameBufferCheckpointRollback(t *testing.T) {
	b := NewFrameBuffer()
	_, _ = b.Write([]byte("hello world"))

	b.Checkpoint()
	first := make([]byte, 5)
	_, err := b.Read(first)
	require.NoError(t, err)
	require.Equal(t, "hello", string(first))

	b.Rollback()
	require.Equal(t, 11, b.Len())

	again := make([]byte, 5)
	_, err = b.Read(again)
	require.NoError(t, err)
	require.Equal(t, "hello", string(again))
}

func TestFrameBufferCommitDropsConsumedChunks(t *testing.T) {
	b := NewFrameBuffer()
	_, _ = b.Write(make([]byte, chunkSize))
	_, _ = b.Write([]byte("second"))

	dst := make([]byte, chunkSize)
	_, err := b.Read(dst)
	require.NoError(t, err)
	b.Commit()

	require.Len(t, b.chunks, 1)
	require.Equal(t, 6, b.Len())

	rest := make([]byte, 6)
	_, err = b.Read(rest)
	require.NoError(t, err)
	require.Equal(t, "second", string(rest))
}

func TestFrameBufferDrainToSliceEmptiesBuffer(t *testing.T) {
	b := NewFrameBuffer()
	_, _ = b.Write([]byte("a"))
	_, _ = b.Write(make([]byte, chunkSize))

	out := b.DrainToSlice()
	require.Len(t, out, chunkSize+1)
	require.Equal(t, 0, b.Len())
	require.Nil(t, b.chunks)
}

func TestFrameBufferReadReturnsZeroWhenEmpty(t *testing.T) {
	b := NewFrameBuffer()
	n, err := b.Read(make([]byte, 10))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
