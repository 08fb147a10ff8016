package wal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loon/disk"
)

func TestManager_Should_Assign_Monotonic_Lsns(t *testing.T) {
	var sink bytes.Buffer
	l := NewManager(&sink)

	lsn1 := l.AppendLog(NewAllocPageLogRecord(1, disk.PageID(10)))
	lsn2 := l.AppendLog(NewPageUpdateLogRecord(1, disk.PageID(10), []byte("after image")))
	lsn3 := l.AppendLog(NewFreePageLogRecord(2, disk.PageID(10)))

	assert.Equal(t, LSN(1), lsn1)
	assert.Equal(t, LSN(2), lsn2)
	assert.Equal(t, LSN(3), lsn3)
}

func TestManager_Flush_Should_Advance_Flushed_Lsn(t *testing.T) {
	var sink bytes.Buffer
	l := NewManager(&sink)

	l.AppendLog(NewAllocPageLogRecord(1, disk.PageID(3)))
	assert.Equal(t, ZeroLSN, l.GetFlushedLSN())
	assert.Zero(t, sink.Len())

	require.NoError(t, l.Flush())
	assert.Equal(t, LSN(1), l.GetFlushedLSN())
	assert.NotZero(t, sink.Len())

	// flushing an empty buffer is a no-op
	before := sink.Len()
	require.NoError(t, l.Flush())
	assert.Equal(t, before, sink.Len())
}

func TestNoopLM_Should_Do_Nothing(t *testing.T) {
	lsn := NoopLM.AppendLog(NewAllocPageLogRecord(1, disk.PageID(1)))
	assert.Equal(t, ZeroLSN, lsn)
	assert.NoError(t, NoopLM.Flush())
	assert.Equal(t, ZeroLSN, NoopLM.GetFlushedLSN())
}
