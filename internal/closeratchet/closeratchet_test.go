package closeratchet_test

import (
	"testing"

	"github.com/rugwirobaker/flowsink/internal/closeratchet"
	"github.com/stretchr/testify/assert"
)

func TestReadThenWriteCloses(t *testing.T) {
	assert := assert.New(t)

	r := closeratchet.New(false)
	assert.Equal(closeratchet.ActionNothing, r.CloseRead())
	assert.Equal(closeratchet.ActionClose, r.CloseWrite())
	assert.True(r.BothClosed())
}

func TestWriteThenReadCloses(t *testing.T) {
	assert := assert.New(t)

	r := closeratchet.New(false)
	assert.Equal(closeratchet.ActionNothing, r.CloseWrite())
	assert.Equal(closeratchet.ActionClose, r.CloseRead())
	assert.True(r.BothClosed())
}

func TestHalfCloseEnabledReturnsCloseOutput(t *testing.T) {
	assert := assert.New(t)

	r := closeratchet.New(true)
	assert.Equal(closeratchet.ActionCloseOutput, r.CloseWrite())
	assert.False(r.BothClosed())
	assert.Equal(closeratchet.ActionClose, r.CloseRead())
	assert.True(r.BothClosed())
}

func TestHalfCloseDisabledWaitsForPeer(t *testing.T) {
	assert := assert.New(t)

	r := closeratchet.New(false)
	assert.Equal(closeratchet.ActionNothing, r.CloseWrite())
	assert.False(r.BothClosed())
}

func TestDuplicateCloseReadPanics(t *testing.T) {
	r := closeratchet.New(false)
	r.CloseRead()
	assert.Panics(t, func() { r.CloseRead() })
}

func TestDuplicateCloseWritePanics(t *testing.T) {
	r := closeratchet.New(false)
	r.CloseWrite()
	assert.Panics(t, func() { r.CloseWrite() })
}
