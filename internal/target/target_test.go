package target

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeU64RoundTrip(t *testing.T) {
	var buf [8]byte
	putLeU64(buf[:], 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), leU64(buf[:]))
	assert.Equal(t, byte(0x08), buf[0])
	assert.Equal(t, byte(0x01), buf[7])
}

func TestIsRecoverableClassifiesEIOAndEFAULT(t *testing.T) {
	assert.True(t, isRecoverable(syscall.EIO))
	assert.True(t, isRecoverable(syscall.EFAULT))
	assert.False(t, isRecoverable(syscall.EPERM))
	assert.False(t, isRecoverable(nil))
}

func TestNewTargetStartsWithEmptyCache(t *testing.T) {
	tg := New(1234)
	assert.Equal(t, 1234, tg.Pid)
	assert.False(t, tg.have)
	assert.Len(t, tg.cache, 0)
}
