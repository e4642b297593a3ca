package capture

import (
	"encoding/binary"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// socketpair returns two connected *net.UnixConn endpoints backed by a
// real AF_UNIX SOCK_STREAM socketpair, so SCM_RIGHTS transfer can be
// exercised with no external process.
func socketpair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	toConn := func(fd int) *net.UnixConn {
		f := os.NewFile(uintptr(fd), "sock")
		c, err := net.FileConn(f)
		require.NoError(t, err)
		f.Close()
		return c.(*net.UnixConn)
	}
	return toConn(fds[0]), toConn(fds[1])
}

func TestReceiveBuffer_ParsesHeaderAndFD(t *testing.T) {
	a, b := socketpair(t)
	defer a.Close()
	defer b.Close()

	payloadFD, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
	require.NoError(t, err)
	defer unix.Close(payloadFD)

	header := make([]byte, 28)
	binary.LittleEndian.PutUint64(header[0:8], 42)
	binary.LittleEndian.PutUint32(header[8:12], 3)    // slot
	binary.LittleEndian.PutUint32(header[12:16], 1920) // width
	binary.LittleEndian.PutUint32(header[16:20], 1080) // height
	binary.LittleEndian.PutUint32(header[20:24], 7680) // stride
	binary.LittleEndian.PutUint32(header[24:28], 1)    // format

	rights := unix.UnixRights(payloadFD)
	_, _, err = a.WriteMsgUnix(header, rights, nil)
	require.NoError(t, err)

	buf, err := receiveBuffer(b)
	require.NoError(t, err)
	defer unix.Close(buf.FD)

	assert.Equal(t, uint64(42), buf.Seq)
	assert.Equal(t, uint32(3), buf.SlotID)
	assert.Equal(t, 1920, buf.Width)
	assert.Equal(t, 1080, buf.Height)
	assert.Equal(t, 7680, buf.Stride)
	assert.Equal(t, uint32(1), buf.Format)
	assert.NotEqual(t, payloadFD, buf.FD, "received fd is a distinct dup, not the sender's fd number")
}

func TestReceiveBuffer_ShortHeaderIsProtocolError(t *testing.T) {
	a, b := socketpair(t)
	defer a.Close()
	defer b.Close()

	_, err := a.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	a.Close()

	_, err = receiveBuffer(b)
	assert.Error(t, err)
}
