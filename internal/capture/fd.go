package capture

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// bufferHeader is the fixed-size header preceding each SCM_RIGHTS message
// on the media-capture socket: a buffer sequence number, its declared
// stride, and the pixel format code negotiated for the stream.
type bufferHeader struct {
	Seq    uint64
	SlotID uint32
	Width  uint32
	Height uint32
	Stride uint32
	Format uint32
}

// receivedBuffer is one buffer handed across the media-capture socket: a
// dmabuf file descriptor plus the metadata needed to map and interpret it.
// SlotID identifies the buffer's position in the compositor's fixed-size
// buffer pool: the pool is reused round-robin, so the same SlotID recurs
// across many distinct Seq values, each time backed by the same dmabuf
// allocation.
type receivedBuffer struct {
	FD     int
	Seq    uint64
	SlotID uint32
	Width  int
	Height int
	Stride int
	Format uint32
}

// receiveBuffer reads one framed buffer announcement off the
// media-capture socket and extracts its dmabuf fd via SCM_RIGHTS. The
// caller owns the returned fd and must close it once the buffer has been
// mapped and consumed, or hand it to the buffer cache, which closes it
// (after mapping it, or unused when the slot is already mapped).
func receiveBuffer(conn *net.UnixConn) (receivedBuffer, error) {
	const headerSize = 8 + 4 + 4 + 4 + 4 + 4
	buf := make([]byte, headerSize)
	oob := make([]byte, unix.CmsgLen(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return receivedBuffer{}, rdperrors.Transient("capture.fd", fmt.Errorf("read media socket: %w", err))
	}
	if n < headerSize {
		return receivedBuffer{}, rdperrors.Protocolf("capture.fd", "short buffer header: %d bytes", n)
	}

	hdr := bufferHeader{
		Seq:    binary.LittleEndian.Uint64(buf[0:8]),
		SlotID: binary.LittleEndian.Uint32(buf[8:12]),
		Width:  binary.LittleEndian.Uint32(buf[12:16]),
		Height: binary.LittleEndian.Uint32(buf[16:20]),
		Stride: binary.LittleEndian.Uint32(buf[20:24]),
		Format: binary.LittleEndian.Uint32(buf[24:28]),
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return receivedBuffer{}, rdperrors.Protocolf("capture.fd", "parse control message: %v", err)
	}

	fd := -1
	for _, scm := range scms {
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			fd = fds[0]
			for _, extra := range fds[1:] {
				unix.Close(extra)
			}
			break
		}
	}
	if fd < 0 {
		return receivedBuffer{}, rdperrors.Protocolf("capture.fd", "no buffer fd received via SCM_RIGHTS for seq %d", hdr.Seq)
	}

	return receivedBuffer{
		FD:     fd,
		Seq:    hdr.Seq,
		SlotID: hdr.SlotID,
		Width:  int(hdr.Width),
		Height: int(hdr.Height),
		Stride: int(hdr.Stride),
		Format: hdr.Format,
	}, nil
}
