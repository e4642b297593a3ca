package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// screenCastStreamIface is the GNOME Mutter ScreenCast stream interface
// whose PipeWireStreamAdded signal carries the negotiated stream id. The
// RemoteDesktop/ScreenCast session and its portal permission flow are out
// of scope for this module; NegotiateMediaSocket only consumes the
// stream object path a launcher has already created and started.
const screenCastStreamIface = "org.gnome.Mutter.ScreenCast.Stream"

// DialSessionBus connects to the D-Bus session bus, retrying until ctx is
// canceled or the attempt limit is reached. The session bus is not always
// available the instant this process starts inside a container.
func DialSessionBus(ctx context.Context, attempts int) (*dbus.Conn, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := dbus.ConnectSessionBus()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(time.Second)
	}
	return nil, rdperrors.Transient("capture.negotiate", fmt.Errorf("connect session bus after %d attempts: %w", attempts, lastErr))
}

// NegotiateMediaSocket waits for the PipeWireStreamAdded signal on the
// already-created ScreenCast stream at streamPath and returns the stream
// id the GstSource's pipewiresrc needs. It does not create or start the
// session itself.
func NegotiateMediaSocket(ctx context.Context, conn *dbus.Conn, streamPath dbus.ObjectPath) (uint32, error) {
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(streamPath),
		dbus.WithMatchInterface(screenCastStreamIface),
		dbus.WithMatchMember("PipeWireStreamAdded"),
	); err != nil {
		return 0, rdperrors.Transient("capture.negotiate", fmt.Errorf("add signal match: %w", err))
	}

	signalChan := make(chan *dbus.Signal, 10)
	conn.Signal(signalChan)
	defer conn.RemoveSignal(signalChan)

	timer := time.NewTimer(10 * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case sig := <-signalChan:
			if sig.Name != screenCastStreamIface+".PipeWireStreamAdded" || len(sig.Body) == 0 {
				continue
			}
			streamID, ok := sig.Body[0].(uint32)
			if !ok {
				return 0, rdperrors.Protocolf("capture.negotiate", "PipeWireStreamAdded body[0] is %T, want uint32", sig.Body[0])
			}
			return streamID, nil
		case <-timer.C:
			return 0, rdperrors.Protocolf("capture.negotiate", "timeout waiting for PipeWireStreamAdded on %s", streamPath)
		}
	}
}
