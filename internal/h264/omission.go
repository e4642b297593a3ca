package h264

import (
	"hash/crc32"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

// LCFlag is the per-tick Luma/Chroma declaration the 4:4:4 protocol uses
// to signal which subframes are present in a PDU.
type LCFlag int

const (
	LCBoth       LCFlag = 0
	LCLumaOnly   LCFlag = 1 // Main only; client reuses its last Auxiliary
	LCChromaOnly LCFlag = 2
)

// OmissionController decides, per tick, whether the Auxiliary subframe
// must be sent. Content changes are detected via a checksum of the
// Auxiliary subframe's raw pixels — not the encoder's own frame-type
// classification, which is unreliable for Auxiliary pictures — combined
// with a forced-refresh interval so a client that
// missed an update is bounded in how stale its Auxiliary view can get.
type OmissionController struct {
	refreshInterval int // ticks; 0 disables forced refresh
	lastHash        uint32
	hasHash         bool
	tickCount       int
	forceNextAux    bool
	forceNextKey    bool
}

// NewOmissionController builds a controller with the given forced-refresh
// interval in ticks (the core specification's default is 30, i.e. once
// per second at 30fps).
func NewOmissionController(refreshInterval int) *OmissionController {
	if refreshInterval <= 0 {
		refreshInterval = 30
	}
	return &OmissionController{refreshInterval: refreshInterval}
}

// Decide reports whether the Auxiliary subframe must be encoded and sent
// this tick, given the raw (pre-encode) Auxiliary subframe pixels and
// whether this tick is otherwise a forced keyframe tick. It updates
// internal state as if the decision will be honored; callers must not
// call Decide more than once per tick.
func (o *OmissionController) Decide(aux frame.YuvFrame, isKeyframeTick bool) (send bool, forceAuxKeyframe bool) {
	o.tickCount++
	hash := hashAux(aux)

	changed := !o.hasHash || hash != o.lastHash
	refreshDue := o.refreshInterval > 0 && o.tickCount%o.refreshInterval == 0

	send = changed || refreshDue || isKeyframeTick || o.forceNextAux
	// Any tick that sends an Auxiliary after a tick that didn't (a
	// MainOnly->Both transition) must send a self-contained Auxiliary: the
	// client has no prior Auxiliary state to predict from. That covers
	// the keyframe tick, the forced-refresh tick, and a plain content
	// change following an omitted tick equally, plus the post-failure
	// case NotifyAuxFailure arms.
	forceAuxKeyframe = isKeyframeTick || refreshDue || changed || o.forceNextKey

	o.lastHash = hash
	o.hasHash = true
	o.forceNextAux = false
	o.forceNextKey = false

	return send, forceAuxKeyframe
}

// NotifyAuxFailure must be called when encoding the Auxiliary subframe
// fails. It is the fail-safe path: the current tick falls back to
// Main-only (LCLumaOnly), and the next Auxiliary actually sent is forced
// to be a keyframe, since the client's last-known Auxiliary state is now
// presumed stale.
func (o *OmissionController) NotifyAuxFailure() {
	o.forceNextAux = true
	o.forceNextKey = true
}

// Reset clears retained content-hash state, forcing the next Decide to
// report a change (used on reconfigure).
func (o *OmissionController) Reset() {
	o.hasHash = false
	o.tickCount = 0
	o.forceNextAux = false
	o.forceNextKey = false
}

func hashAux(y frame.YuvFrame) uint32 {
	h := crc32.NewIEEE()
	h.Write(y.Y.Data)
	h.Write(y.U.Data)
	h.Write(y.V.Data)
	return h.Sum32()
}
