// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides the D-Bus control surface of a calibration session.
package dbus

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/calibrator"
	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/input"
	"github.com/shini4i/hdr-calibrator/internal/pq"
)

// ErrRateLimitExceeded is returned when target change requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidStep is returned when an invalid step value is provided.
var ErrInvalidStep = errors.New("step must be between 1 and 10000")

// ErrInvalidNits is returned for luminance values that are not finite numbers.
var ErrInvalidNits = errors.New("nits must be a finite number")

// ErrQueueFull is returned when requests arrive faster than frames consume them.
var ErrQueueFull = errors.New("request queue is full")

// ErrNoMetadata is returned when no mastering metadata has been submitted yet.
var ErrNoMetadata = errors.New("no mastering metadata submitted")

const (
	// rateLimitPerSecond is the maximum number of target changes per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for target changes.
	rateLimitBurst = 5

	// maxPending bounds the number of queued requests between two frames.
	maxPending = 64
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.shini4i.HdrCalibrator"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/shini4i/HdrCalibrator"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.shini4i.HdrCalibrator"
)

// Signal names emitted on InterfaceName.
const (
	SignalTargetNitsChanged = "TargetNitsChanged"
	SignalHDRStateChanged   = "HDRStateChanged"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="GetStatus">
      <arg name="status" type="(sdub)" direction="out"/>
    </method>
    <method name="GetTargetNits">
      <arg name="nits" type="d" direction="out"/>
    </method>
    <method name="SetTargetNits">
      <arg name="nits" type="d" direction="in"/>
    </method>
    <method name="IncreaseTargetNits">
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="DecreaseTargetNits">
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="GetTargetPercent">
      <arg name="percent" type="u" direction="out"/>
    </method>
    <method name="SetTargetPercent">
      <arg name="percent" type="u" direction="in"/>
    </method>
    <method name="GetMetadata">
      <arg name="metadata" type="(qqqqqqqquuqq)" direction="out"/>
    </method>
    <method name="EncodePQ">
      <arg name="nits" type="d" direction="in"/>
      <arg name="code" type="d" direction="out"/>
    </method>
    <method name="DecodePQ">
      <arg name="code" type="d" direction="in"/>
      <arg name="nits" type="d" direction="out"/>
    </method>
    <signal name="` + SignalTargetNitsChanged + `">
      <arg name="nits" type="d"/>
    </signal>
    <signal name="` + SignalHDRStateChanged + `">
      <arg name="state" type="s"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// StatusInfo is the session status returned via D-Bus.
// Serializes to D-Bus type (sdub).
type StatusInfo struct {
	State      string
	TargetNits float64
	Percent    uint32
	InSync     bool
}

// MetadataInfo is the last submitted HDR10 mastering metadata returned via D-Bus.
// Chromaticities are in 1/50000 units, mastering luminance in 1/10000 nit.
// Serializes to D-Bus type (qqqqqqqquuqq).
type MetadataInfo struct {
	RedX, RedY                uint16
	GreenX, GreenY            uint16
	BlueX, BlueY              uint16
	WhiteX, WhiteY            uint16
	MaxMasteringLuminance     uint32
	MinMasteringLuminance     uint32
	MaxContentLightLevel      uint16
	MaxFrameAverageLightLevel uint16
}

// NewMetadataInfo flattens m into its D-Bus representation.
func NewMetadataInfo(m hdr.MasteringMetadata) MetadataInfo {
	return MetadataInfo{
		RedX:                      m.RedPrimary[0],
		RedY:                      m.RedPrimary[1],
		GreenX:                    m.GreenPrimary[0],
		GreenY:                    m.GreenPrimary[1],
		BlueX:                     m.BluePrimary[0],
		BlueY:                     m.BluePrimary[1],
		WhiteX:                    m.WhitePoint[0],
		WhiteY:                    m.WhitePoint[1],
		MaxMasteringLuminance:     m.MaxMasteringLuminance,
		MinMasteringLuminance:     m.MinMasteringLuminance,
		MaxContentLightLevel:      m.MaxContentLightLevel,
		MaxFrameAverageLightLevel: m.MaxFrameAverageLightLevel,
	}
}

// signal is a pending D-Bus signal emission.
type signal struct {
	name string
	body []interface{}
}

// Server implements the D-Bus service for a calibration session.
//
// The server never touches the calibration state directly. Mutating
// methods queue input events that the frame loop drains through Poll,
// and the frame loop reports back through Observe.
//
// Thread safety:
//   - The connMu mutex protects the D-Bus connection field for signal emission.
//   - The mu mutex protects the request queue and the last status.
//   - IncreaseTargetNits and DecreaseTargetNits are relative and commute, so
//     concurrent calls are never lost.
type Server struct {
	conn        *dbus.Conn
	connMu      sync.RWMutex // Protects conn field only
	rateLimiter *rate.Limiter

	mu        sync.Mutex
	pending   []input.Event
	status    calibrator.Status
	hasStatus bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithRateLimit overrides the rate limit applied to mutating methods.
func WithRateLimit(limit rate.Limit, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimiter = rate.NewLimiter(limit, burst)
	}
}

// NewServer creates a new D-Bus server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	if err := conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Poll drains the queued requests. It implements calibrator.Source.
func (s *Server) Poll() []input.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.pending
	s.pending = nil
	return events
}

// Observe records the latest session status and emits change signals.
// It implements calibrator.Observer.
func (s *Server) Observe(status calibrator.Status) {
	s.mu.Lock()
	var prev *calibrator.Status
	if s.hasStatus {
		last := s.status
		prev = &last
	}
	s.status = status
	s.hasStatus = true
	s.mu.Unlock()

	for _, sig := range statusSignals(prev, status) {
		s.emit(sig)
	}
}

// statusSignals returns the signals announcing the difference between prev and next.
// A nil prev announces everything.
func statusSignals(prev *calibrator.Status, next calibrator.Status) []signal {
	var signals []signal
	if prev == nil || prev.TargetNits != next.TargetNits {
		signals = append(signals, signal{name: SignalTargetNitsChanged, body: []interface{}{next.TargetNits}})
	}
	if prev == nil || prev.State != next.State {
		signals = append(signals, signal{name: SignalHDRStateChanged, body: []interface{}{next.State.String()}})
	}
	return signals
}

// snapshot returns the last observed status.
func (s *Server) snapshot() (calibrator.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.hasStatus
}

// enqueue rate limits and queues a request for the next frame.
func (s *Server) enqueue(method string, event input.Event) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Str("method", method).Msg("Rate limit exceeded")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= maxPending {
		log.Warn().Str("method", method).Int("pending", len(s.pending)).Msg("Request queue full")
		return dbus.MakeFailedError(ErrQueueFull)
	}
	s.pending = append(s.pending, event)

	log.Debug().Str("method", method).Stringer("event", event).Msg("Queued target change")
	return nil
}

// GetStatus returns the HDR state, target, target percentage and sync state
// as of the last frame.
func (s *Server) GetStatus() (StatusInfo, *dbus.Error) {
	status, ok := s.snapshot()
	if !ok {
		return StatusInfo{State: hdr.StateUninitialized.String()}, nil
	}
	return StatusInfo{
		State:      status.State.String(),
		TargetNits: status.TargetNits,
		Percent:    uint32(brightness.NitsToPercent(status.TargetNits)),
		InSync:     status.InSync,
	}, nil
}

// GetTargetNits returns the target peak brightness as of the last frame.
// Requests still queued are not reflected.
func (s *Server) GetTargetNits() (float64, *dbus.Error) {
	status, _ := s.snapshot()
	return status.TargetNits, nil
}

// SetTargetNits requests an absolute target. Values outside the target
// range are clamped when applied.
func (s *Server) SetTargetNits(nits float64) *dbus.Error {
	if math.IsNaN(nits) || math.IsInf(nits, 0) {
		return dbus.MakeFailedError(ErrInvalidNits)
	}
	return s.enqueue("SetTargetNits", input.Set(nits))
}

// IncreaseTargetNits requests a relative increase of the target by step nits.
// The step parameter must be between 1 and 10000.
func (s *Server) IncreaseTargetNits(step uint32) *dbus.Error {
	if !validStep(step) {
		return dbus.MakeFailedError(ErrInvalidStep)
	}
	return s.enqueue("IncreaseTargetNits", input.Increase(float64(step)))
}

// DecreaseTargetNits requests a relative decrease of the target by step nits.
// The step parameter must be between 1 and 10000.
func (s *Server) DecreaseTargetNits(step uint32) *dbus.Error {
	if !validStep(step) {
		return dbus.MakeFailedError(ErrInvalidStep)
	}
	return s.enqueue("DecreaseTargetNits", input.Decrease(float64(step)))
}

func validStep(step uint32) bool {
	return step > 0 && step <= brightness.MaxTargetNits
}

// GetTargetPercent returns the target as a percentage (0-100) of the target range.
func (s *Server) GetTargetPercent() (uint32, *dbus.Error) {
	status, ok := s.snapshot()
	if !ok {
		return 0, nil
	}
	return uint32(brightness.NitsToPercent(status.TargetNits)), nil
}

// SetTargetPercent requests a target given as a percentage (0-100) of the target range.
func (s *Server) SetTargetPercent(percent uint32) *dbus.Error {
	if percent > 100 {
		percent = 100
	}
	// #nosec G115 -- percent is clamped to 0-100, safe for uint8
	return s.enqueue("SetTargetPercent", input.Set(brightness.PercentToNits(uint8(percent))))
}

// GetMetadata returns the last successfully submitted mastering metadata.
func (s *Server) GetMetadata() (MetadataInfo, *dbus.Error) {
	status, _ := s.snapshot()
	if !status.HasMetadata {
		return MetadataInfo{}, dbus.MakeFailedError(ErrNoMetadata)
	}
	return NewMetadataInfo(status.Metadata), nil
}

// EncodePQ returns the ST.2084 code value for nits.
func (s *Server) EncodePQ(nits float64) (float64, *dbus.Error) {
	return pq.EncodeToPQ(nits), nil
}

// DecodePQ returns the luminance in nits for an ST.2084 code value.
func (s *Server) DecodePQ(code float64) (float64, *dbus.Error) {
	return pq.DecodeFromPQ(code), nil
}

// emit sends sig on the bus, if connected.
func (s *Server) emit(sig signal) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.Emit(ObjectPath, InterfaceName+"."+sig.name, sig.body...); err != nil {
		log.Error().Err(err).Str("signal", sig.name).Msg("Failed to emit signal")
	}
}
