package proctor

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Config selects the enabled sensors and their tuning.
type Config struct {
	Focus         bool          `yaml:"focus"`
	Fullscreen    bool          `yaml:"fullscreen"`
	Clipboard     bool          `yaml:"clipboard"`
	Face          bool          `yaml:"face"`
	BlurThreshold time.Duration `yaml:"blur_threshold"`
	MinSpacing    time.Duration `yaml:"min_spacing"`
	FaceStreak    int           `yaml:"face_streak"`
}

func DefaultConfig() Config {
	return Config{
		Focus:         true,
		Fullscreen:    true,
		Clipboard:     true,
		Face:          true,
		BlurThreshold: 100 * time.Millisecond,
		MinSpacing:    time.Second,
		FaceStreak:    3,
	}
}

// Detector arms a set of sensors for the active round and debounces what
// they emit into logical violations.
type Detector struct {
	clock   clockwork.Clock
	cfg     Config
	sensors map[SensorKind]Sensor

	armed bool
	sink  Sink
	last  map[models.ViolationType]time.Time
}

func NewDetector(clock clockwork.Clock, cfg Config) *Detector {
	d := &Detector{
		clock:   clock,
		cfg:     cfg,
		sensors: make(map[SensorKind]Sensor),
		last:    make(map[models.ViolationType]time.Time),
	}
	if cfg.Focus {
		d.sensors[SensorFocus] = NewFocusSensor(cfg.BlurThreshold)
	}
	if cfg.Fullscreen {
		d.sensors[SensorFullscreen] = NewFullscreenSensor()
	}
	if cfg.Clipboard {
		d.sensors[SensorClipboard] = NewClipboardSensor()
	}
	if cfg.Face {
		d.sensors[SensorFace] = NewFaceSensor(cfg.FaceStreak)
	}
	return d
}

// Arm subscribes every enabled sensor; violations go to sink.
func (d *Detector) Arm(sink Sink) {
	d.sink = sink
	d.armed = true
	d.last = make(map[models.ViolationType]time.Time)
	for _, s := range d.sensors {
		s.Subscribe(d.emit)
	}
}

// Disarm unsubscribes every sensor. Readings observed afterwards are dropped.
func (d *Detector) Disarm() {
	if !d.armed {
		return
	}
	d.armed = false
	d.sink = nil
	for _, s := range d.sensors {
		s.Unsubscribe()
	}
}

func (d *Detector) Armed() bool { return d.armed }

// Enabled reports whether the sensor of kind is configured.
func (d *Detector) Enabled(kind SensorKind) bool {
	_, ok := d.sensors[kind]
	return ok
}

// Observe routes a raw reading to its sensor. It returns false when the
// reading was dropped because the detector is disarmed or the sensor disabled.
func (d *Detector) Observe(ev RawEvent) bool {
	if !d.armed {
		return false
	}
	s, ok := d.sensors[ev.Sensor]
	if !ok {
		return false
	}
	if ev.At.IsZero() {
		ev.At = d.clock.Now()
	}
	s.Observe(ev)
	return true
}

// Report feeds a violation detected outside the sensor set (server-side audio analysis).
func (d *Detector) Report(v models.Violation) bool {
	if !d.armed {
		return false
	}
	d.emit(v)
	return true
}

func (d *Detector) emit(v models.Violation) {
	if !d.armed || d.sink == nil {
		return
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = d.clock.Now()
	}
	if prev, ok := d.last[v.Type]; ok && v.Timestamp.Sub(prev) < d.cfg.MinSpacing {
		log.Debug().Str("type", string(v.Type)).Msg("debounced violation")
		return
	}
	d.last[v.Type] = v.Timestamp
	d.sink(v)
}
