// Package proctor turns raw client sensor readings into typed violations.
package proctor

import (
	"strings"
	"time"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

// SensorKind tags a sensor variant.
type SensorKind string

const (
	SensorFocus      SensorKind = "focus"
	SensorFullscreen SensorKind = "fullscreen"
	SensorClipboard  SensorKind = "clipboard"
	SensorFace       SensorKind = "face"
)

// Raw event names sent by the client.
const (
	EventVisibilityHidden  = "visibility_hidden"
	EventVisibilityVisible = "visibility_visible"
	EventBlur              = "blur"
	EventFocus             = "focus"
	EventFullscreenExit    = "fullscreen_exit"
	EventFullscreenEnter   = "fullscreen_enter"
	EventCopy              = "copy"
	EventCut               = "cut"
	EventPaste             = "paste"
	EventContextMenu       = "contextmenu"
	EventKeyDown           = "keydown"
	EventFrame             = "frame"
)

// RawEvent is one opaque client sensor reading.
type RawEvent struct {
	Sensor      SensorKind `json:"sensor"`
	Name        string     `json:"name"`
	At          time.Time  `json:"at"`
	Key         string     `json:"key,omitempty"`
	Ctrl        bool       `json:"ctrl,omitempty"`
	Meta        bool       `json:"meta,omitempty"`
	Alt         bool       `json:"alt,omitempty"`
	Shift       bool       `json:"shift,omitempty"`
	FacePresent *bool      `json:"face_present,omitempty"`
}

// Sink receives violations produced by a sensor.
type Sink func(models.Violation)

// Sensor is one independently enableable violation producer. Sensors are
// driven from the session event loop and are not safe for concurrent use.
type Sensor interface {
	Kind() SensorKind
	Subscribe(sink Sink)
	Unsubscribe()
	Observe(ev RawEvent)
}

type emitter struct {
	sink Sink
}

func (e *emitter) Subscribe(sink Sink) { e.sink = sink }

func (e *emitter) subscribed() bool { return e.sink != nil }

func (e *emitter) emit(t models.ViolationType, at time.Time, meta map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink(models.Violation{Type: t, Timestamp: at, Metadata: meta})
}

// FocusSensor reports tab switches and window blur. Blurs shorter than the
// threshold are ignored.
type FocusSensor struct {
	emitter
	threshold time.Duration
	blurredAt time.Time
	hidden    bool
}

func NewFocusSensor(threshold time.Duration) *FocusSensor {
	return &FocusSensor{threshold: threshold}
}

func (s *FocusSensor) Kind() SensorKind { return SensorFocus }

func (s *FocusSensor) Unsubscribe() {
	s.sink = nil
	s.blurredAt = time.Time{}
	s.hidden = false
}

func (s *FocusSensor) Observe(ev RawEvent) {
	if !s.subscribed() {
		return
	}
	switch ev.Name {
	case EventVisibilityHidden:
		s.hidden = true
		s.emit(models.ViolationTabSwitch, ev.At, map[string]any{"source": "visibility"})
	case EventVisibilityVisible:
		s.hidden = false
	case EventBlur:
		if s.blurredAt.IsZero() {
			s.blurredAt = ev.At
		}
	case EventFocus:
		if s.blurredAt.IsZero() {
			return
		}
		away := ev.At.Sub(s.blurredAt)
		s.blurredAt = time.Time{}
		if s.hidden || away < s.threshold {
			return
		}
		s.emit(models.ViolationWindowBlur, ev.At, map[string]any{"away_ms": away.Milliseconds()})
	}
}

// FullscreenSensor reports leaving fullscreen.
type FullscreenSensor struct {
	emitter
}

func NewFullscreenSensor() *FullscreenSensor { return &FullscreenSensor{} }

func (s *FullscreenSensor) Kind() SensorKind { return SensorFullscreen }

func (s *FullscreenSensor) Unsubscribe() { s.sink = nil }

func (s *FullscreenSensor) Observe(ev RawEvent) {
	if ev.Name == EventFullscreenExit {
		s.emit(models.ViolationFullscreenExit, ev.At, nil)
	}
}

// ClipboardSensor reports clipboard use, the context menu and blocked shortcuts.
type ClipboardSensor struct {
	emitter
}

func NewClipboardSensor() *ClipboardSensor { return &ClipboardSensor{} }

func (s *ClipboardSensor) Kind() SensorKind { return SensorClipboard }

func (s *ClipboardSensor) Unsubscribe() { s.sink = nil }

func (s *ClipboardSensor) Observe(ev RawEvent) {
	switch ev.Name {
	case EventCopy, EventCut, EventPaste:
		s.emit(models.ViolationCopyPaste, ev.At, map[string]any{"action": ev.Name})
	case EventContextMenu:
		s.emit(models.ViolationRightClick, ev.At, nil)
	case EventKeyDown:
		if combo, blocked := blockedShortcut(ev); blocked {
			s.emit(models.ViolationKeyboardShortcut, ev.At, map[string]any{"combo": combo})
		}
	}
}

var blockedWithModifier = map[string]bool{
	"c": true, "v": true, "x": true, "a": true, "p": true, "s": true, "u": true,
}

func blockedShortcut(ev RawEvent) (string, bool) {
	key := strings.ToLower(ev.Key)
	switch {
	case key == "f12":
		return "F12", true
	case ev.Alt && key == "tab":
		return "Alt+Tab", true
	case (ev.Ctrl || ev.Meta) && ev.Shift && (key == "i" || key == "j" || key == "c"):
		return "DevTools", true
	case (ev.Ctrl || ev.Meta) && blockedWithModifier[key]:
		mod := "Ctrl"
		if ev.Meta {
			mod = "Meta"
		}
		return mod + "+" + strings.ToUpper(key), true
	}
	return "", false
}

// FaceSensor samples video frames. A streak of consecutive misses emits one
// face_away and resets the streak.
type FaceSensor struct {
	emitter
	streakLimit int
	misses      int
}

func NewFaceSensor(streakLimit int) *FaceSensor {
	if streakLimit <= 0 {
		streakLimit = 3
	}
	return &FaceSensor{streakLimit: streakLimit}
}

func (s *FaceSensor) Kind() SensorKind { return SensorFace }

func (s *FaceSensor) Unsubscribe() {
	s.sink = nil
	s.misses = 0
}

func (s *FaceSensor) Observe(ev RawEvent) {
	if ev.Name != EventFrame || ev.FacePresent == nil || !s.subscribed() {
		return
	}
	if *ev.FacePresent {
		s.misses = 0
		return
	}
	s.misses++
	if s.misses >= s.streakLimit {
		s.misses = 0
		s.emit(models.ViolationFaceAway, ev.At, map[string]any{"consecutive_misses": s.streakLimit})
	}
}
