package proctor

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	got []models.Violation
}

func (c *collector) sink(v models.Violation) { c.got = append(c.got, v) }

func (c *collector) types() []models.ViolationType {
	out := make([]models.ViolationType, len(c.got))
	for i, v := range c.got {
		out[i] = v.Type
	}
	return out
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func TestFocusSensor(t *testing.T) {
	tests := []struct {
		name   string
		events []RawEvent
		want   []models.ViolationType
	}{
		{
			name:   "tab switch on hidden",
			events: []RawEvent{{Name: EventVisibilityHidden, At: t0}},
			want:   []models.ViolationType{models.ViolationTabSwitch},
		},
		{
			name: "short blur ignored",
			events: []RawEvent{
				{Name: EventBlur, At: t0},
				{Name: EventFocus, At: t0.Add(50 * time.Millisecond)},
			},
			want: nil,
		},
		{
			name: "long blur reported",
			events: []RawEvent{
				{Name: EventBlur, At: t0},
				{Name: EventFocus, At: t0.Add(2 * time.Second)},
			},
			want: []models.ViolationType{models.ViolationWindowBlur},
		},
		{
			name: "blur while hidden counted once as tab switch",
			events: []RawEvent{
				{Name: EventBlur, At: t0},
				{Name: EventVisibilityHidden, At: t0.Add(10 * time.Millisecond)},
				{Name: EventFocus, At: t0.Add(5 * time.Second)},
				{Name: EventVisibilityVisible, At: t0.Add(5 * time.Second)},
			},
			want: []models.ViolationType{models.ViolationTabSwitch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			s := NewFocusSensor(100 * time.Millisecond)
			s.Subscribe(c.sink)
			for _, ev := range tt.events {
				s.Observe(ev)
			}
			assert.Equal(t, tt.want, c.types())
		})
	}
}

func TestClipboardSensor(t *testing.T) {
	c := &collector{}
	s := NewClipboardSensor()
	s.Subscribe(c.sink)

	s.Observe(RawEvent{Name: EventPaste, At: t0})
	s.Observe(RawEvent{Name: EventContextMenu, At: t0})
	s.Observe(RawEvent{Name: EventKeyDown, Key: "v", Ctrl: true, At: t0})
	s.Observe(RawEvent{Name: EventKeyDown, Key: "Tab", Alt: true, At: t0})
	s.Observe(RawEvent{Name: EventKeyDown, Key: "F12", At: t0})
	s.Observe(RawEvent{Name: EventKeyDown, Key: "b", Ctrl: true, At: t0})
	s.Observe(RawEvent{Name: EventKeyDown, Key: "v", At: t0})

	assert.Equal(t, []models.ViolationType{
		models.ViolationCopyPaste,
		models.ViolationRightClick,
		models.ViolationKeyboardShortcut,
		models.ViolationKeyboardShortcut,
		models.ViolationKeyboardShortcut,
	}, c.types())
	assert.Equal(t, "paste", c.got[0].Metadata["action"])
	assert.Equal(t, "Ctrl+V", c.got[2].Metadata["combo"])
}

func TestFaceSensor_StreakFiresOnceThenResets(t *testing.T) {
	c := &collector{}
	s := NewFaceSensor(3)
	s.Subscribe(c.sink)

	frame := func(present bool) { s.Observe(RawEvent{Name: EventFrame, At: t0, FacePresent: boolPtr(present)}) }

	frame(false)
	frame(false)
	assert.Empty(t, c.got)
	frame(false)
	require.Len(t, c.got, 1)
	assert.Equal(t, models.ViolationFaceAway, c.got[0].Type)

	// sustained absence needs a full new streak
	frame(false)
	frame(false)
	assert.Len(t, c.got, 1)
	frame(true)
	frame(false)
	frame(false)
	assert.Len(t, c.got, 1)
	frame(false)
	assert.Len(t, c.got, 2)
}

func TestFaceSensor_UnsubscribeResetsStreak(t *testing.T) {
	c := &collector{}
	s := NewFaceSensor(2)
	s.Subscribe(c.sink)
	s.Observe(RawEvent{Name: EventFrame, FacePresent: boolPtr(false)})
	s.Unsubscribe()
	s.Subscribe(c.sink)
	s.Observe(RawEvent{Name: EventFrame, FacePresent: boolPtr(false)})
	assert.Empty(t, c.got)
}

func TestDetector_DebouncesSameType(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	d := NewDetector(clock, DefaultConfig())
	c := &collector{}
	d.Arm(c.sink)

	d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit, At: t0})
	d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit, At: t0.Add(300 * time.Millisecond)})
	d.Observe(RawEvent{Sensor: SensorClipboard, Name: EventCopy, At: t0.Add(400 * time.Millisecond)})
	d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit, At: t0.Add(1500 * time.Millisecond)})

	assert.Equal(t, []models.ViolationType{
		models.ViolationFullscreenExit,
		models.ViolationCopyPaste,
		models.ViolationFullscreenExit,
	}, c.types())
}

func TestDetector_DisarmedDropsEverything(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	d := NewDetector(clock, DefaultConfig())
	c := &collector{}

	assert.False(t, d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit}))

	d.Arm(c.sink)
	assert.True(t, d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit}))
	d.Disarm()
	assert.False(t, d.Observe(RawEvent{Sensor: SensorFullscreen, Name: EventFullscreenExit}))
	assert.False(t, d.Report(models.Violation{Type: models.ViolationVoiceDetected}))

	require.Len(t, c.got, 1)
	assert.Equal(t, t0, c.got[0].Timestamp, "missing timestamps are stamped from the clock")
}

func TestDetector_DisabledSensor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clipboard = false
	d := NewDetector(clockwork.NewFakeClockAt(t0), cfg)
	c := &collector{}
	d.Arm(c.sink)

	assert.False(t, d.Enabled(SensorClipboard))
	assert.False(t, d.Observe(RawEvent{Sensor: SensorClipboard, Name: EventCopy}))
	assert.Empty(t, c.got)
}

func TestDetector_ReportGoesThroughDebounce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	d := NewDetector(clock, DefaultConfig())
	c := &collector{}
	d.Arm(c.sink)

	assert.True(t, d.Report(models.Violation{Type: models.ViolationVoiceDetected}))
	assert.True(t, d.Report(models.Violation{Type: models.ViolationVoiceDetected}))
	clock.Advance(2 * time.Second)
	assert.True(t, d.Report(models.Violation{Type: models.ViolationVoiceDetected}))

	assert.Len(t, c.got, 2)
}
