package models

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType names an integrity signal.
type ViolationType string

const (
	ViolationTabSwitch        ViolationType = "tab_switch"
	ViolationWindowBlur       ViolationType = "window_blur"
	ViolationFullscreenExit   ViolationType = "fullscreen_exit"
	ViolationCopyPaste        ViolationType = "copy_paste"
	ViolationRightClick       ViolationType = "right_click"
	ViolationKeyboardShortcut ViolationType = "keyboard_shortcut"
	ViolationFaceAway         ViolationType = "face_away"
	ViolationVoiceDetected    ViolationType = "voice_detected"
)

// Describe returns the candidate-facing wording of a violation type.
func (t ViolationType) Describe() string {
	switch t {
	case ViolationTabSwitch:
		return "Switching tabs is not allowed"
	case ViolationWindowBlur:
		return "Leaving the test window is not allowed"
	case ViolationFullscreenExit:
		return "Exiting fullscreen is not allowed"
	case ViolationCopyPaste:
		return "Copy and paste is disabled"
	case ViolationRightClick:
		return "Right click is disabled"
	case ViolationKeyboardShortcut:
		return "Keyboard shortcuts are disabled"
	case ViolationFaceAway:
		return "Your face is not visible to the camera"
	case ViolationVoiceDetected:
		return "Talking during the test is not allowed"
	}
	return "Suspicious activity detected"
}

// Violation is an append-only integrity event.
type Violation struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"session_id"`
	RoundIndex int            `json:"round_index"`
	Type       ViolationType  `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WarningState is derived from the violations of the current round.
type WarningState struct {
	Count      int           `json:"count"`
	LastType   ViolationType `json:"last_type,omitempty"`
	Terminated bool          `json:"terminated"`
}
