package session

import "strings"

const blankAudioToken = "[BLANK_AUDIO]"

// CleanTranscript trims engine output and maps whisper's blank-audio marker
// to the empty string.
func CleanTranscript(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, blankAudioToken) {
		return ""
	}
	return trimmed
}

func NoSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}
