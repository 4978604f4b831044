package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		endedReason string
		expected    Outcome
	}{
		{"assistant ended", "assistant-ended", OutcomeSuccessful},
		{"assistant ended call", "assistant-ended-call", OutcomeSuccessful},
		{"function call", "function-call", OutcomeSuccessful},
		{"openai voice pipeline failure still ends cleanly", "pipeline-error-openai-voice-failed", OutcomeSuccessful},
		{"silence timeout", "silence-timeout", OutcomeSuccessful},
		{"max duration timeout", "max-duration-timeout", OutcomeSuccessful},
		{"workflow completed", "workflow-completed", OutcomeSuccessful},

		{"customer ended call", "customer-ended-call", OutcomeUserInitiated},
		{"customer hung up", "customer-hung-up", OutcomeUserInitiated},
		{"user hung up", "user-hung-up", OutcomeUserInitiated},
		{"user ended", "user-ended", OutcomeUserInitiated},
		{"hangup", "hangup", OutcomeUserInitiated},

		{"pipeline error", "pipeline-error", OutcomeError},
		{"pipeline error with detail suffix", "pipeline-error-deepgram-transcriber-failed", OutcomeError},
		{"sip gateway failure", "sip-gateway-failed-to-connect", OutcomeError},
		{"twilio connect failure", "twilio-failed-to-connect-call", OutcomeError},
		{"literal error substring", "unexpected-error-occurred", OutcomeError},
		{"assistant not found", "assistant-not-found", OutcomeError},
		{"exceeded max duration", "exceeded-max-duration", OutcomeError},

		{"empty reason", "", OutcomeUnknown},
		{"unrecognized reason", "something-else-entirely", OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.endedReason))
		})
	}
}

func TestClassifyExactMatchBeatsSubstring(t *testing.T) {
	// The openai voice code contains "pipeline-error" and "error" but the
	// exact successful match must win.
	assert.Equal(t, OutcomeSuccessful, Classify("pipeline-error-openai-voice-failed"))

	// A suffix variation of the same code is no longer exact and falls
	// through to the substring scan.
	assert.Equal(t, OutcomeError, Classify("pipeline-error-openai-voice-failed-again"))
}
