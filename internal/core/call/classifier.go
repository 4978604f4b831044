package call

import "strings"

// Outcome categorizes a provider termination reason. It drives notification
// selection only, never state transitions.
type Outcome string

const (
	OutcomeSuccessful    Outcome = "successful"
	OutcomeUserInitiated Outcome = "user-initiated"
	OutcomeError         Outcome = "error"
	OutcomeUnknown       Outcome = "unknown"
)

// successfulReasons are graceful completions, matched exactly. The OpenAI
// voice pipeline failure code is included because the provider still ends
// those calls cleanly.
var successfulReasons = map[string]struct{}{
	"assistant-ended":                    {},
	"assistant-ended-call":               {},
	"function-call":                      {},
	"pipeline-error-openai-voice-failed": {},
	"silence-timeout":                    {},
	"max-duration-timeout":               {},
	"assistant-request-ended":            {},
	"workflow-completed":                 {},
}

// userInitiatedReasons are matched exactly and produce no notification.
var userInitiatedReasons = map[string]struct{}{
	"customer-ended-call": {},
	"customer-hung-up":    {},
	"user-hung-up":        {},
	"user-ended":          {},
	"hangup":              {},
}

// errorReasons are matched as substrings; providers append detail suffixes
// to several of these codes.
var errorReasons = []string{
	"call-start-error",
	"assistant-not-found",
	"assistant-not-invalid",
	"assistant-request-failed",
	"assistant-request-returned-error",
	"assistant-request-returned-unspeakable-error",
	"assistant-request-returned-invalid-assistant",
	"assistant-request-returned-no-assistant",
	"assistant-request-returned-forwarding-phone-number",
	"assistant-request-returned-error-phone-number",
	"pipeline-error",
	"pipeline-no-available-model",
	"call-start-error-neither-assistant-nor-server-set",
	"vonage-disconnected",
	"vonage-failed-to-connect-call",
	"twilio-failed-to-connect-call",
	"twilio-reported-customer-misdialed",
	"phone-call-provider-bypass-enabled-but-no-call-received",
	"exceeded-max-duration",
	"sip-gateway-failed-to-connect",
	"error",
}

// Classify maps a provider termination reason to an outcome category.
// Successful and user-initiated reasons match exactly; error reasons match
// when the reason contains any known failure code (or the literal "error").
func Classify(endedReason string) Outcome {
	if _, ok := successfulReasons[endedReason]; ok {
		return OutcomeSuccessful
	}
	if _, ok := userInitiatedReasons[endedReason]; ok {
		return OutcomeUserInitiated
	}
	for _, reason := range errorReasons {
		if strings.Contains(endedReason, reason) {
			return OutcomeError
		}
	}
	return OutcomeUnknown
}
