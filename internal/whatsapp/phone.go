package whatsapp

import "strings"

// NormalizeE164 strips the channel prefix and formatting noise, returning a
// bare +DDI number. Empty input stays empty.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "whatsapp:")
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChannelAddress renders a number in the whatsapp:+55... form Twilio expects.
func ChannelAddress(e164 string) string {
	if strings.HasPrefix(e164, "whatsapp:") {
		return e164
	}
	return "whatsapp:" + e164
}
