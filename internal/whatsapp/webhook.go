package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// InboundMessage is one decoded Twilio WhatsApp webhook delivery.
type InboundMessage struct {
	MessageSid       string
	AccountSid       string
	From             string
	To               string
	Body             string
	ProfileName      string
	NumMedia         string
	MediaURL         string
	MediaContentType string
}

// HasMedia reports whether the delivery carries at least one attachment.
func (m *InboundMessage) HasMedia() bool {
	return m.NumMedia != "" && m.NumMedia != "0" && m.MediaURL != ""
}

// ParseWebhook decodes the form-encoded payload Twilio posts for inbound
// WhatsApp messages.
func ParseWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("whatsapp: failed to parse webhook form: %w", err)
	}
	return &InboundMessage{
		MessageSid:       r.FormValue("MessageSid"),
		AccountSid:       r.FormValue("AccountSid"),
		From:             r.FormValue("From"),
		To:               r.FormValue("To"),
		Body:             r.FormValue("Body"),
		ProfileName:      r.FormValue("ProfileName"),
		NumMedia:         r.FormValue("NumMedia"),
		MediaURL:         r.FormValue("MediaUrl0"),
		MediaContentType: r.FormValue("MediaContentType0"),
	}, nil
}

// ValidateSignature checks the X-Twilio-Signature header against the auth
// token. webhookURL must be the absolute URL Twilio was configured with.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func buildSignaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// BuildAbsoluteURL reconstructs the public URL of the request, honoring
// forwarding headers set by the load balancer.
func BuildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
