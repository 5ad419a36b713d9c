package presence

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultMinInterval is how long an identical payload is suppressed after a
// successful delivery.
const DefaultMinInterval = 15 * time.Second

// WebhookSink POSTs presence transitions to an HTTP endpoint. Deliveries go
// through a retrying client; payloads identical to the last delivered one are
// suppressed inside the minimum-interval window.
type WebhookSink struct {
	URL         string
	MinInterval time.Duration
	Log         Logger

	client *retryablehttp.Client

	mu       sync.Mutex
	lastBody string
	lastSent time.Time
}

type webhookPayload struct {
	State    string `json:"state"`
	Channel  string `json:"channel,omitempty"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewWebhookSink builds a sink delivering to url.
func NewWebhookSink(url string, log Logger) *WebhookSink {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	return &WebhookSink{
		URL:         url,
		MinInterval: DefaultMinInterval,
		Log:         log,
		client:      client,
	}
}

func (s *WebhookSink) ShowActive(channel, title, category, url string) {
	s.deliver(webhookPayload{
		State:    "online",
		Channel:  channel,
		Title:    title,
		Category: category,
		URL:      url,
	})
}

func (s *WebhookSink) ShowOffline(message string) {
	s.deliver(webhookPayload{State: "offline", Message: message})
}

// Clear forgets the de-duplication state so the next update always delivers.
func (s *WebhookSink) Clear() {
	s.mu.Lock()
	s.lastBody = ""
	s.lastSent = time.Time{}
	s.mu.Unlock()
}

func (s *WebhookSink) minInterval() time.Duration {
	if s.MinInterval <= 0 {
		return DefaultMinInterval
	}
	return s.MinInterval
}

func (s *WebhookSink) deliver(p webhookPayload) {
	if s.URL == "" {
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		return
	}

	s.mu.Lock()
	if string(body) == s.lastBody && time.Since(s.lastSent) < s.minInterval() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	req, err := retryablehttp.NewRequest(http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if s.Log != nil {
			s.Log.Warnf("webhook delivery failed: %v", err)
		}
		return
	}
	resp.Body.Close()

	s.mu.Lock()
	s.lastBody = string(body)
	s.lastSent = time.Now()
	s.mu.Unlock()
}
