// Package presence renders live/offline state into downstream indicators.
package presence

// Sink is the indicator a monitor drives. Implementations are expected to
// suppress redundant updates internally; the monitor's change detection is a
// coarser first-line filter, not a substitute.
type Sink interface {
	// ShowActive renders an online presence for a live channel.
	ShowActive(channel, title, category, url string)
	// ShowOffline renders an idle presence with an optional message.
	ShowOffline(message string)
	// Clear resets the indicator and any internal de-duplication state.
	Clear()
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) ShowActive(string, string, string, string) {}
func (NopSink) ShowOffline(string)                        {}
func (NopSink) Clear()                                    {}

// Logger matches the logrus surface the sinks log through.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// LogSink writes presence transitions to a logger. Useful as the default
// indicator for headless runs.
type LogSink struct {
	Log Logger
}

func (s *LogSink) ShowActive(channel, title, category, url string) {
	if s.Log == nil {
		return
	}
	if category != "" {
		s.Log.Infof("%s is live: %s (%s) %s", channel, title, category, url)
		return
	}
	s.Log.Infof("%s is live: %s %s", channel, title, url)
}

func (s *LogSink) ShowOffline(message string) {
	if s.Log == nil {
		return
	}
	if message == "" {
		message = "offline"
	}
	s.Log.Infof("presence: %s", message)
}

func (s *LogSink) Clear() {}
