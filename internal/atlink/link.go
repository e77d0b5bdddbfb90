package atlink

import (
	"bytes"
	"strings"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
)

const eol = "\r\n"

// CommandResult is the outcome of one command exchange. An empty Raw means
// the modem never answered within the timeout.
type CommandResult struct {
	Raw     string
	Elapsed time.Duration
}

// Link runs command transactions over the modem serial port, one at a time.
// The modem emits no deterministic terminator for every command, so the end
// of a response is inferred from silence: once at least one byte has
// arrived, a quiet gap of the inactivity window closes the exchange. The
// price is one window of extra latency per command; the gain is that
// variable-length, multi-line replies need no per-command framing rules.
type Link struct {
	port       Port
	inactivity time.Duration
}

func NewLink(port Port, inactivity time.Duration) *Link {
	if inactivity <= 0 {
		inactivity = 100 * time.Millisecond
	}
	return &Link{port: port, inactivity: inactivity}
}

// Exec writes cmd and reads the reply. Stale bytes from earlier traffic are
// discarded before the write so a late answer cannot leak into the wrong
// transaction. Retry policy belongs to the caller.
func (l *Link) Exec(cmd string, timeout time.Duration) CommandResult {
	start := time.Now()
	l.drain()
	if _, err := l.port.Write([]byte(cmd + eol)); err != nil {
		logs.LogWarn.Printf("link: write %q: %s", cmd, err)
		return CommandResult{Elapsed: time.Since(start)}
	}
	raw := l.collect(start, timeout, nil)
	logs.LogBuild.Printf("link: %q -> %q", cmd, raw)
	return CommandResult{Raw: raw, Elapsed: time.Since(start)}
}

// WaitFor reads, writing nothing, until one of tokens shows up in the
// accumulated text or the timeout expires. It returns the accumulated text
// and the token found ("" when none arrived in time).
func (l *Link) WaitFor(timeout time.Duration, tokens ...string) (string, string) {
	found := ""
	raw := l.collect(time.Now(), timeout, func(acc string) bool {
		for _, tk := range tokens {
			if strings.Contains(acc, tk) {
				found = tk
				return true
			}
		}
		return false
	})
	return raw, found
}

// Write puts raw bytes on the link with no command framing. Used for SMS
// bodies and HTTP payloads once the modem has handed the line over.
func (l *Link) Write(p []byte) error {
	_, err := l.port.Write(p)
	return err
}

func (l *Link) collect(start time.Time, timeout time.Duration, done func(string) bool) string {
	var buf bytes.Buffer
	tmp := make([]byte, 256)
	last := time.Now()
	for {
		n, _ := l.port.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
			last = time.Now()
			if done != nil && done(buf.String()) {
				break
			}
		}
		if done == nil && buf.Len() > 0 && time.Since(last) >= l.inactivity {
			break
		}
		if time.Since(start) >= timeout {
			break
		}
	}
	return buf.String()
}

// drain throws away unread bytes left over from previous traffic. One quiet
// read ends it, so an idle link costs at most one port read timeout.
func (l *Link) drain() {
	_ = l.port.Flush()
	tmp := make([]byte, 256)
	deadline := time.Now().Add(l.inactivity)
	for time.Now().Before(deadline) {
		n, _ := l.port.Read(tmp)
		if n == 0 {
			return
		}
	}
}
