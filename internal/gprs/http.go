package gprs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
)

const (
	cmdRegStatus   = "AT+CREG?"
	cmdPDPStatus   = "AT+CGACT?"
	cmdSessionEnd  = "AT+HTTPTERM"
	cmdSessionInit = "AT+HTTPINIT"
	cmdAction      = "AT+HTTPACTION=1"

	promptUpload = "DOWNLOAD"
	actionMarker = "+HTTPACTION:"
)

var actionRe = regexp.MustCompile(`\+HTTPACTION:\s*\d+,(\d+)`)

// Link is the slice of the serial link the HTTP tunnel needs.
type Link interface {
	Exec(cmd string, timeout time.Duration) atlink.CommandResult
	WaitFor(timeout time.Duration, tokens ...string) (string, string)
	Write(p []byte) error
}

// Config bounds the HTTP-over-modem exchanges.
type Config struct {
	URL        string
	APN        string
	ManualAPN  bool          // some carriers need the PDP context pushed by hand
	CmdTimeout time.Duration // per gated command
	PromptWait time.Duration // upload prompt
	AckWait    time.Duration // best-effort ack after the payload
	ActionWait time.Duration // round-trip to the remote server, longest wait in the firmware
	UploadMs   int           // input window announced with the payload length
}

// Client tunnels HTTP POSTs through the modem's command set. Session
// initialization runs once per power cycle behind the ready flag; each
// post then runs the upload/action/result sequence.
type Client struct {
	link  Link
	cfg   Config
	ready bool
}

func NewClient(link Link, cfg Config) *Client {
	if cfg.UploadMs <= 0 {
		cfg.UploadMs = 10000
	}
	return &Client{link: link, cfg: cfg}
}

// SessionReady reports whether initialization already succeeded this
// power cycle.
func (c *Client) SessionReady() bool {
	return c.ready
}

// EnsureSession brings the HTTP service up. Idempotent: once it has
// succeeded it returns true without touching the link again.
func (c *Client) EnsureSession() bool {
	if c.ready {
		return true
	}
	res := c.link.Exec(cmdRegStatus, c.cfg.CmdTimeout)
	if !Registered(res.Raw) {
		logs.LogWarn.Printf("gprs: not registered on the network: %q", res.Raw)
		return false
	}
	if c.cfg.ManualAPN {
		cmd := fmt.Sprintf("AT+CGDCONT=1,\"IP\",%q", c.cfg.APN)
		if !atlink.Ok(c.link.Exec(cmd, c.cfg.CmdTimeout)) {
			logs.LogWarn.Printf("gprs: APN %q refused", c.cfg.APN)
			return false
		}
	}
	// Diagnostic only; session init is not gated on the PDP answer.
	res = c.link.Exec(cmdPDPStatus, c.cfg.CmdTimeout)
	logs.LogBuild.Printf("gprs: PDP context: %q", res.Raw)

	// Tear down whatever an earlier cycle may have left behind.
	c.link.Exec(cmdSessionEnd, c.cfg.CmdTimeout)

	res = c.link.Exec(cmdSessionInit, c.cfg.CmdTimeout)
	switch reply := atlink.Classify(res); reply.Verdict {
	case atlink.Success:
		logs.LogInfo.Println("gprs: HTTP session up")
		c.ready = true
		return true
	case atlink.Failure:
		logs.LogWarn.Printf("gprs: HTTP init refused (code %q)", reply.Code)
	default:
		logs.LogWarn.Printf("gprs: HTTP init unexpected answer: %q", res.Raw)
	}
	return false
}

// Post uploads payload and executes the action. Always a bare boolean to
// the caller; the result classes (bad status, no server response, refused
// step) differ only in what gets logged.
func (c *Client) Post(payload []byte) bool {
	if !c.ready {
		return false
	}
	cmd := fmt.Sprintf("AT+HTTPPARA=\"URL\",%q", c.cfg.URL)
	if !atlink.Ok(c.link.Exec(cmd, c.cfg.CmdTimeout)) {
		logs.LogWarn.Printf("gprs: URL %q refused", c.cfg.URL)
		return false
	}
	if !atlink.Ok(c.link.Exec(`AT+HTTPPARA="CONTENT","application/json"`, c.cfg.CmdTimeout)) {
		logs.LogWarn.Println("gprs: content type refused")
		return false
	}

	// Announce the payload size and wait for the upload prompt. Nothing
	// has gone out yet, so a missing prompt aborts the attempt cleanly.
	announce := fmt.Sprintf("AT+HTTPDATA=%d,%d\r\n", len(payload), c.cfg.UploadMs)
	if err := c.link.Write([]byte(announce)); err != nil {
		logs.LogWarn.Printf("gprs: announce write: %s", err)
		return false
	}
	if _, token := c.link.WaitFor(c.cfg.PromptWait, promptUpload); token == "" {
		logs.LogWarn.Printf("gprs: no upload prompt within %s", c.cfg.PromptWait)
		return false
	}
	if err := c.link.Write(payload); err != nil {
		logs.LogWarn.Printf("gprs: payload write: %s", err)
		return false
	}
	// Best-effort ack; carry on either way.
	if _, token := c.link.WaitFor(c.cfg.AckWait, atlink.TokenOK); token == "" {
		logs.LogBuild.Println("gprs: no upload ack")
	}

	if !atlink.Ok(c.link.Exec(cmdAction, c.cfg.CmdTimeout)) {
		logs.LogWarn.Println("gprs: action refused")
		return false
	}

	raw, token := c.link.WaitFor(c.cfg.ActionWait, actionMarker)
	if token == "" {
		logs.LogWarn.Printf("gprs: no server response within %s", c.cfg.ActionWait)
		return false
	}
	if !strings.Contains(raw[strings.Index(raw, actionMarker):], "\n") {
		// The marker can land on a chunk boundary before the status
		// digits; give the rest of the line a moment to arrive.
		more, _ := c.link.WaitFor(2*time.Second, "\n")
		raw += more
	}
	status, ok := ActionStatus(raw)
	if !ok {
		logs.LogWarn.Printf("gprs: unreadable action result: %q", raw)
		return false
	}
	if status != 200 && status != 201 {
		logs.LogWarn.Printf("gprs: server answered %d", status)
		return false
	}
	logs.LogInfo.Printf("gprs: posted, status %d", status)
	return true
}

// Registered reports whether the registration query shows the module on
// the home network (state 1) or roaming (state 5).
func Registered(raw string) bool {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+CREG:") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "+CREG:"), ",")
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSpace(fields[1]) {
		case "1", "5":
			return true
		}
	}
	return false
}

// ActionStatus extracts the numeric status from an asynchronous action
// result line.
func ActionStatus(raw string) (int, bool) {
	m := actionRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	status, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return status, true
}
