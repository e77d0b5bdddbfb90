package sms

import (
	"fmt"
	"strings"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
)

const (
	cmdTextMode  = "AT+CMGF=1"
	sentToken    = "+CMGS:"
	cmdSendToFmt = "AT+CMGS=%q"
)

// Link is the slice of the serial link the SMS exchange needs.
type Link interface {
	Exec(cmd string, timeout time.Duration) atlink.CommandResult
	WaitFor(timeout time.Duration, tokens ...string) (string, string)
	Write(p []byte) error
}

// Config bounds each step of the message submission.
type Config struct {
	Recipient    string
	CmdTimeout   time.Duration // text-mode set and send command
	PromptSettle time.Duration // fallback when the input prompt never shows
	ResultWait   time.Duration // bounded wait for the submit outcome
}

// Send pushes one text message through the modem. Steps short-circuit on
// failure and the reasons land in the logs; callers get a bare boolean and
// retry whole from the top on the next occasion.
func Send(l Link, cfg Config, body string) bool {
	res := l.Exec(cmdTextMode, cfg.CmdTimeout)
	if reply := atlink.Classify(res); reply.Verdict != atlink.Success {
		logs.LogWarn.Printf("sms: text mode refused (%s): %q", reply.Verdict, res.Raw)
		return false
	}

	res = l.Exec(fmt.Sprintf(cmdSendToFmt, cfg.Recipient), cfg.CmdTimeout)
	if !strings.Contains(res.Raw, atlink.Prompt) {
		// The module is expected to raise its input prompt; if it did not
		// show within the window, give it the legacy settle delay and try
		// the body anyway.
		logs.LogWarn.Printf("sms: no input prompt within %s, falling back to settle delay", cfg.CmdTimeout)
		time.Sleep(cfg.PromptSettle)
	}

	if err := l.Write([]byte(body)); err != nil {
		logs.LogWarn.Printf("sms: body write: %s", err)
		return false
	}
	if err := l.Write([]byte(atlink.CtrlZ)); err != nil {
		logs.LogWarn.Printf("sms: submit write: %s", err)
		return false
	}

	raw, token := l.WaitFor(cfg.ResultWait, sentToken, atlink.TokenCMSError, atlink.TokenError)
	switch token {
	case sentToken:
		logs.LogInfo.Printf("sms: sent to %s", cfg.Recipient)
		return true
	case "":
		logs.LogWarn.Printf("sms: no submit outcome within %s", cfg.ResultWait)
	default:
		logs.LogWarn.Printf("sms: submit rejected: %q", raw)
	}
	return false
}
