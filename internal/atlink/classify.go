package atlink

import "strings"

// Final result tokens and control bytes of the modem command protocol.
const (
	TokenOK       = "OK"
	TokenError    = "ERROR"
	TokenCMEError = "+CME ERROR:"
	TokenCMSError = "+CMS ERROR:"
	Prompt        = "> "
	CtrlZ         = "\x1a"
)

// Verdict classifies one command exchange.
type Verdict int

const (
	// Timeout: zero bytes arrived within the window.
	Timeout Verdict = iota
	// Success: a final OK line was present.
	Success
	// Failure: the modem explicitly rejected the command.
	Failure
	// Unrecognized: the modem answered, but with no known final line.
	Unrecognized
)

func (v Verdict) String() string {
	switch v {
	case Timeout:
		return "timeout"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Unrecognized:
		return "unrecognized"
	}
	return "unknown"
}

// Reply is the classified view of a CommandResult. Code carries the text
// after a +CME/+CMS ERROR: line when the modem reported one.
type Reply struct {
	Verdict Verdict
	Code    string
	Raw     string
}

// Classify inspects a raw exchange line by line. Matching whole trimmed
// lines keeps result tokens inside echoed command text from producing
// false positives.
func Classify(res CommandResult) Reply {
	if len(strings.TrimSpace(res.Raw)) == 0 {
		return Reply{Verdict: Timeout, Raw: res.Raw}
	}
	reply := Reply{Verdict: Unrecognized, Raw: res.Raw}
	for _, line := range strings.Split(res.Raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == TokenOK:
			reply.Verdict = Success
			return reply
		case line == TokenError:
			reply.Verdict = Failure
			return reply
		case strings.HasPrefix(line, TokenCMEError):
			reply.Verdict = Failure
			reply.Code = strings.TrimSpace(strings.TrimPrefix(line, TokenCMEError))
			return reply
		case strings.HasPrefix(line, TokenCMSError):
			reply.Verdict = Failure
			reply.Code = strings.TrimSpace(strings.TrimPrefix(line, TokenCMSError))
			return reply
		}
	}
	return reply
}

// Ok reports whether the exchange ended in a final OK.
func Ok(res CommandResult) bool {
	return Classify(res).Verdict == Success
}
