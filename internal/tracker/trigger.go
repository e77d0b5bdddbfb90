package tracker

import (
	"fmt"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
	"github.com/dumacp/go-tracker/internal/gnss"
)

const (
	cmdPosition   = "AT+CGPSINFO"
	cmdSatellites = "AT+CGNSSINFO"
)

// Link is the command side of the serial link the controller polls on.
type Link interface {
	Exec(cmd string, timeout time.Duration) atlink.CommandResult
}

// Lifecycle is the modem state machine the controller drives until it
// reports ready.
type Lifecycle interface {
	Ready() bool
	Tick(now time.Time)
}

// Poster is the HTTP tunnel for periodic position reports.
type Poster interface {
	EnsureSession() bool
	Post(payload []byte) bool
}

// Notifier receives every valid fix. It is the integration point for
// arbitrary transports; the firmware only guarantees the fix it hands
// over is valid.
type Notifier func(gnss.Fix)

// State holds the counters and one-time flags of a power cycle. Each
// one-time flag goes false to true at most once and is never cleared
// while the process lives.
type State struct {
	BootNotified     bool
	FirstSatNotified bool
	FirstFixNotified bool
	FixCount         int
	PollCount        int
	LastPoll         time.Time
	LastPost         time.Time
}

// Config sets the poll and notification cadence.
type Config struct {
	PollInterval     time.Duration
	CmdTimeout       time.Duration
	DeviceID         string
	SMSPeriodicEvery int           // fire a position SMS every Nth fix, 0 disables
	PostInterval     time.Duration // wall-clock cadence of HTTP posts
	DistanceMinM     float64       // minimum movement before a periodic post, 0 disables
	MaxSpeedKmh      float64       // drop fixes implying faster movement, 0 disables
}

// Controller decides, from accumulated fix and boot state, when to fire
// the SMS and HTTP side effects. It owns the poll cadence: Tick may be
// called as often as the outer loop likes, work happens once per poll
// interval against the monotonic clock.
type Controller struct {
	cfg    Config
	state  *State
	link   Link
	modem  Lifecycle
	notify Notifier
	sms    func(body string) bool // nil when the feature is off
	poster Poster                 // nil when the feature is off

	lastDelivered gnss.Fix
	hasDelivered  bool
	lastPosted    gnss.Fix
	hasPosted     bool
}

func New(cfg Config, state *State, link Link, modem Lifecycle, notify Notifier,
	sms func(body string) bool, poster Poster) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Controller{
		cfg:    cfg,
		state:  state,
		link:   link,
		modem:  modem,
		notify: notify,
		sms:    sms,
		poster: poster,
	}
}

// BootNotice fires the one-time power-on notification. Wired as the
// lifecycle's ready callback.
func (c *Controller) BootNotice() {
	if c.state.BootNotified {
		return
	}
	c.state.BootNotified = true
	logs.LogInfo.Println("tracker: module ready")
	c.send(fmt.Sprintf("tracker %s online", c.cfg.DeviceID))
}

// Tick runs one scheduling step: lifecycle work until the modem is ready,
// then at most one position poll per poll interval.
func (c *Controller) Tick(now time.Time) {
	if !c.modem.Ready() {
		c.modem.Tick(now)
		return
	}
	if !c.state.LastPoll.IsZero() && now.Sub(c.state.LastPoll) < c.cfg.PollInterval {
		return
	}
	c.state.LastPoll = now
	c.state.PollCount++

	res := c.link.Exec(cmdPosition, c.cfg.CmdTimeout)
	fix := gnss.ParseFix(res.Raw)
	if !fix.Valid {
		c.checkSatellites()
		return
	}
	c.state.FixCount++

	if c.cfg.MaxSpeedKmh > 0 && c.hasDelivered &&
		!Plausible(c.lastDelivered, fix, c.cfg.MaxSpeedKmh) {
		logs.LogWarn.Printf("tracker: implausible jump dropped: %s", Summary(fix))
		return
	}

	if !c.state.FirstFixNotified {
		c.state.FirstFixNotified = true
		logs.LogInfo.Printf("tracker: first fix: %s", Summary(fix))
		c.send("first fix: " + Summary(fix))
	}

	if c.notify != nil {
		c.notify(fix)
	}
	c.lastDelivered = fix
	c.hasDelivered = true

	if c.cfg.SMSPeriodicEvery > 0 && c.state.FixCount%c.cfg.SMSPeriodicEvery == 0 {
		c.send(fmt.Sprintf("fix %d: %s", c.state.FixCount, Summary(fix)))
	}

	c.maybePost(now, fix)
}

func (c *Controller) checkSatellites() {
	res := c.link.Exec(cmdSatellites, c.cfg.CmdTimeout)
	n := gnss.ParseSatCount(res.Raw)
	logs.LogBuild.Printf("tracker: no fix, satellites=%d", n)
	if n > 0 && !c.state.FirstSatNotified {
		c.state.FirstSatNotified = true
		c.send(fmt.Sprintf("satellites visible: %d", n))
	}
}

// maybePost runs the periodic HTTP report. A failed session or post skips
// the report, never the tick; the next qualifying tick retries from the
// top of the sub-protocol.
func (c *Controller) maybePost(now time.Time, fix gnss.Fix) {
	if c.poster == nil {
		return
	}
	if !c.state.LastPost.IsZero() && now.Sub(c.state.LastPost) < c.cfg.PostInterval {
		return
	}
	if c.cfg.DistanceMinM > 0 && c.hasPosted &&
		!Moved(c.lastPosted, fix, c.cfg.DistanceMinM) {
		logs.LogBuild.Println("tracker: below movement threshold, post deferred")
		return
	}
	if !c.poster.EnsureSession() {
		return
	}
	if !c.poster.Post(NewReport(c.cfg.DeviceID, fix, now).JSON()) {
		return
	}
	c.state.LastPost = now
	c.lastPosted = fix
	c.hasPosted = true
}

func (c *Controller) send(body string) {
	if c.sms == nil {
		return
	}
	if !c.sms(body) {
		logs.LogWarn.Printf("tracker: sms %q not sent", body)
	}
}
