package modem

import (
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
	"github.com/looplab/fsm"
)

const (
	cmdProbe     = "AT"
	cmdGNSSPower = "AT+CGPS=1"
)

// Commander is the command side of the serial link the lifecycle needs.
type Commander interface {
	Exec(cmd string, timeout time.Duration) atlink.CommandResult
}

// Config bounds the wake pulse and the liveness probing.
type Config struct {
	PulseSettle  time.Duration // low hold before the wake pulse
	PulseHigh    time.Duration // wake line high hold, ~1.5s on this module
	BootSettle   time.Duration // wait after the pulse before probing
	ProbeTimeout time.Duration
	ProbeDelay   time.Duration // between failed attempts
	ProbeMax     int           // attempts before backing off
	Cooldown     time.Duration // back-off after ProbeMax failures
	RepulseEvery int           // re-issue the wake pulse every Nth failure, 0 disables
}

// Modem walks the module from unpowered to answering its serial link:
// one wake pulse, then bounded liveness probing with a hard back-off so a
// dead module is never hammered in a tight loop. Reaching ready is
// terminal; only an external reset powers the module down again.
type Modem struct {
	link      Commander
	wake      WakeLine
	cfg       Config
	fsm       *fsm.FSM
	attempts  int
	failures  int
	nextProbe time.Time
	bootReady time.Time
	onReady   func()
}

// New builds a Modem. onReady runs exactly once, on the transition into
// the ready state, after GNSS activation has been attempted.
func New(link Commander, wake WakeLine, cfg Config, onReady func()) *Modem {
	if cfg.ProbeMax <= 0 {
		cfg.ProbeMax = 10
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	return &Modem{
		link:    link,
		wake:    wake,
		cfg:     cfg,
		fsm:     initFSM(),
		onReady: onReady,
	}
}

// Ready reports whether the module has answered a liveness probe.
func (m *Modem) Ready() bool {
	return m.fsm.Current() == sReady
}

// Tick advances the lifecycle by at most one step. While probing it
// performs at most one probe attempt per call, or returns immediately if
// the inter-attempt delay has not elapsed, so the caller's scheduling loop
// is never blocked on a silent modem.
func (m *Modem) Tick(now time.Time) {
	switch m.fsm.Current() {
	case sUnpowered:
		m.pulse()
		m.bootReady = now.Add(m.cfg.BootSettle)
		m.fsm.Event(powerOnEvent)
	case sBooting:
		if now.Before(m.bootReady) {
			return
		}
		m.attempts = 1
		m.fsm.Event(bootedEvent)
	case sProbing:
		if now.Before(m.nextProbe) {
			return
		}
		m.probe(now)
	}
}

func (m *Modem) probe(now time.Time) {
	res := m.link.Exec(cmdProbe, m.cfg.ProbeTimeout)
	if atlink.Ok(res) {
		logs.LogInfo.Printf("modem: alive after %d attempt(s)", m.attempts)
		m.fsm.Event(probeOKEvent)
		m.activateGNSS()
		if m.onReady != nil {
			m.onReady()
		}
		return
	}
	m.failures++
	logs.LogWarn.Printf("modem: probe %d/%d no answer", m.attempts, m.cfg.ProbeMax)
	if m.cfg.RepulseEvery > 0 && m.failures%m.cfg.RepulseEvery == 0 {
		// A module that silently failed to boot only recovers with
		// another wake pulse.
		logs.LogWarn.Println("modem: re-issuing wake pulse")
		m.pulse()
	}
	if m.attempts >= m.cfg.ProbeMax {
		m.attempts = 1
		m.nextProbe = now.Add(m.cfg.Cooldown)
	} else {
		m.attempts++
		m.nextProbe = now.Add(m.cfg.ProbeDelay)
	}
	m.fsm.Event(probeFailEvent)
}

// activateGNSS powers the positioning subsystem. Best effort: a refusal is
// logged and position polling carries on, which retries implicitly.
func (m *Modem) activateGNSS() {
	res := m.link.Exec(cmdGNSSPower, m.cfg.ProbeTimeout)
	if reply := atlink.Classify(res); reply.Verdict != atlink.Success {
		logs.LogWarn.Printf("modem: GNSS power-on %s: %q", reply.Verdict, res.Raw)
	}
}

func (m *Modem) pulse() {
	if m.wake == nil {
		return
	}
	if err := m.wake.Set(0); err != nil {
		logs.LogError.Printf("modem: wake line: %s", err)
		return
	}
	time.Sleep(m.cfg.PulseSettle)
	if err := m.wake.Set(1); err != nil {
		logs.LogError.Printf("modem: wake line: %s", err)
		return
	}
	time.Sleep(m.cfg.PulseHigh)
	if err := m.wake.Set(0); err != nil {
		logs.LogError.Printf("modem: wake line: %s", err)
	}
}
