package tracker

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
	"github.com/dumacp/go-tracker/internal/gnss"
)

func TestMain(m *testing.M) {
	logs.LogInfo = logs.New(os.Stderr, "", 0)
	logs.LogWarn = logs.New(os.Stderr, "", 0)
	logs.LogError = logs.New(os.Stderr, "", 0)
	logs.LogBuild = logs.New(os.Stderr, "", 0)
	os.Exit(m.Run())
}

const validFixRaw = "\r\n+CGPSINFO: 1015.471638,N,07536.099610,W,120522,144135.0,1538.4,0.5,171.3\r\n\r\nOK\r\n"
const noFixRaw = "\r\n+CGPSINFO: ,,,,,,,,\r\n\r\nOK\r\n"

type fakeLink struct {
	fixRaws []string
	satRaws []string
	execs   int
}

func (f *fakeLink) Exec(cmd string, _ time.Duration) atlink.CommandResult {
	f.execs++
	pop := func(q *[]string) string {
		if len(*q) == 0 {
			return ""
		}
		raw := (*q)[0]
		*q = (*q)[1:]
		return raw
	}
	switch cmd {
	case cmdPosition:
		return atlink.CommandResult{Raw: pop(&f.fixRaws)}
	case cmdSatellites:
		return atlink.CommandResult{Raw: pop(&f.satRaws)}
	}
	return atlink.CommandResult{}
}

type readyModem struct{ ticks int }

func (m *readyModem) Ready() bool        { return true }
func (m *readyModem) Tick(now time.Time) { m.ticks++ }

type coldModem struct{ ticks int }

func (m *coldModem) Ready() bool        { return false }
func (m *coldModem) Tick(now time.Time) { m.ticks++ }

type fakePoster struct {
	sessionOK bool
	postOK    bool
	posts     []string
	ensures   int
}

func (p *fakePoster) EnsureSession() bool { p.ensures++; return p.sessionOK }
func (p *fakePoster) Post(b []byte) bool {
	if !p.postOK {
		return false
	}
	p.posts = append(p.posts, string(b))
	return true
}

type recorder struct {
	fixes []gnss.Fix
	sms   []string
}

func (r *recorder) notify(fix gnss.Fix) { r.fixes = append(r.fixes, fix) }
func (r *recorder) send(body string) bool {
	r.sms = append(r.sms, body)
	return true
}

func testConfig() Config {
	return Config{
		PollInterval:     1 * time.Second,
		CmdTimeout:       100 * time.Millisecond,
		DeviceID:         "unit-1",
		SMSPeriodicEvery: 5,
		PostInterval:     1 * time.Minute,
	}
}

func repeat(raw string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = raw
	}
	return out
}

func countPrefix(bodies []string, prefix string) int {
	n := 0
	for _, b := range bodies {
		if strings.HasPrefix(b, prefix) {
			n++
		}
	}
	return n
}

func TestTick_DrivesLifecycleUntilReady(t *testing.T) {
	link := &fakeLink{}
	m := &coldModem{}
	rec := &recorder{}
	c := New(testConfig(), &State{}, link, m, rec.notify, rec.send, nil)

	now := time.Unix(5000, 0)
	c.Tick(now)
	c.Tick(now.Add(1 * time.Second))
	if m.ticks != 2 {
		t.Fatalf("lifecycle ticks=%d want 2", m.ticks)
	}
	if link.execs != 0 {
		t.Fatal("polled for fixes before the modem was ready")
	}
}

func TestTick_SelfThrottles(t *testing.T) {
	link := &fakeLink{fixRaws: repeat(validFixRaw, 10)}
	rec := &recorder{}
	c := New(testConfig(), &State{}, link, &readyModem{}, rec.notify, rec.send, nil)

	now := time.Unix(5000, 0)
	c.Tick(now)
	c.Tick(now)
	c.Tick(now.Add(100 * time.Millisecond))
	if link.execs != 1 {
		t.Fatalf("execs=%d want one poll inside the interval", link.execs)
	}
	c.Tick(now.Add(1 * time.Second))
	if link.execs != 2 {
		t.Fatalf("execs=%d want second poll after the interval", link.execs)
	}
}

func TestTick_FirstFixNotifiedExactlyOnce(t *testing.T) {
	link := &fakeLink{fixRaws: repeat(validFixRaw, 5)}
	rec := &recorder{}
	state := &State{}
	c := New(testConfig(), state, link, &readyModem{}, rec.notify, rec.send, nil)

	now := time.Unix(5000, 0)
	for i := 0; i < 5; i++ {
		c.Tick(now.Add(time.Duration(i) * time.Second))
	}
	if state.FixCount != 5 {
		t.Fatalf("FixCount=%d want 5", state.FixCount)
	}
	if len(rec.fixes) != 5 {
		t.Fatalf("notified %d fixes want 5", len(rec.fixes))
	}
	if n := countPrefix(rec.sms, "first fix:"); n != 1 {
		t.Fatalf("first-fix fired %d times want 1", n)
	}
	if !state.FirstFixNotified {
		t.Fatal("flag not latched")
	}
	if strings.HasPrefix(rec.sms[len(rec.sms)-1], "first fix:") && len(rec.sms) > 1 {
		t.Fatal("first-fix was not the first notification")
	}
}

func TestTick_PeriodicSMSEveryNthFix(t *testing.T) {
	link := &fakeLink{fixRaws: repeat(validFixRaw, 12)}
	rec := &recorder{}
	c := New(testConfig(), &State{}, link, &readyModem{}, rec.notify, rec.send, nil)

	now := time.Unix(5000, 0)
	for i := 0; i < 12; i++ {
		c.Tick(now.Add(time.Duration(i) * time.Second))
	}
	if n := countPrefix(rec.sms, "fix 5:"); n != 1 {
		t.Fatalf("fix-5 notification count=%d", n)
	}
	if n := countPrefix(rec.sms, "fix 10:"); n != 1 {
		t.Fatalf("fix-10 notification count=%d", n)
	}
	for _, b := range rec.sms {
		if strings.HasPrefix(b, "fix ") &&
			!strings.HasPrefix(b, "fix 5:") && !strings.HasPrefix(b, "fix 10:") {
			t.Fatalf("unexpected periodic notification %q", b)
		}
	}
}

func TestTick_FirstSatelliteNotification(t *testing.T) {
	link := &fakeLink{
		fixRaws: repeat(noFixRaw, 4),
		satRaws: []string{
			"",                                     // silent modem: -1
			"\r\n+CGNSSINFO: ,,,,,\r\n\r\nOK\r\n",  // scanning: 0
			"\r\n+CGNSSINFO: 2,7,01,00,4\r\nOK\r\n", // first positive count
			"\r\n+CGNSSINFO: 2,8,01,00,4\r\nOK\r\n",
		},
	}
	rec := &recorder{}
	state := &State{}
	c := New(testConfig(), state, link, &readyModem{}, rec.notify, rec.send, nil)

	now := time.Unix(5000, 0)
	c.Tick(now)
	c.Tick(now.Add(1 * time.Second))
	if state.FirstSatNotified {
		t.Fatal("fired on -1 or 0")
	}
	c.Tick(now.Add(2 * time.Second))
	if !state.FirstSatNotified {
		t.Fatal("not fired on the first positive count")
	}
	c.Tick(now.Add(3 * time.Second))
	if n := countPrefix(rec.sms, "satellites visible:"); n != 1 {
		t.Fatalf("satellite notification count=%d want 1", n)
	}
	if len(rec.fixes) != 0 {
		t.Fatal("invalid fixes must never reach the notifier")
	}
}

func TestTick_PeriodicPostAndSkipOnFailure(t *testing.T) {
	link := &fakeLink{fixRaws: repeat(validFixRaw, 6)}
	rec := &recorder{}
	poster := &fakePoster{sessionOK: false, postOK: true}
	state := &State{}
	cfg := testConfig()
	cfg.PostInterval = 2 * time.Second
	c := New(cfg, state, link, &readyModem{}, rec.notify, rec.send, poster)

	now := time.Unix(5000, 0)
	c.Tick(now) // session down: post skipped, tick not
	if poster.ensures != 1 || len(poster.posts) != 0 {
		t.Fatalf("ensures=%d posts=%d", poster.ensures, len(poster.posts))
	}
	if state.FixCount != 1 {
		t.Fatal("tick skipped along with the post")
	}

	poster.sessionOK = true
	c.Tick(now.Add(1 * time.Second)) // retried on the next tick
	if len(poster.posts) != 1 {
		t.Fatalf("posts=%d want 1", len(poster.posts))
	}
	if !strings.Contains(poster.posts[0], `"device_id":"unit-1"`) {
		t.Fatalf("payload=%q", poster.posts[0])
	}

	c.Tick(now.Add(2 * time.Second)) // inside the post interval
	if len(poster.posts) != 1 {
		t.Fatal("posted inside the interval")
	}
	c.Tick(now.Add(3 * time.Second)) // interval elapsed
	if len(poster.posts) != 2 {
		t.Fatalf("posts=%d want 2", len(poster.posts))
	}
}

func TestTick_MovementGateDefersPost(t *testing.T) {
	link := &fakeLink{fixRaws: repeat(validFixRaw, 3)}
	rec := &recorder{}
	poster := &fakePoster{sessionOK: true, postOK: true}
	cfg := testConfig()
	cfg.PostInterval = 1 * time.Second
	cfg.DistanceMinM = 50
	c := New(cfg, &State{}, link, &readyModem{}, rec.notify, rec.send, poster)

	now := time.Unix(5000, 0)
	c.Tick(now)
	if len(poster.posts) != 1 {
		t.Fatalf("posts=%d want first post ungated", len(poster.posts))
	}
	c.Tick(now.Add(2 * time.Second))
	c.Tick(now.Add(4 * time.Second))
	if len(poster.posts) != 1 {
		t.Fatalf("posts=%d want stationary unit deferred", len(poster.posts))
	}
}

func TestTick_BootNoticeOnce(t *testing.T) {
	rec := &recorder{}
	state := &State{}
	c := New(testConfig(), state, &fakeLink{}, &readyModem{}, rec.notify, rec.send, nil)

	c.BootNotice()
	c.BootNotice()
	if n := countPrefix(rec.sms, "tracker unit-1 online"); n != 1 {
		t.Fatalf("boot notice count=%d want 1", n)
	}
	if !state.BootNotified {
		t.Fatal("flag not latched")
	}
}
