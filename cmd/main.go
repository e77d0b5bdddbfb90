package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/dumacp/go-tracker/internal/atlink"
	"github.com/dumacp/go-tracker/internal/config"
	"github.com/dumacp/go-tracker/internal/gnss"
	"github.com/dumacp/go-tracker/internal/gprs"
	"github.com/dumacp/go-tracker/internal/modem"
	"github.com/dumacp/go-tracker/internal/pubsub"
	"github.com/dumacp/go-tracker/internal/sms"
	"github.com/dumacp/go-tracker/internal/tracker"
)

var debug bool
var logstd bool
var version bool
var confPath string
var portModem string
var baudRate int
var apnConn string
var recipient string
var urlPost string

const versionString = "1.0.2"

func init() {
	flag.BoolVar(&debug, "debug", false, "debug")
	flag.BoolVar(&logstd, "logStd", false, "logs in stderr")
	flag.BoolVar(&version, "version", false, "show version")
	flag.StringVar(&confPath, "config", "", "configuration file (YAML)")
	flag.StringVar(&portModem, "portModem", "", "device serial to conf modem.")
	flag.IntVar(&baudRate, "baudRate", 0, "baud rate of the modem link.")
	flag.StringVar(&apnConn, "apn", "", "APN net")
	flag.StringVar(&recipient, "phone", "", "SMS recipient (enables SMS)")
	flag.StringVar(&urlPost, "url", "", "endpoint for position reports (enables HTTP)")
}

func main() {

	flag.Parse()
	if version {
		fmt.Printf("version: %s\n", versionString)
		os.Exit(2)
	}
	initLogs(debug, logstd)

	cfg := config.Default()
	if len(confPath) > 0 {
		var err error
		if cfg, err = config.Load(confPath); err != nil {
			logs.LogError.Fatalln(err)
		}
	}
	if len(apnConn) <= 0 {
		if apn := os.Getenv("APN"); len(apn) > 0 {
			logs.LogInfo.Printf("new APN from ENV: %q", apn)
			apnConn = apn
		}
	}
	if len(portModem) > 0 {
		cfg.Serial.Port = portModem
	}
	if baudRate > 0 {
		cfg.Serial.Baud = baudRate
	}
	if len(apnConn) > 0 {
		cfg.HTTP.APN = apnConn
	}
	if len(recipient) > 0 {
		cfg.SMS.Recipient = recipient
		cfg.SMS.Enable = true
	}
	if len(urlPost) > 0 {
		cfg.HTTP.URL = urlPost
		cfg.HTTP.Enable = true
	}
	logs.LogBuild.Printf("portModem: %s", cfg.Serial.Port)

	port, err := atlink.OpenPort(cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		logs.LogError.Fatalf("serial error open: %s", err)
	}
	link := atlink.NewLink(port, cfg.Serial.InactivityWindow)

	wake, err := modem.OpenWake(cfg.Wake.Chip, cfg.Wake.Pin)
	if err != nil {
		logs.LogWarn.Printf("wake line unavailable: %s", err)
		wake = nil
	} else {
		defer wake.Close()
	}

	notify := func(fix gnss.Fix) {
		logs.LogInfo.Printf("fix: %s", tracker.Summary(fix))
	}
	if cfg.MQTT.Enable {
		ps := pubsub.New(cfg.MQTT.Broker)
		if err := ps.Connect(); err != nil {
			logs.LogWarn.Printf("mqtt broker: %s", err)
		} else {
			defer ps.Disconnect()
			base := notify
			notify = func(fix gnss.Fix) {
				base(fix)
				timeStamp := float64(time.Now().UnixNano()) / 1000000000
				event := []byte(fmt.Sprintf("{\"timeStamp\": %f, \"value\": %q, \"type\": %q}",
					timeStamp, tracker.Summary(fix), "GPS"))
				ps.Publish(pubsub.TopicEventGPS, event)
			}
		}
	}

	var smsFn func(body string) bool
	if cfg.SMS.Enable {
		smsCfg := sms.Config{
			Recipient:    cfg.SMS.Recipient,
			CmdTimeout:   cfg.Serial.ResponseTimeout,
			PromptSettle: cfg.SMS.PromptSettle,
			ResultWait:   cfg.SMS.ResultWait,
		}
		smsFn = func(body string) bool {
			return sms.Send(link, smsCfg, body)
		}
	}

	var poster tracker.Poster
	if cfg.HTTP.Enable {
		poster = gprs.NewClient(link, gprs.Config{
			URL:        cfg.HTTP.URL,
			APN:        cfg.HTTP.APN,
			ManualAPN:  cfg.HTTP.ManualAPN,
			CmdTimeout: cfg.Serial.ResponseTimeout,
			PromptWait: cfg.HTTP.PromptWait,
			AckWait:    cfg.HTTP.AckWait,
			ActionWait: cfg.HTTP.ActionWait,
		})
	}

	state := &tracker.State{}
	var ctrl *tracker.Controller
	m := modem.New(link, wake, modem.Config{
		PulseSettle:  cfg.Wake.Settle,
		PulseHigh:    cfg.Wake.Pulse,
		BootSettle:   cfg.Wake.BootSettle,
		ProbeTimeout: cfg.Serial.ResponseTimeout,
		ProbeDelay:   cfg.Modem.ProbeDelay,
		ProbeMax:     cfg.Modem.ProbeMax,
		Cooldown:     cfg.Modem.Cooldown,
		RepulseEvery: cfg.Modem.RepulseEvery,
	}, func() {
		ctrl.BootNotice()
	})
	ctrl = tracker.New(tracker.Config{
		PollInterval:     cfg.Track.PollInterval,
		CmdTimeout:       cfg.Serial.ResponseTimeout,
		DeviceID:         cfg.Track.DeviceID,
		SMSPeriodicEvery: cfg.SMS.PeriodicEvery,
		PostInterval:     cfg.HTTP.PostInterval,
		DistanceMinM:     cfg.Track.DistanceMinM,
		MaxSpeedKmh:      cfg.Track.MaxSpeedKmh,
	}, state, link, m, notify, smsFn, poster)

	finish := make(chan os.Signal, 1)
	signal.Notify(finish, syscall.SIGINT)
	signal.Notify(finish, syscall.SIGTERM)

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case v := <-finish:
			logs.LogError.Println(v)
			return
		case <-tick.C:
			ctrl.Tick(time.Now())
		}
	}
}
