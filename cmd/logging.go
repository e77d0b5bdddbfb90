package main

import (
	"log"
	"log/syslog"

	"github.com/dumacp/go-logs/pkg/logs"
)

func newLog(logger *logs.Logger, flags int, priority int) error {

	logg, err := syslog.NewLogger(syslog.Priority(priority), flags)
	if err != nil {
		return err
	}
	logger.SetLogError(logg)
	return nil
}

func initLogs(debug, logStd bool) {
	defer func() {
		if !debug {
			logs.LogBuild.Disable()
		}
	}()
	if logStd {
		return
	}
	newLog(logs.LogError, log.LstdFlags, 3)
	newLog(logs.LogWarn, log.LstdFlags, 4)
	newLog(logs.LogInfo, log.LstdFlags, 6)
	newLog(logs.LogBuild, log.LstdFlags, 7)
}
