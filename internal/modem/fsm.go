package modem

import (
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/looplab/fsm"
)

const (
	sUnpowered = "sUnpowered"
	sBooting   = "sBooting"
	sProbing   = "sProbing"
	sReady     = "sReady"
)

const (
	powerOnEvent   = "powerOnEvent"
	bootedEvent    = "bootedEvent"
	probeFailEvent = "probeFailEvent"
	probeOKEvent   = "probeOKEvent"
)

func initFSM() *fsm.FSM {
	f := fsm.NewFSM(
		sUnpowered,
		fsm.Events{
			{Name: powerOnEvent, Src: []string{sUnpowered}, Dst: sBooting},
			{Name: bootedEvent, Src: []string{sBooting}, Dst: sProbing},
			{Name: probeFailEvent, Src: []string{sProbing}, Dst: sProbing},
			{Name: probeOKEvent, Src: []string{sProbing}, Dst: sReady},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				logs.LogBuild.Printf("FSM MODEM state Src: %v, state Dst: %v", e.Src, e.Dst)
			},
			"before_event": func(e *fsm.Event) {
				if e.Err != nil {
					e.Cancel(e.Err)
				}
			},
		},
	)
	return f
}
