// Package lifecycle coordinates one idempotent shutdown across every
// termination trigger the host environment can deliver.
package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
)

// Trigger is one source of termination notifications. Wait's channel
// delivers a human-readable reason once; the trigger is then spent.
type Trigger interface {
	Wait() <-chan string
	Stop()
}

// Signals returns a trigger fired by SIGINT/SIGTERM.
func Signals() Trigger {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	t := &signalTrigger{
		sigCh: sigCh,
		ch:    make(chan string, 1),
	}
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		t.ch <- "signal " + sig.String()
	}()
	return t
}

type signalTrigger struct {
	sigCh chan os.Signal
	ch    chan string
}

func (t *signalTrigger) Wait() <-chan string { return t.ch }

func (t *signalTrigger) Stop() {
	signal.Stop(t.sigCh)
	close(t.sigCh)
}
