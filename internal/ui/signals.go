package ui

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SignalCancelMsg is sent when a termination signal is received (SIGINT, SIGTERM)
type SignalCancelMsg struct {
	Signal os.Signal
}

// SetupSignalHandling routes SIGINT/SIGTERM to the program as a SignalCancelMsg.
// A second signal, or no clean exit within shutdownTimeout, force quits.
// Call before p.Run() since it alters the program options; close the returned
// channel once the program has exited.
func SetupSignalHandling(p *tea.Program, shutdownTimeout time.Duration) chan<- struct{} {
	if shutdownTimeout == 0 {
		shutdownTimeout = 5 * time.Second
	}
	tea.WithoutSignalHandler()(p)

	sigChan := make(chan os.Signal, 1)
	doneCh := make(chan struct{})
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			p.Send(SignalCancelMsg{Signal: sig})
		case <-doneCh:
			return
		}

		timer := time.NewTimer(shutdownTimeout)
		defer timer.Stop()

		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\nForce quitting...\n")
			os.Exit(130)
		case <-timer.C:
			fmt.Fprintf(os.Stderr, "\nTimeout pausing uploads, force quitting...\n")
			os.Exit(130)
		case <-doneCh:
		}
	}()
	return doneCh
}
