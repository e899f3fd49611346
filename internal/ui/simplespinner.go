package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// SimpleSpinner animates a one-line status outside of Bubbletea, for short
// blocking calls such as login or session creation
type SimpleSpinner struct {
	message string
	out     io.Writer
	animate bool
	frames  []string
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewSimpleSpinner writes to stdout and animates only when stdout is a terminal
func NewSimpleSpinner(message string) *SimpleSpinner {
	return NewSimpleSpinnerTo(os.Stdout, message, isatty.IsTerminal(os.Stdout.Fd()))
}

// NewSimpleSpinnerTo writes to out; with animate false it stays silent
func NewSimpleSpinnerTo(out io.Writer, message string, animate bool) *SimpleSpinner {
	return &SimpleSpinner{
		message: message,
		out:     out,
		animate: animate,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation
func (s *SimpleSpinner) Start() {
	if !s.animate {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.stop:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.message)
			}
		}
	}()
}

// Stop clears the line and waits for the animation to end. Safe to call twice.
func (s *SimpleSpinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
