package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress indicator on a single line while a long
// operation runs. It is meant for interactive terminals only.
type Spinner struct {
	w       io.Writer
	message string
	styles  Styles

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	stopped bool
}

func newSpinner(w io.Writer, message string, styles Styles) *Spinner {
	return &Spinner{w: w, message: message, styles: styles}
}

// Start begins the animation in a background goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-stop:
			// \r plus erase-to-end clears the spinner line.
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
			frame := s.styles.Info.Render(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(s.w, "\r%s %s", frame, s.message)
			i++
		}
	}
}

// Stop halts the animation and clears the spinner line. It is safe to
// call more than once, or without a prior Start.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.stop == nil {
		s.stopped = true
		return
	}
	s.stopped = true
	close(s.stop)
	<-s.done
}

// Success stops the spinner and prints a success line in its place.
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintln(s.w, s.styles.StatusSuccess.String()+" "+message)
}

// Fail stops the spinner and prints a failure line in its place.
func (s *Spinner) Fail(message string) {
	s.Stop()
	fmt.Fprintln(s.w, s.styles.StatusFailed.String()+" "+message)
}
