// Package signals turns OS signals into the single shutdown broadcast
// the rest of the run reacts to.
package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// Watched is every signal that triggers a shutdown broadcast.
var Watched = []os.Signal{
	syscall.SIGALRM,
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGPIPE,
}

// Notify returns a channel that is closed exactly once, the first time
// any watched signal arrives. Closing (rather than sending a value) is
// what lets an arbitrary number of goroutines select on the same
// channel and all observe the shutdown simultaneously.
func Notify() (shutdown <-chan struct{}, stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, Watched...)

	done := make(chan struct{})
	go func() {
		<-sigCh
		close(done)
	}()

	return done, func() { signal.Stop(sigCh) }
}
