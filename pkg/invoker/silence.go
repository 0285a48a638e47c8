package invoker

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	sinkOnce sync.Once
	sink     *os.File
	sinkErr  error
)

func discard() (*os.File, error) {
	sinkOnce.Do(func() {
		sink, sinkErr = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	})
	return sink, sinkErr
}

// Guard holds the output streams that were in place before Silence.
// Release puts them back; it is safe to call more than once.
type Guard struct {
	stdout *os.File
	stderr *os.File
	logOut io.Writer
	once   sync.Once
}

// Silence points os.Stdout, os.Stderr and the standard logger at a discard
// sink until the returned guard is released. Callers defer Release.
func Silence() (*Guard, error) {
	null, err := discard()
	if err != nil {
		return nil, fmt.Errorf("open discard sink: %w", err)
	}
	g := &Guard{stdout: os.Stdout, stderr: os.Stderr, logOut: log.Writer()}
	os.Stdout = null
	os.Stderr = null
	log.SetOutput(io.Discard)
	return g, nil
}

// Release restores the original streams exactly once.
func (g *Guard) Release() {
	g.once.Do(func() {
		os.Stdout = g.stdout
		os.Stderr = g.stderr
		log.SetOutput(g.logOut)
	})
}
