package daemon

import (
	"sync"
	"time"
)

// Pulse sends liveness notifications while the call is blocked, e.g. in a
// subprocess that reports no progress of its own
type Pulse struct {
	conn     *Conn
	progress *progress
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartPulse starts sending position 0 of 1 notifications, first after the
// progress delay and then every period, until End or Cancel
func (c *Call) StartPulse() *Pulse {
	p := &Pulse{
		conn:     c.conn,
		progress: c.progress,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	// encoded once, the goroutine only gets the connection and the counter
	frame := c.progress.frame(0, 1)
	go p.run(p.conn, p.progress, frame, c.progress.delay, c.progress.period)
	return p
}

func (p *Pulse) run(conn *Conn, prog *progress, frame []byte, delay, period time.Duration) {
	defer close(p.done)

	t := time.NewTimer(delay)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
		}
		if conn.write(frame, "write pulse") != nil {
			return
		}
		prog.sent()
		t.Reset(period)
	}
}

// Cancel stops the notifications without a terminal one, used when the
// call failed
func (p *Pulse) Cancel() {
	p.once.Do(func() {
		close(p.stop)
	})
	<-p.done
}

// End stops the notifications and sends the terminal position 1 of 1
func (p *Pulse) End() {
	p.Cancel()
	p.progress.sent()
	p.conn.write(p.progress.frame(1, 1), "write progress")
}
