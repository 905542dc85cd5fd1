package daemon

import (
	"sync"
	"time"

	"github.com/criyle/go-guestfsd/protocol"
	"golang.org/x/time/rate"
)

// Default progress timing
const (
	DefaultProgressDelay  = 2 * time.Second
	DefaultProgressPeriod = 333 * time.Millisecond
)

type progress struct {
	proc   int32
	serial uint32
	start  time.Time
	delay  time.Duration
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	limiter *rate.Limiter
	count   int
}

func newProgress(h protocol.Header, start time.Time, now func() time.Time, delay, period time.Duration) *progress {
	return &progress{
		proc:    h.Proc,
		serial:  h.Serial,
		start:   start,
		delay:   delay,
		period:  period,
		now:     now,
		limiter: rate.NewLimiter(rate.Every(period), 1),
	}
}

// allow applies the rate limit and counts the notification if it passes
func (p *progress) allow(position, total uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count > 0 && position == total {
		p.count++
		return true
	}
	now := p.now()
	if now.Sub(p.start) < p.delay {
		return false
	}
	if !p.limiter.AllowN(now, 1) {
		return false
	}
	p.count++
	return true
}

// sent counts a notification sent outside the rate limit
func (p *progress) sent() {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
}

func (p *progress) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *progress) frame(position, total uint64) []byte {
	return protocol.ProgressFrame(protocol.Progress{
		Proc:     p.proc,
		Serial:   p.serial,
		Position: position,
		Total:    total,
	})
}

// NotifyProgress reports position of total done. Notifications are rate
// limited, the caller may call it as often as it likes. Position is clamped
// to total.
func (c *Call) NotifyProgress(position, total uint64) {
	if position > total {
		c.log.Warnf("progress position %d beyond total %d", position, total)
		position = total
	}
	if !c.progress.allow(position, total) {
		return
	}
	// a write failure is sticky on the conn and ends the loop after the call
	c.conn.write(c.progress.frame(position, total), "write progress")
}
