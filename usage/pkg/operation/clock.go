package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/thinkparq/fsstrata/common/units"
	"golang.org/x/sys/unix"
)

// Clock abstracts the host clock so Sleep and SetClock can run in tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
	Set(t time.Time) error
}

// SystemClock sleeps for real and sets the host clock with settimeofday(2), which requires
// CAP_SYS_TIME.
type SystemClock struct{}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (SystemClock) Set(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("settimeofday: %w", err)
	}
	return nil
}

// FakeClock records sleeps and clock changes instead of performing them.
type FakeClock struct {
	Now   time.Time
	Slept time.Duration
}

func (c *FakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.Slept += d
	c.Now = c.Now.Add(d)
	return nil
}

func (c *FakeClock) Set(t time.Time) error {
	c.Now = t
	return nil
}

// Sleep pauses the simulation to create temporal separation between operations.
type Sleep struct {
	duration time.Duration
}

func NewSleep(d time.Duration) (*Sleep, error) {
	if d < 0 {
		return nil, fmt.Errorf("sleep duration must not be negative (got %s)", d)
	}
	return &Sleep{duration: d}, nil
}

func (*Sleep) sealed()                   {}
func (*Sleep) Command() Command          { return SleepCommand }
func (*Sleep) Target() string            { return "" }
func (s *Sleep) Duration() time.Duration { return s.duration }

func (s *Sleep) Execute(ctx context.Context, env *Env) error {
	return env.Clock.Sleep(ctx, s.duration)
}

func (s *Sleep) AsDict() map[string]any {
	return map[string]any{"command": string(SleepCommand), "duration": s.duration.Seconds()}
}

func (s *Sleep) PlaybookLine() string {
	return fmt.Sprintf("%s %ss", SleepCommand, units.FormatSeconds(s.duration))
}

// SetClock sets the host clock to simulate activity at a given point in time.
type SetClock struct {
	time time.Time
}

func NewSetClock(t time.Time) *SetClock {
	return &SetClock{time: t}
}

func (*SetClock) sealed()          {}
func (*SetClock) Command() Command { return SetClockCommand }
func (*SetClock) Target() string   { return "" }

func (c *SetClock) Execute(_ context.Context, env *Env) error {
	if err := env.Clock.Set(c.time); err != nil {
		return simulationError(SetClockCommand, c.time.Format(time.RFC3339Nano), err)
	}
	return nil
}

func (c *SetClock) AsDict() map[string]any {
	return map[string]any{"command": string(SetClockCommand), "time": c.time.Format(time.RFC3339Nano)}
}

func (c *SetClock) PlaybookLine() string {
	return fmt.Sprintf("%s %s", SetClockCommand, c.time.Format(time.RFC3339Nano))
}

// Layouts accepted for the time command. Timestamps without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected RFC 3339 or YYYY-MM-DD[THH:MM:SS]", s)
}
