package clock

import "time"

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

type Fake struct {
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

func (c *Fake) Now() time.Time {
	return c.now
}

func (c *Fake) Set(t time.Time) {
	c.now = t.UTC()
}

func (c *Fake) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
