package cache

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Janitor periodically sweeps expired entries out of a ResultCache so a
// long-lived process does not accumulate dead results between requests.
type Janitor struct {
	cron *cron.Cron
}

// StartJanitor begins sweeping the cache on the given cron schedule
// (e.g. "@every 5m"). The returned Janitor must be stopped on shutdown.
func StartJanitor(c *ResultCache, schedule string) (*Janitor, error) {
	runner := cron.New()
	_, err := runner.AddFunc(schedule, func() {
		if removed := c.Sweep(); removed > 0 {
			log.Printf("[cache] janitor removed %d expired entries", removed)
		}
	})
	if err != nil {
		return nil, err
	}
	runner.Start()
	return &Janitor{cron: runner}, nil
}

// Stop halts the sweep schedule. Running sweeps finish before Stop returns.
func (j *Janitor) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}
