// Package jobs runs the bot's recurring UTC-scheduled work.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// NextDaily returns the first hour:00 UTC strictly after now
func NextDaily(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly returns the first weekday at hour:00 UTC strictly after now
func NextWeekly(now time.Time, weekday time.Weekday, hour int) time.Time {
	now = now.UTC()
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

type job struct {
	name string
	next func(time.Time) time.Time
	run  func(ctx context.Context, now time.Time)
}

// Runner fires scheduled jobs until stopped
type Runner struct {
	jobs  []job
	clock func() time.Time
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewRunner creates a runner with no jobs
func NewRunner() *Runner {
	return &Runner{clock: time.Now, done: make(chan struct{})}
}

// Schedule adds a job. next returns the fire time following its argument.
// Must be called before Start.
func (r *Runner) Schedule(name string, next func(time.Time) time.Time, run func(ctx context.Context, now time.Time)) {
	r.jobs = append(r.jobs, job{name: name, next: next, run: run})
}

// Start launches one goroutine per job
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
}

// Stop halts every job and waits for running ones to return
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, j job) {
	defer r.wg.Done()

	var last time.Time
	for {
		now := r.clock()
		// A wall clock stepped backwards must not bring back a fire time that already ran
		base := now
		if !base.After(last) {
			base = last
		}
		next := j.next(base)
		log.Printf("⏰ %s scheduled for %s", j.name, next.UTC().Format(time.RFC1123))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-r.done:
			timer.Stop()
			log.Printf("Stopped %s.", j.name)
			return
		case <-ctx.Done():
			timer.Stop()
			log.Printf("Stopped %s.", j.name)
			return
		case <-timer.C:
			j.run(ctx, next)
			last = next
		}
	}
}
