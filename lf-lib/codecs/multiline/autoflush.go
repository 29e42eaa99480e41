/*
 * Copyright 2012-2021 Jason Woods and contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package codecs

import (
	"sync"
	"time"
)

// flushTimer is the quiet-period timer surface the codec drives
// Start re-arms for a full interval, Stop latches a terminal state
type flushTimer interface {
	Start()
	Stop()
	Pending() bool
	Stopped() bool
	Finished() bool
}

// autoFlushUnset is the null timer used when no auto flush interval is
// configured
type autoFlushUnset struct{}

func (autoFlushUnset) Start()         {}
func (autoFlushUnset) Stop()          {}
func (autoFlushUnset) Pending() bool  { return false }
func (autoFlushUnset) Stopped() bool  { return true }
func (autoFlushUnset) Finished() bool { return true }

// autoFlushTimer invokes the flush callback once per quiet period
//
// A single routine owns the time.Timer. Start never touches it and instead
// advances a deadline under the shared mutex; a firing that finds the
// deadline moved re-arms itself for the remainder. This is the cancel and
// reschedule pattern: a stale firing can never flush fresh data and a
// re-arm can never be lost to a firing already in flight, because both
// serialise on the same mutex that guards the pending buffer
type autoFlushTimer struct {
	mutex    *sync.Mutex
	interval time.Duration
	flush    func() error

	deadline time.Time
	pending  bool
	running  bool
	stopOnce sync.Once
	stopChan chan struct{}
	wait     sync.WaitGroup
}

// newAutoFlushTimer creates a timer flushing through the given callback,
// which is invoked with the shared mutex held
func newAutoFlushTimer(mutex *sync.Mutex, interval time.Duration, flush func() error) *autoFlushTimer {
	t := &autoFlushTimer{
		mutex:    mutex,
		interval: interval,
		flush:    flush,
		deadline: time.Now().Add(interval),
		stopChan: make(chan struct{}),
	}

	t.wait.Add(1)
	go t.run()

	return t
}

// Start re-arms the timer with the full interval
// Callers must hold the shared mutex. If the timer is stopped this is a
// no-op
func (t *autoFlushTimer) Start() {
	if t.Stopped() {
		return
	}
	t.deadline = time.Now().Add(t.interval)
	t.pending = true
}

// Stop latches the stopped state and waits for any firing in progress to
// complete. Callers must NOT hold the shared mutex
func (t *autoFlushTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
	})
	t.wait.Wait()
}

// Stopped returns true once Stop has being called
func (t *autoFlushTimer) Stopped() bool {
	select {
	case <-t.stopChan:
		return true
	default:
	}
	return false
}

// Pending returns true while a flush is scheduled and has not yet run
// Callers must not hold the shared mutex
func (t *autoFlushTimer) Pending() bool {
	if t.Stopped() {
		return false
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.pending
}

// Finished returns true when no flush is scheduled
// Callers must not hold the shared mutex
func (t *autoFlushTimer) Finished() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return !t.pending && !t.running
}

func (t *autoFlushTimer) run() {
	defer t.wait.Done()

	timer := time.NewTimer(t.interval)

DeadlineLoop:
	for {
		select {
		case <-t.stopChan:
			timer.Stop()

			// Shutdown signal so end the routine
			break DeadlineLoop
		case now := <-timer.C:
			t.mutex.Lock()

			if t.Stopped() {
				// Teardown raced the firing; leave the flush to Close
				t.mutex.Unlock()
				continue
			}

			// Have we reached the target time?
			if !now.After(t.deadline) {
				// Deadline moved, update the timer
				timer.Reset(t.deadline.Sub(now))
				t.mutex.Unlock()
				continue
			}

			t.pending = false
			t.running = true
			if err := t.flush(); err != nil {
				// The codec preserved the data; retry next interval
				t.pending = true
			}
			t.running = false

			timer.Reset(t.interval)
			t.mutex.Unlock()
		}
	}
}
