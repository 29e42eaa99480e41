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

// mapCleaner periodically evicts idle identities from its owning map
// Start is idempotent and cheap so the map can call it on every routed
// access; the sweep itself runs under the map lock so deletions are atomic
// with respect to concurrent routing
type mapCleaner struct {
	owner    *CodecIdentityMap
	interval time.Duration

	mutex    sync.Mutex
	running  bool
	stopped  bool
	stopChan chan struct{}
	wait     sync.WaitGroup
}

// newMapCleaner creates a cleaner for the given map
// The routine does not start until the first Start call
func newMapCleaner(owner *CodecIdentityMap, interval time.Duration) *mapCleaner {
	return &mapCleaner{
		owner:    owner,
		interval: interval,
	}
}

// Start launches the cleaner routine if it is not already running
func (c *mapCleaner) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.running || c.stopped {
		return
	}

	c.running = true
	c.stopChan = make(chan struct{})
	c.wait.Add(1)
	go c.run()
}

// Stop latches the stopped state and waits for the routine to finish
// Subsequent Start calls are a no-op
func (c *mapCleaner) Stop() {
	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		return
	}
	c.stopped = true
	if !c.running {
		c.mutex.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mutex.Unlock()

	c.wait.Wait()
}

func (c *mapCleaner) run() {
	defer c.wait.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case <-time.After(c.interval):
			c.owner.cleanup()
		}
	}
}
