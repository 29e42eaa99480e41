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

// sequencer produces the gap-free record sequence for a single codec
// instance. Values run from start up to but never including rollover,
// wrapping back to start
type sequencer struct {
	start    int64
	rollover int64
	current  int64
}

// newSequencer creates a sequencer at its start value
func newSequencer(start int64, rollover int64) *sequencer {
	return &sequencer{
		start:    start,
		rollover: rollover,
		current:  start,
	}
}

// Current returns the value for the record currently being emitted
func (s *sequencer) Current() int64 {
	return s.current
}

// Advance moves to the next value, wrapping at rollover
func (s *sequencer) Advance() int64 {
	s.current++
	if s.current >= s.rollover {
		s.current = s.start
	}
	return s.current
}
