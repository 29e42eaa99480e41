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
	"sort"

	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
)

// Sink is the downstream delivery callback that a codec calls for each of
// its "output" events. It could be called at any time by any routine (not
// necessarily the routine providing the "input" data)
type Sink func(event *event.Event) error

// Codec is the generic interface that all codecs implement
type Codec interface {
	// Decode feeds raw data into the codec, delivering any completed events
	// to the sink as they materialise
	Decode(data []byte, sink Sink) error
	// Encode passes an existing event through to the sink
	Encode(evt *event.Event, sink Sink) error
	// Flush forces emission of any pending data to the sink
	Flush(sink Sink) error
	// Close stops any background activity and performs a terminal flush
	// No further calls are permitted after Close
	Close(sink Sink) error
	// Accept is a variant of Decode taking a listener that carries the data
	// together with its provenance
	Accept(listener Listener) error
}

// AutoFlusher is the capability facet of codecs that own a quiet-period
// flush timer. Holders of arbitrary codecs query it with a type assertion
// and fall back to a plain Flush when it is absent or disabled
type AutoFlusher interface {
	// AutoFlushable returns true when an auto flush interval is configured
	AutoFlushable() bool
	// AutoFlush flushes pending data to the last seen listener or sink
	AutoFlush() error
}

// Listener is the downstream adapter a codec calls when used via Accept
// It carries the raw data together with per-stream metadata
type Listener interface {
	Data() []byte
	Path() string
	ProcessEvent(evt *event.Event) error
}

// FactoryFunc creates a codec factory from its configuration block
type FactoryFunc func(p *config.Parser, configPath string, unused map[string]interface{}, name string) (interface{}, error)

// Factory is the interface that all codec factories implement. The codec
// factory should store the codec's configuration and, when NewCodec is
// called, return a new instance of the codec that obeys that configuration
// Instances never share mutable state, which is what makes a factory safe
// to use as the spawn point for per-identity codecs
type Factory interface {
	NewCodec() Codec
}

// registeredCodecs contains the codec factories registered by each codec
// package init
var registeredCodecs = make(map[string]FactoryFunc)

// Register registers a codec factory creator under the given name
func Register(name string, factoryFunc FactoryFunc) {
	registeredCodecs[name] = factoryFunc
}

// Available returns the sorted list of registered codec names
func Available() []string {
	ret := make([]string, 0, len(registeredCodecs))
	for name := range registeredCodecs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// NewCodec returns a Codec interface initialised from the given Factory
func NewCodec(factory interface{}) Codec {
	return factory.(Factory).NewCodec()
}
