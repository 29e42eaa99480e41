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
	"github.com/logfold/logfold/lf-lib/event"
)

// ListenerAdapter is the basic Listener implementation
// It stamps its path onto each event it processes before forwarding to the
// wrapped sink, so the codec itself stays unaware of stream provenance
type ListenerAdapter struct {
	data []byte
	path string
	sink Sink
}

// NewListenerAdapter creates a listener delivering to the given sink with
// the given provenance path and no data
func NewListenerAdapter(path string, sink Sink) *ListenerAdapter {
	return &ListenerAdapter{
		path: path,
		sink: sink,
	}
}

// Data returns the raw data this listener carries
func (l *ListenerAdapter) Data() []byte {
	return l.data
}

// Path returns the provenance path of the carried data
func (l *ListenerAdapter) Path() string {
	return l.path
}

// ProcessEvent stamps the path onto the event and forwards it
func (l *ListenerAdapter) ProcessEvent(evt *event.Event) error {
	if l.path != "" {
		evt.SetPath(l.path)
		evt.ClearCache()
	}
	return l.sink(evt)
}

// WithData clones the listener carrying new data
func (l *ListenerAdapter) WithData(data []byte) *ListenerAdapter {
	return &ListenerAdapter{
		data: data,
		path: l.path,
		sink: l.sink,
	}
}

// WithPath clones the listener rebinding its provenance path
func (l *ListenerAdapter) WithPath(path string) *ListenerAdapter {
	return &ListenerAdapter{
		data: l.data,
		path: path,
		sink: l.sink,
	}
}

// Accept clones the listener with the new data and forwards it to the codec
func (l *ListenerAdapter) Accept(codec Codec, data []byte) error {
	return codec.Accept(l.WithData(data))
}
