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

package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Tags holds the "tags" entry of a reassembled record as a sorted,
// duplicate-free list. Order is maintained at insertion so the encoded form
// is stable without any work at marshal time, and so the reassembly tags
// (the multiline tag and the bound-trigger tags) always appear in a
// predictable position for downstream matching
// The zero value is an empty, usable tag list
type Tags []string

// Has returns true if the tag is present
func (t Tags) Has(tag string) bool {
	idx := sort.SearchStrings(t, tag)
	return idx < len(t) && t[idx] == tag
}

// With returns a tag list containing the given tag, keeping sort order
// The receiver is returned unchanged if the tag is already present
func (t Tags) With(tag string) Tags {
	idx := sort.SearchStrings(t, tag)
	if idx < len(t) && t[idx] == tag {
		return t
	}
	result := make(Tags, 0, len(t)+1)
	result = append(result, t[:idx]...)
	result = append(result, tag)
	return append(result, t[idx:]...)
}

// Without returns a tag list with the given tag removed
// The receiver is returned unchanged if the tag is not present
func (t Tags) Without(tag string) Tags {
	idx := sort.SearchStrings(t, tag)
	if idx >= len(t) || t[idx] != tag {
		return t
	}
	result := make(Tags, 0, len(t)-1)
	result = append(result, t[:idx]...)
	return append(result, t[idx+1:]...)
}

// Event describes a single reassembled record on its way downstream
type Event struct {
	data map[string]interface{}

	encoded []byte
}

// NewEvent creates a new event structure from the given data
func NewEvent(data map[string]interface{}) *Event {
	ret := &Event{
		data: data,
	}
	ret.convertData()
	return ret
}

// Data returns the internal event data for reading or mutation
// Remember ClearCache is required if the data is mutated
func (e *Event) Data() map[string]interface{} {
	return e.data
}

// convertData is the internal function that enforces guaranteed types
func (e *Event) convertData() {
	// Normalize "tags" first (other resolutions ignore it)
	if entry, ok := e.data["tags"]; ok {
		switch value := entry.(type) {
		case Tags:
		case string:
			e.data["tags"] = Tags{value}
		case []string:
			tags := Tags{}
			for _, tag := range value {
				tags = tags.With(tag)
			}
			e.data["tags"] = tags
		default:
			e.data["tags"] = Tags{"_tags_parse_failure"}
			e.data["tags_parse_error"] = fmt.Sprintf("tags was not a string or string list, was %T", value)
		}
	} else {
		e.data["tags"] = Tags{}
	}
	// Normalize "@timestamp" to a Timestamp
	if entry, ok := e.data["@timestamp"]; ok {
		switch value := entry.(type) {
		case Timestamp:
		case time.Time:
			e.data["@timestamp"] = Timestamp(value)
		default:
			e.data["@timestamp"] = Timestamp(time.Now())
		}
	} else {
		e.data["@timestamp"] = Timestamp(time.Now())
	}
}

// Message returns the "message" entry, or an empty string if there is none
func (e *Event) Message() string {
	if message, ok := e.data["message"].(string); ok {
		return message
	}
	return ""
}

// Path returns the "path" entry set by a listener adapter, if any
func (e *Event) Path() string {
	if path, ok := e.data["path"].(string); ok {
		return path
	}
	return ""
}

// SetPath stores the provenance path for this event
// Remember ClearCache is required to flush any cached representations
func (e *Event) SetPath(path string) {
	e.data["path"] = path
}

// Tags returns the tag list for this event
func (e *Event) Tags() Tags {
	return e.data["tags"].(Tags)
}

// AddTag adds a tag to the event
// Remember ClearCache is required to flush any cached representations
func (e *Event) AddTag(tag string) {
	e.data["tags"] = e.Tags().With(tag)
}

// RemoveTag removes a tag from the event
// Remember ClearCache is required to flush any cached representations
func (e *Event) RemoveTag(tag string) {
	e.data["tags"] = e.Tags().Without(tag)
}

// HasTag returns true if the event carries the given tag
func (e *Event) HasTag(tag string) bool {
	return e.Tags().Has(tag)
}

// ClearCache clears any cached representations, always call it if the event is changed
func (e *Event) ClearCache() {
	e.encoded = nil
}

// Bytes returns the encoded event bytes
// The returned slice should not be modified and be treated immutable
// To change the event, use Data(), and then use ClearCache to clear the
// Bytes() cache so it regenerates
func (e *Event) Bytes() []byte {
	if e.encoded == nil {
		var err error
		e.encoded, err = json.Marshal(e.data)
		if err != nil {
			e.encoded = make([]byte, 0)
		}
	}
	return e.encoded
}
