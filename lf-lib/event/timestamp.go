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
	"time"
)

// Timestamp is used for the "@timestamp" entry of all events
type Timestamp time.Time

// Format the timestamp
func (e Timestamp) Format(layout string) string {
	return time.Time(e).Format(layout)
}

// MarshalJSON encodes the timestamp
func (e Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(e).MarshalJSON()
}
