/*
 * Copyright 2012-2021 Jason Woods and contributors
 *
 * This file is a modification of code from Logstash Forwarder.
 * Copyright 2012-2013 Jordan Sissel and contributors.
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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// loadJSONFile loads the given JSON format file, stripping out our custom
// comments syntax before it does so
func (c *Config) loadJSONFile(path string, rawConfig *map[string]interface{}) (err error) {
	buffer, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Failed to read config file: %s", err)
	}
	if len(buffer) == 0 {
		return fmt.Errorf("Empty configuration file")
	}

	if err = json.Unmarshal(stripComments(buffer), rawConfig); err != nil {
		return fmt.Errorf("Failed to parse config file: %s", err)
	}

	return nil
}

// stripComments removes # line comments, // line comments and /* */ block
// comments, leaving string values untouched
func stripComments(buffer []byte) []byte {
	stripped := new(bytes.Buffer)

	const (
		stateBody = iota
		stateString
		stateEscape
		stateLineComment
		stateBlockComment
	)

	state := stateBody
	for p := 0; p < len(buffer); p++ {
		b := buffer[p]
		switch state {
		case stateBody:
			if b == '"' {
				state = stateString
			} else if b == '#' {
				state = stateLineComment
				continue
			} else if b == '/' && p+1 < len(buffer) {
				if buffer[p+1] == '/' {
					state = stateLineComment
					p++
					continue
				}
				if buffer[p+1] == '*' {
					state = stateBlockComment
					p++
					continue
				}
			}
		case stateString:
			if b == '\\' {
				state = stateEscape
			} else if b == '"' {
				state = stateBody
			}
		case stateEscape:
			state = stateString
		case stateLineComment:
			if b == '\n' {
				state = stateBody
				stripped.WriteByte(b)
			}
			continue
		case stateBlockComment:
			if b == '*' && p+1 < len(buffer) && buffer[p+1] == '/' {
				state = stateBody
				p++
			}
			continue
		}

		stripped.WriteByte(b)
	}

	return stripped.Bytes()
}
