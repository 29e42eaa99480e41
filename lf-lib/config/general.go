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

package config

import (
	"gopkg.in/op/go-logging.v1"
)

const (
	defaultGeneralLogLevel  logging.Level = logging.INFO
	defaultGeneralLogStdout bool          = true
)

// General holds the general configuration
// PatternsDir lists directories of named pattern definitions made available
// to every codec, before any codec-level pattern directories are applied
type General struct {
	LogFile     string        `config:"log file"`
	LogLevel    logging.Level `config:"log level"`
	LogStdout   bool          `config:"log stdout"`
	PatternsDir []string      `config:"patterns dir"`
}

// Defaults initialises default values for the general configuration
func (gc *General) Defaults() {
	gc.LogLevel = defaultGeneralLogLevel
	gc.LogStdout = defaultGeneralLogStdout
}

// General returns the general configuration
func (c *Config) General() *General {
	return c.Sections["general"].(*General)
}

func init() {
	RegisterSection("general", func() interface{} {
		return &General{}
	})
}
