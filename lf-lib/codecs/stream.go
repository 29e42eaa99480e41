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
	"fmt"

	"github.com/logfold/logfold/lf-lib/config"
)

const (
	defaultStreamCodec string = "plain"
)

// Stub holds an unknown codec configuration
// After initial parsing of configuration, these Stubs are turned into
// real configuration blocks for the codec given by their Name field
type Stub struct {
	Name    string `config:"name"`
	Unused  map[string]interface{}
	Factory interface{}
}

// StreamConfig holds the configuration for a log stream that supports codecs
type StreamConfig struct {
	Codecs []Stub `config:"codecs"`
}

// Init initialises a stream configuration with codecs by creating the
// necessary codec factories
func (sc *StreamConfig) Init(p *config.Parser, path string) (err error) {
	if len(sc.Codecs) == 0 {
		sc.Codecs = []Stub{{Name: defaultStreamCodec}}
	}

	for i := 0; i < len(sc.Codecs); i++ {
		codec := &sc.Codecs[i]
		registrarFunc, ok := registeredCodecs[codec.Name]
		if !ok {
			return fmt.Errorf("Unrecognised codec '%s' for %s", codec.Name, path)
		}
		if codec.Factory, err = registrarFunc(p, fmt.Sprintf("%scodecs[%d]/", path, i), codec.Unused, codec.Name); err != nil {
			return
		}
	}

	return nil
}

// NewCodec creates a new codec instance from the first configured codec
func (sc *StreamConfig) NewCodec() Codec {
	return NewCodec(sc.Codecs[0].Factory)
}

// Stream returns the stream configuration section
func Stream(c *config.Config) *StreamConfig {
	return c.Section("stream").(*StreamConfig)
}

func init() {
	config.RegisterSection("stream", func() interface{} {
		return &StreamConfig{}
	})
}
