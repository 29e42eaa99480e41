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
	"github.com/logfold/logfold/lf-lib/charset"
	"github.com/logfold/logfold/lf-lib/codecs"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
	"github.com/logfold/logfold/lf-lib/tokenizer"
)

// CodecPlainFactory holds the configuration, it is responsible for
// generating instances as required when new streams are opened
type CodecPlainFactory struct {
	Charset   string `config:"charset"`
	Delimiter string `config:"delimiter"`

	converter *charset.Converter
}

// CodecPlain emits one event per delimiter-terminated line with no
// reassembly
type CodecPlain struct {
	config    *CodecPlainFactory
	tokenizer *tokenizer.Tokenizer
}

// NewPlainCodecFactory creates a new factory structure from the
// configuration data in the configuration file
func NewPlainCodecFactory(p *config.Parser, configPath string, unused map[string]interface{}, name string) (interface{}, error) {
	var err error

	result := &CodecPlainFactory{}
	if err = p.Populate(result, unused, configPath, true); err != nil {
		return nil, err
	}

	if result.Delimiter == "" {
		result.Delimiter = "\n"
	}

	if result.converter, err = charset.NewConverter(result.Charset); err != nil {
		return nil, err
	}

	return result, nil
}

// NewCodec creates a new codec instance
func (f *CodecPlainFactory) NewCodec() codecs.Codec {
	return &CodecPlain{
		config:    f,
		tokenizer: tokenizer.NewTokenizer(f.Delimiter),
	}
}

// Decode emits one event per complete line in the data
func (c *CodecPlain) Decode(data []byte, sink codecs.Sink) error {
	for _, line := range c.tokenizer.Extract(data) {
		evt := event.NewEvent(map[string]interface{}{
			"message": c.config.converter.Convert(line),
		})
		if err := sink(evt); err != nil {
			return err
		}
	}
	return nil
}

// Encode passes the event through unchanged
func (c *CodecPlain) Encode(evt *event.Event, sink codecs.Sink) error {
	return sink(evt)
}

// Flush does nothing; a plain codec holds no pending lines
func (c *CodecPlain) Flush(sink codecs.Sink) error {
	return nil
}

// Close emits any remaining partial line
func (c *CodecPlain) Close(sink codecs.Sink) error {
	residue := c.tokenizer.Flush()
	if len(residue) == 0 || sink == nil {
		return nil
	}
	evt := event.NewEvent(map[string]interface{}{
		"message": c.config.converter.Convert(residue),
	})
	return sink(evt)
}

// Accept decodes the listener data, delivering events through the listener
func (c *CodecPlain) Accept(listener codecs.Listener) error {
	return c.Decode(listener.Data(), listener.ProcessEvent)
}

// Register the codec
func init() {
	codecs.Register("plain", NewPlainCodecFactory)
}
