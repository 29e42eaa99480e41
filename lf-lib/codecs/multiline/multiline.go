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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/logfold/logfold/lf-lib/charset"
	"github.com/logfold/logfold/lf-lib/codecs"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
	"github.com/logfold/logfold/lf-lib/patterns"
	"github.com/logfold/logfold/lf-lib/tokenizer"
)

const (
	codecMultilineWhatPrevious = 0x00000001
	codecMultilineWhatNext     = 0x00000002

	// Tags carried by events whose flush was bound-triggered
	tagMaxLinesReached = "multiline_codec_max_lines_reached"
	tagMaxBytesReached = "multiline_codec_max_bytes_reached"
)

const (
	defaultMultilineTag      string      = "multiline"
	defaultMaxLines          int64       = 500
	defaultMaxBytes          config.Size = 10 << 20
	defaultSequencerField    string      = "seq"
	defaultSequencerStart    int64       = 1
	defaultSequencerRollover int64       = 100000
)

// CodecMultilineFactory holds the configuration for a multiline codec
// It is immutable once registered and shared by every codec instance it
// spawns, which keeps per-identity instances cheap and independent
type CodecMultilineFactory struct {
	Pattern           string        `config:"pattern"`
	What              string        `config:"what"`
	Negate            bool          `config:"negate"`
	PatternsDir       []string      `config:"patterns dir"`
	Charset           string        `config:"charset"`
	Delimiter         string        `config:"delimiter"`
	MultilineTag      string        `config:"multiline tag"`
	MaxLines          int64         `config:"max lines"`
	MaxBytes          config.Size   `config:"max bytes"`
	AutoFlushInterval time.Duration `config:"auto flush interval"`
	SequencerEnabled  bool          `config:"sequencer enabled"`
	SequencerField    string        `config:"sequencer field"`
	SequencerStart    int64         `config:"sequencer start"`
	SequencerRollover int64         `config:"sequencer rollover"`

	matcher   *patterns.Matcher
	converter *charset.Converter
	what      int
}

// CodecMultiline is an instance of a multiline codec. It reassembles
// consecutive lines into logical records according to the continuation
// pattern, subject to the size, line and quiet-period bounds
type CodecMultiline struct {
	config *CodecMultilineFactory

	mutex       sync.Mutex
	tokenizer   *tokenizer.Tokenizer
	buffer      []string
	bufferBytes int64
	sequencer   *sequencer
	timer       flushTimer
	closed      bool

	lastSink     codecs.Sink
	lastListener codecs.Listener
	prevListener codecs.Listener
}

// Defaults sets the default multiline codec configuration
func (f *CodecMultilineFactory) Defaults() {
	f.Charset = "UTF-8"
	f.Delimiter = "\n"
	f.MultilineTag = defaultMultilineTag
	f.MaxLines = defaultMaxLines
	f.MaxBytes = defaultMaxBytes
	f.SequencerField = defaultSequencerField
	f.SequencerStart = defaultSequencerStart
	f.SequencerRollover = defaultSequencerRollover
}

// NewMultilineCodecFactory creates a new CodecMultilineFactory for a codec
// definition in the configuration file. This factory can be used to create
// instances of a multiline codec, one per stream identity
func NewMultilineCodecFactory(p *config.Parser, configPath string, unused map[string]interface{}, name string) (interface{}, error) {
	var err error

	result := &CodecMultilineFactory{}
	if err = p.Populate(result, unused, configPath, true); err != nil {
		return nil, err
	}

	if result.Pattern == "" {
		return nil, errors.New("A multiline codec pattern must be specified.")
	}

	// Global pattern directories load first so codec-level directories can
	// override their definitions
	library := patterns.NewLibrary()
	for _, dir := range p.Config().General().PatternsDir {
		if err = library.LoadFromDir(dir); err != nil {
			return nil, err
		}
	}
	for _, dir := range result.PatternsDir {
		if err = library.LoadFromDir(dir); err != nil {
			return nil, err
		}
	}
	if result.matcher, err = library.Compile(result.Pattern); err != nil {
		return nil, fmt.Errorf("Failed to compile multiline codec pattern, '%s'.", err)
	}

	if result.What == "" {
		return nil, errors.New("A multiline codec \"what\" must be specified.")
	}
	if result.What == "previous" {
		result.what = codecMultilineWhatPrevious
	} else if result.What == "next" {
		result.what = codecMultilineWhatNext
	} else {
		return nil, fmt.Errorf("Unknown \"what\" value for multiline codec, '%s'.", result.What)
	}

	if result.converter, err = charset.NewConverter(result.Charset); err != nil {
		return nil, err
	}

	if result.MaxLines <= 0 {
		return nil, errors.New("max lines for a multiline codec must be greater than 0.")
	}
	if result.MaxBytes <= 0 {
		return nil, errors.New("max bytes for a multiline codec must be greater than 0.")
	}

	if result.SequencerEnabled && result.SequencerStart >= result.SequencerRollover {
		return nil, fmt.Errorf("sequencer start (%d) must be below sequencer rollover (%d).", result.SequencerStart, result.SequencerRollover)
	}

	return result, nil
}

// NewCodec returns a new codec instance obeying this factory's configuration
// Each instance is fully independent: buffers, tokenizer residue, sequence
// counter and flush timer are never shared
func (f *CodecMultilineFactory) NewCodec() codecs.Codec {
	c := &CodecMultiline{
		config:    f,
		tokenizer: tokenizer.NewTokenizer(f.Delimiter),
	}

	if f.SequencerEnabled {
		c.sequencer = newSequencer(f.SequencerStart, f.SequencerRollover)
	}

	// Start the auto flush routine that will flush at each quiet period
	if f.AutoFlushInterval != 0 {
		c.timer = newAutoFlushTimer(&c.mutex, f.AutoFlushInterval, c.autoFlushLocked)
	} else {
		c.timer = autoFlushUnset{}
	}

	return c
}

// Decode feeds a chunk of raw bytes into the codec
// Completed records are delivered to the sink as they materialise; delivery
// failures are logged and the pending record is preserved for a later flush
func (c *CodecMultiline) Decode(data []byte, sink codecs.Sink) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lastSink = sink

	for _, line := range c.tokenizer.Extract(data) {
		c.processLine(c.config.converter.Convert(line), sink)
	}

	return nil
}

// Accept is the demultiplexed variant of Decode. The listener carries the
// data and its provenance; each completed record is delivered through the
// listener seen before this call when what is "previous", and through this
// call's listener when what is "next"
func (c *CodecMultiline) Accept(listener codecs.Listener) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// A record in "previous" mode completes only when the line that starts
	// the next record arrives, so its provenance belongs to the listener
	// seen before this one
	if c.lastListener == nil {
		c.prevListener = listener
	} else {
		c.prevListener = c.lastListener
	}
	c.lastListener = listener

	sink := func(evt *event.Event) error {
		return c.whatBasedListener().ProcessEvent(evt)
	}

	for _, line := range c.tokenizer.Extract(listener.Data()) {
		c.processLine(c.config.converter.Convert(line), sink)
	}

	return nil
}

// Encode passes the event through to the sink; the codec is decode-oriented
func (c *CodecMultiline) Encode(evt *event.Event, sink codecs.Sink) error {
	return sink(evt)
}

// Flush forces emission of the current pending record
// If delivery fails the record is preserved so a later flush can retry
func (c *CodecMultiline) Flush(sink codecs.Sink) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.deliver(sink, "")
}

// Close stops the flush timer, runs any tokenizer residue through the state
// machine as a final line, and flushes
func (c *CodecMultiline) Close(sink codecs.Sink) error {
	// Stop outside the lock; the timer routine may be waiting for it
	c.timer.Stop()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if residue := c.tokenizer.Flush(); len(residue) != 0 {
		c.processLine(c.config.converter.Convert(residue), sink)
	}

	return c.deliver(sink, "")
}

// AutoFlushable returns true when a quiet-period interval is configured
func (c *CodecMultiline) AutoFlushable() bool {
	return c.config.AutoFlushInterval != 0
}

// AutoFlush flushes the pending record to the last seen listener, falling
// back to the last decode sink. It is called by the flush timer and by
// identity map eviction
func (c *CodecMultiline) AutoFlush() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.autoFlushLocked()
}

// processLine runs a single line through the continuation state machine
// Callers must hold the mutex
func (c *CodecMultiline) processLine(text string, sink codecs.Sink) {
	matched := c.config.matcher.Match(text)
	continues := matched != c.config.Negate

	if c.config.what == codecMultilineWhatPrevious {
		if !continues {
			// This line terminates the previous record and begins the next
			c.deliver(sink, "")
		}
		c.append(text)
		c.checkBounds(sink)
		c.timer.Start()
		return
	}

	c.append(text)
	if !continues {
		c.deliver(sink, "")
		return
	}
	c.checkBounds(sink)
	c.timer.Start()
}

// append adds a line to the pending buffer, keeping the byte count in step
func (c *CodecMultiline) append(text string) {
	c.buffer = append(c.buffer, text)
	c.bufferBytes += int64(len(text))
}

// checkBounds flushes immediately when the pending buffer reaches the line
// or byte bound, tagging the record with the reason
// Callers must hold the mutex
func (c *CodecMultiline) checkBounds(sink codecs.Sink) {
	if int64(len(c.buffer)) >= c.config.MaxLines {
		c.deliver(sink, tagMaxLinesReached)
	} else if c.bufferBytes >= int64(c.config.MaxBytes) {
		c.deliver(sink, tagMaxBytesReached)
	}
}

// autoFlushLocked flushes to the last seen listener or, when the codec has
// only ever being used via Decode, the last decode sink
// Callers must hold the mutex
func (c *CodecMultiline) autoFlushLocked() error {
	if c.lastListener != nil {
		return c.deliver(c.lastListener.ProcessEvent, "")
	}
	return c.deliver(nil, "")
}

// whatBasedListener returns the listener that owns the record currently
// being completed
// Callers must hold the mutex
func (c *CodecMultiline) whatBasedListener() codecs.Listener {
	if c.config.what == codecMultilineWhatPrevious && c.prevListener != nil {
		return c.prevListener
	}
	return c.lastListener
}

// deliver combines the pending lines into a merged event and sends it to
// the sink. A nil sink falls back to the last decode sink, then the last
// seen listener; if neither was ever seen, the pending lines are dropped
// with a warning
// On delivery failure the buffer is preserved for a later flush attempt
// Callers must hold the mutex
func (c *CodecMultiline) deliver(sink codecs.Sink, boundTag string) error {
	if len(c.buffer) == 0 {
		return nil
	}

	if sink == nil {
		sink = c.lastSink
	}
	if sink == nil && c.lastListener != nil {
		sink = c.lastListener.ProcessEvent
	}
	if sink == nil {
		log.Warning("Dropping %d pending line(s): no listener or sink has been seen to deliver to", len(c.buffer))
		c.reset()
		return nil
	}

	evt := event.NewEvent(map[string]interface{}{
		"message": strings.Join(c.buffer, c.config.Delimiter),
	})
	if len(c.buffer) > 1 && c.config.MultilineTag != "" {
		evt.AddTag(c.config.MultilineTag)
	}
	if boundTag != "" {
		evt.AddTag(boundTag)
	}
	if c.sequencer != nil {
		evt.Data()[c.config.SequencerField] = c.sequencer.Current()
	}

	if err := sink(evt); err != nil {
		log.Error("Failed to deliver multiline record, keeping %d line(s) buffered: %s", len(c.buffer), err)
		return err
	}

	if c.sequencer != nil {
		c.sequencer.Advance()
	}
	c.reset()
	return nil
}

// reset clears the pending buffer
func (c *CodecMultiline) reset() {
	c.buffer = nil
	c.bufferBytes = 0
}

// Register the codec
func init() {
	codecs.Register("multiline", NewMultilineCodecFactory)
}
