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
	"sync"
	"time"

	"github.com/logfold/logfold/lf-lib/codecs"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
)

const (
	defaultMaxIdentities   int64         = 20000
	defaultEvictTimeout    time.Duration = 3600 * time.Second
	defaultCleanerInterval time.Duration = 300 * time.Second
)

// ErrCapacityExceeded is returned by routed operations when the identity
// limit is reached and a cleanup attempt could not free a slot
var ErrCapacityExceeded = errors.New("Stream identity limit reached")

// Config holds the configuration for an identity map
type Config struct {
	Enabled         bool          `config:"enabled"`
	MaxIdentities   int64         `config:"max identities"`
	EvictTimeout    time.Duration `config:"evict timeout"`
	CleanerInterval time.Duration `config:"cleaner interval"`
}

// Defaults sets the default identity map configuration
func (c *Config) Defaults() {
	c.MaxIdentities = defaultMaxIdentities
	c.EvictTimeout = defaultEvictTimeout
	c.CleanerInterval = defaultCleanerInterval
}

// Validate the identity map configuration
func (c *Config) Validate(p *config.Parser, path string) (err error) {
	if c.MaxIdentities <= 0 {
		return errors.New("max identities must be greater than 0")
	}
	if c.EvictTimeout <= 0 || c.CleanerInterval <= 0 {
		return errors.New("evict timeout and cleaner interval must be greater than 0")
	}
	return nil
}

// Identity returns the identity map configuration section
func Identity(cfg *config.Config) *Config {
	return cfg.Section("identity").(*Config)
}

// identityEntry tracks one stream identity and the codec that owns its
// pending data. The eviction deadline advances on every routed access
type identityEntry struct {
	codec            codecs.Codec
	evictionDeadline time.Time
}

// CodecIdentityMap fans interleaved streams out to one codec instance per
// stream identity, enforcing a ceiling on concurrently tracked identities
// and evicting idle streams with a terminal flush
// It conforms to the same contract as the codec it wraps, so callers that
// never pass an identity see no difference
type CodecIdentityMap struct {
	config       *Config
	factory      codecs.Factory
	evictionSink codecs.Sink

	mutex       sync.Mutex
	base        codecs.Codec
	baseClaimed bool
	entries     map[string]*identityEntry
	cleaner     *mapCleaner
	warned      bool
	closed      bool
}

// NewCodecMap creates an identity map spawning per-identity codecs from the
// given factory. The eviction sink may be nil, in which case evicted codecs
// flush to their last seen sink
func NewCodecMap(conf *Config, factory codecs.Factory, evictionSink codecs.Sink) *CodecIdentityMap {
	m := &CodecIdentityMap{
		config:       conf,
		factory:      factory,
		evictionSink: evictionSink,
		base:         codecs.NewCodec(factory),
		entries:      make(map[string]*identityEntry),
	}
	m.cleaner = newMapCleaner(m, conf.CleanerInterval)
	return m
}

// codecLocked routes an identity to its codec, spawning one on first access
// An empty identity routes to the shared base codec
// Callers must hold the mutex
func (m *CodecIdentityMap) codecLocked(identity string, now time.Time) (codecs.Codec, error) {
	if identity == "" {
		return m.base, nil
	}

	if entry, ok := m.entries[identity]; ok {
		entry.evictionDeadline = now.Add(m.config.EvictTimeout)
		return entry.codec, nil
	}

	if int64(len(m.entries)) >= m.config.MaxIdentities {
		m.cleanupLocked(now)
		if int64(len(m.entries)) >= m.config.MaxIdentities {
			log.Error("Stream identity limit of %d reached; cannot track identity %s", m.config.MaxIdentities, identity)
			return nil, ErrCapacityExceeded
		}
	}

	if !m.warned && int64(len(m.entries)+1)*5 >= m.config.MaxIdentities*4 {
		log.Warning("Stream identity count is over 80%% of the limit of %d", m.config.MaxIdentities)
		m.warned = true
	}

	var codec codecs.Codec
	if !m.baseClaimed {
		// The first identity reuses the base codec rather than spawning
		codec = m.base
		m.baseClaimed = true
	} else {
		codec = codecs.NewCodec(m.factory)
	}

	m.entries[identity] = &identityEntry{
		codec:            codec,
		evictionDeadline: now.Add(m.config.EvictTimeout),
	}

	m.cleaner.Start()

	return codec, nil
}

// CodecWithoutUsageUpdate returns the codec tracking the given identity
// without advancing its eviction deadline, or nil if it is not tracked
func (m *CodecIdentityMap) CodecWithoutUsageUpdate(identity string) codecs.Codec {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if identity == "" {
		return m.base
	}
	if entry, ok := m.entries[identity]; ok {
		return entry.codec
	}
	return nil
}

// IdentityCount returns the number of identities currently tracked
func (m *CodecIdentityMap) IdentityCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}

// Decode routes data for the base stream
func (m *CodecIdentityMap) Decode(data []byte, sink codecs.Sink) error {
	return m.DecodeIdentity("", data, sink)
}

// DecodeIdentity routes data for the given stream identity, delivering
// completed records to the sink with the identity as their path
func (m *CodecIdentityMap) DecodeIdentity(identity string, data []byte, sink codecs.Sink) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	codec, err := m.codecLocked(identity, time.Now())
	if err != nil {
		return err
	}

	if identity == "" {
		return codec.Decode(data, sink)
	}

	return codec.Accept(codecs.NewListenerAdapter(identity, sink).WithData(data))
}

// Accept routes the listener to the codec tracking its path
func (m *CodecIdentityMap) Accept(listener codecs.Listener) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	codec, err := m.codecLocked(listener.Path(), time.Now())
	if err != nil {
		return err
	}

	return codec.Accept(listener)
}

// Encode routes a pass-through emission for the base stream
func (m *CodecIdentityMap) Encode(evt *event.Event, sink codecs.Sink) error {
	return m.EncodeIdentity("", evt, sink)
}

// EncodeIdentity routes a pass-through emission for the given identity
func (m *CodecIdentityMap) EncodeIdentity(identity string, evt *event.Event, sink codecs.Sink) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	codec, err := m.codecLocked(identity, time.Now())
	if err != nil {
		return err
	}

	return codec.Encode(evt, sink)
}

// Evict removes the given identity, flushing any pending record first
// Evicting an untracked identity is a no-op
func (m *CodecIdentityMap) Evict(identity string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, ok := m.entries[identity]
	if !ok {
		return
	}

	delete(m.entries, identity)
	m.disposeLocked(identity, entry.codec)
}

// Flush drains every tracked codec
// With a sink, each codec flushes against it; without one, codecs that
// support auto flush deliver to their own last seen listener
func (m *CodecIdentityMap) Flush(sink codecs.Sink) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for identity, entry := range m.entries {
		m.flushCodecLocked(identity, entry.codec, sink)
	}
	if !m.baseClaimed {
		m.flushCodecLocked("", m.base, sink)
	}

	return nil
}

// FlushMapped drains every tracked codec through the given listener,
// temporarily rebinding its path to each identity in turn
// Sink errors are swallowed per identity; this is best-effort shutdown
func (m *CodecIdentityMap) FlushMapped(listener *codecs.ListenerAdapter) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for identity, entry := range m.entries {
		rebound := listener.WithPath(identity)
		if err := entry.codec.Flush(rebound.ProcessEvent); err != nil {
			log.Error("Failed to flush stream identity %s: %s", identity, err)
		}
	}

	return nil
}

// Close stops the cleaner and closes every codec
// The cleaner stops first so no eviction can fire into a closing codec
func (m *CodecIdentityMap) Close(sink codecs.Sink) error {
	m.cleaner.Stop()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for identity, entry := range m.entries {
		if err := entry.codec.Close(sink); err != nil {
			log.Error("Failed to close stream identity %s: %s", identity, err)
		}
		delete(m.entries, identity)
	}
	if !m.baseClaimed {
		if err := m.base.Close(sink); err != nil {
			log.Error("Failed to close base codec: %s", err)
		}
	}

	return nil
}

// flushCodecLocked flushes one codec for a broadcast flush
// Callers must hold the mutex
func (m *CodecIdentityMap) flushCodecLocked(identity string, codec codecs.Codec, sink codecs.Sink) {
	var err error
	if sink != nil {
		err = codec.Flush(sink)
	} else if flusher, ok := codec.(codecs.AutoFlusher); ok && flusher.AutoFlushable() {
		err = flusher.AutoFlush()
	} else {
		err = codec.Flush(nil)
	}
	if err != nil {
		log.Error("Failed to flush stream identity %s: %s", identity, err)
	}
}

// cleanupLocked evicts every identity whose deadline has passed, flushing
// each before removal. Downstream errors are logged and do not stop the
// sweep
// Callers must hold the mutex
func (m *CodecIdentityMap) cleanupLocked(now time.Time) {
	for identity, entry := range m.entries {
		if entry.evictionDeadline.After(now) {
			continue
		}
		log.Debug("Evicting idle stream identity %s", identity)
		delete(m.entries, identity)
		m.disposeLocked(identity, entry.codec)
	}
}

// cleanup runs an eviction sweep on behalf of the cleaner
func (m *CodecIdentityMap) cleanup() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cleanupLocked(time.Now())
}

// disposeLocked flushes and closes a codec leaving the map
// Pending data goes to the codec's own auto flush target when it has one,
// else to the configured eviction sink, else to the codec's last seen sink
// Callers must hold the mutex
func (m *CodecIdentityMap) disposeLocked(identity string, codec codecs.Codec) {
	var err error
	if flusher, ok := codec.(codecs.AutoFlusher); ok && flusher.AutoFlushable() {
		err = flusher.AutoFlush()
	} else if m.evictionSink != nil {
		err = codec.Flush(m.evictionSink)
	} else {
		err = codec.Flush(nil)
	}
	if err != nil {
		log.Error("Failed to flush evicted stream identity %s: %s", identity, err)
	}

	// The base codec may have been claimed by the first identity; it must
	// survive eviction as empty-identity routing still reaches it
	if codec == m.base {
		return
	}

	if err = codec.Close(nil); err != nil {
		log.Error("Failed to close evicted stream identity %s: %s", identity, err)
	}
}

func init() {
	config.RegisterSection("identity", func() interface{} {
		return &Config{}
	})
}
