package codecs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/logfold/logfold/lf-lib/codecs"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
)

var (
	errMultilineTest = errors.New("ERROR")
)

func createMultilineCodec(unused map[string]interface{}, t *testing.T) codecs.Codec {
	cfg := config.NewConfig()

	factory, err := NewMultilineCodecFactory(config.NewParser(cfg), "/stream/codecs[0]/", unused, "multiline")
	if err != nil {
		t.Errorf("Failed to create multiline codec: %s", err)
		t.FailNow()
	}

	return codecs.NewCodec(factory)
}

type checkMultilineExpect struct {
	text string
	tags []string
}

type checkMultiline struct {
	expect []checkMultilineExpect
	t      *testing.T

	mutex  sync.Mutex
	events int
	paths  []string
}

func (c *checkMultiline) incorrectEventCount(events int, message string) {
	c.t.Error(message)
	c.t.Errorf("Got:      %d", events)
	c.t.Errorf("Expected: %d", len(c.expect))
}

func (c *checkMultiline) Sink(evt *event.Event) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	line := c.events + 1

	if line > len(c.expect) {
		c.incorrectEventCount(line, "Too many events received")
		c.t.FailNow()
	}

	expect := c.expect[c.events]

	if evt.Message() != expect.text {
		c.t.Error("Message incorrect for event: ", line)
		c.t.Errorf("Got:      [%s]", evt.Message())
		c.t.Errorf("Expected: [%s]", expect.text)
	}

	for _, tag := range expect.tags {
		if !evt.HasTag(tag) {
			c.t.Errorf("Missing tag %s for event: %d", tag, line)
		}
	}
	if len(expect.tags) == 0 && len(evt.Tags()) != 0 {
		c.t.Errorf("Unexpected tags %v for event: %d", evt.Tags(), line)
	}

	c.paths = append(c.paths, evt.Path())
	c.events = line
	return nil
}

func (c *checkMultiline) CheckCurrentCount(count int, message string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.events != count {
		c.incorrectEventCount(c.events, message)
	}
}

func (c *checkMultiline) CheckFinalCount() {
	c.CheckCurrentCount(len(c.expect), "Incorrect event count received")
}

func TestMultilinePrevious(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n   second line", []string{"multiline"}},
			{"another first line", nil},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": `^\s`,
			"what":    "previous",
		},
		t,
	)

	if err := codec.Decode([]byte("hello world\n   second line\nanother first line\n"), check.Sink); err != nil {
		t.Fatalf("Decode failed: %s", err)
	}
	if err := codec.Flush(check.Sink); err != nil {
		t.Fatalf("Flush failed: %s", err)
	}

	check.CheckFinalCount()
}

func TestMultilinePreviousNegate(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"DEBUG First line\nNEXT line\nANOTHER line", []string{"multiline"}},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": "^DEBUG ",
			"negate":  true,
			"what":    "previous",
		},
		t,
	)

	codec.Decode([]byte("DEBUG First line\nNEXT line\nANOTHER line\nDEBUG Next line\n"), check.Sink)

	check.CheckFinalCount()
}

func TestMultilineNext(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"DEBUG First line\nNEXT line\nANOTHER line", []string{"multiline"}},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": "^(DEBUG|NEXT) ",
			"what":    "next",
		},
		t,
	)

	codec.Decode([]byte("DEBUG First line\nNEXT line\nANOTHER line\nDEBUG Next line\n"), check.Sink)

	check.CheckFinalCount()
}

func TestMultilineMaxLines(t *testing.T) {
	expect := make([]checkMultilineExpect, 30)
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "- Sample event"
	}
	for i := range expect {
		expect[i] = checkMultilineExpect{
			strings.Join(lines, "\n"),
			[]string{"multiline", "multiline_codec_max_lines_reached"},
		}
	}

	check := &checkMultiline{
		expect: expect,
		t:      t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":   "^-",
			"what":      "previous",
			"max lines": 10,
			"max bytes": "2mb",
		},
		t,
	)

	for i := 0; i < 300; i++ {
		codec.Decode([]byte("- Sample event\n"), check.Sink)
	}
	codec.Flush(check.Sink)

	check.CheckFinalCount()

	// All 300 original lines must be accounted for across the events
	if total := check.events * len(lines); total != 300 {
		t.Errorf("Unexpected total line count: %d", total)
	}
}

func TestMultilineMaxBytes(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"0123456789\n0123456789", []string{"multiline", "multiline_codec_max_bytes_reached"}},
			{"0123456789", nil},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":   "^-",
			"negate":    true,
			"what":      "previous",
			"max bytes": 20,
		},
		t,
	)

	codec.Decode([]byte("0123456789\n0123456789\n0123456789\n"), check.Sink)
	codec.Flush(check.Sink)

	check.CheckFinalCount()
}

func TestMultilineSequencer(t *testing.T) {
	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":            `^\s`,
			"what":               "previous",
			"sequencer enabled":  true,
			"sequencer start":    10,
			"sequencer rollover": 13,
		},
		t,
	)

	events := 0
	sink := func(evt *event.Event) error {
		seq, ok := evt.Data()["seq"].(int64)
		if !ok {
			t.Errorf("Missing sequence field: %v", evt.Data())
			return nil
		}
		if fmt.Sprintf("%d", seq) != evt.Message() {
			t.Errorf("Sequence %d does not match message %s", seq, evt.Message())
		}
		events++
		return nil
	}

	codec.Decode([]byte("10\n11\n12\n10\n"), sink)
	codec.Flush(sink)

	if events != 4 {
		t.Errorf("Unexpected event count: %d", events)
	}
}

func TestMultilineSequencerBounds(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewMultilineCodecFactory(config.NewParser(cfg), "", map[string]interface{}{
		"pattern":            `^\s`,
		"what":               "previous",
		"sequencer enabled":  true,
		"sequencer start":    13,
		"sequencer rollover": 13,
	}, "multiline")
	if err == nil {
		t.Fatalf("Expected contradictory sequencer bounds to fail")
	}
}

func TestMultilineUnknownWhat(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewMultilineCodecFactory(config.NewParser(cfg), "", map[string]interface{}{
		"pattern": `^\s`,
		"what":    "sideways",
	}, "multiline")
	if err == nil {
		t.Fatalf("Expected unknown what to fail")
	}
}

func TestMultilineGlobalPatternsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "extra"), []byte("INDENT ^\\s\n"), 0644); err != nil {
		t.Fatalf("Failed to write pattern file: %s", err)
	}

	cfg := config.NewConfig()
	cfg.General().PatternsDir = []string{dir}

	factory, err := NewMultilineCodecFactory(config.NewParser(cfg), "/stream/codecs[0]/", map[string]interface{}{
		"pattern": `%{INDENT}`,
		"what":    "previous",
	}, "multiline")
	if err != nil {
		t.Fatalf("Failed to create multiline codec: %s", err)
	}

	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n   second line", []string{"multiline"}},
		},
		t: t,
	}

	codec := codecs.NewCodec(factory)
	codec.Decode([]byte("hello world\n   second line\nanother first line\n"), check.Sink)

	check.CheckFinalCount()
}

func TestMultilineBadPattern(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewMultilineCodecFactory(config.NewParser(cfg), "", map[string]interface{}{
		"pattern": `^(unclosed`,
		"what":    "previous",
	}, "multiline")
	if err == nil {
		t.Fatalf("Expected bad pattern to fail")
	}
}

func TestMultilineDownstreamError(t *testing.T) {
	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": `^\s`,
			"what":    "previous",
		},
		t,
	)

	failing := func(evt *event.Event) error {
		return errMultilineTest
	}

	codec.Decode([]byte("hello world\n second\n third\n"), failing)

	// The failed flush must preserve the record for a retry
	if err := codec.Flush(failing); err != errMultilineTest {
		t.Fatalf("Expected flush to report the sink error, got: %v", err)
	}

	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n second\n third", []string{"multiline"}},
		},
		t: t,
	}

	if err := codec.Flush(check.Sink); err != nil {
		t.Fatalf("Retry flush failed: %s", err)
	}

	check.CheckFinalCount()
}

func TestMultilineCloseResidue(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n   partial tail", []string{"multiline"}},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": `^\s`,
			"what":    "previous",
		},
		t,
	)

	// No trailing delimiter; the tail must still be part of the record
	codec.Decode([]byte("hello world\n   partial tail"), check.Sink)
	if err := codec.Close(check.Sink); err != nil {
		t.Fatalf("Close failed: %s", err)
	}

	check.CheckFinalCount()
}

func TestMultilineDelimiter(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\r\n   second line", []string{"multiline"}},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":   `^\s`,
			"what":      "previous",
			"delimiter": "\r\n",
		},
		t,
	)

	codec.Decode([]byte("hello world\r\n   second line\r\n"), check.Sink)
	codec.Flush(check.Sink)

	check.CheckFinalCount()
}

func TestMultilineAutoFlush(t *testing.T) {
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n second\n third", []string{"multiline"}},
		},
		t: t,
	}

	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":             `^\s`,
			"what":                "previous",
			"auto flush interval": "200ms",
		},
		t,
	)

	listener := codecs.NewListenerAdapter("en.log", check.Sink)
	if err := codec.Accept(listener.WithData([]byte("hello world\n second\n third\n"))); err != nil {
		t.Fatalf("Accept failed: %s", err)
	}

	check.CheckCurrentCount(0, "Auto flush triggered too early")

	time.Sleep(500 * time.Millisecond)

	check.CheckFinalCount()

	if len(check.paths) != 1 || check.paths[0] != "en.log" {
		t.Errorf("Unexpected event paths: %v", check.paths)
	}

	// The buffer must now be empty
	if err := codec.Flush(check.Sink); err != nil {
		t.Fatalf("Flush failed: %s", err)
	}
	check.CheckFinalCount()

	codec.Close(nil)
}

func TestMultilineAutoFlushError(t *testing.T) {
	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":             `^\s`,
			"what":                "previous",
			"auto flush interval": "200ms",
		},
		t,
	)

	var mutex sync.Mutex
	failures := 0
	failing := func(evt *event.Event) error {
		mutex.Lock()
		defer mutex.Unlock()
		failures++
		return errMultilineTest
	}

	codec.Decode([]byte("hello world\n second\n third\n"), failing)

	time.Sleep(500 * time.Millisecond)

	mutex.Lock()
	if failures == 0 {
		t.Errorf("Expected the timer flush to have attempted delivery")
	}
	mutex.Unlock()

	// The buffer must still hold the record after the failed timer flushes
	check := &checkMultiline{
		expect: []checkMultilineExpect{
			{"hello world\n second\n third", []string{"multiline"}},
		},
		t: t,
	}

	if err := codec.Flush(check.Sink); err != nil {
		t.Fatalf("Retry flush failed: %s", err)
	}

	check.CheckFinalCount()

	codec.Close(nil)
}

func TestMultilineTimerUnset(t *testing.T) {
	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern": `^\s`,
			"what":    "previous",
		},
		t,
	).(*CodecMultiline)

	if codec.AutoFlushable() {
		t.Errorf("Expected codec without interval to not be auto flushable")
	}
	if codec.timer.Pending() {
		t.Errorf("Expected unset timer to not be pending")
	}
	if !codec.timer.Stopped() || !codec.timer.Finished() {
		t.Errorf("Expected unset timer to be stopped and finished")
	}
}

func TestMultilineTimerStop(t *testing.T) {
	codec := createMultilineCodec(
		map[string]interface{}{
			"pattern":             `^\s`,
			"what":                "previous",
			"auto flush interval": "10s",
		},
		t,
	).(*CodecMultiline)

	if !codec.AutoFlushable() {
		t.Errorf("Expected codec with interval to be auto flushable")
	}

	codec.Decode([]byte("hello world\n"), func(evt *event.Event) error { return nil })
	if !codec.timer.Pending() {
		t.Errorf("Expected timer to be pending after decode")
	}

	codec.Close(nil)
	if !codec.timer.Stopped() {
		t.Errorf("Expected timer to be stopped after close")
	}

	// Subsequent start must be a no-op
	codec.timer.Start()
	if codec.timer.Pending() {
		t.Errorf("Expected start after stop to be a no-op")
	}
}
