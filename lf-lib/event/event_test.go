package event

import (
	"strings"
	"testing"
	"time"
)

func TestEventDefaults(t *testing.T) {
	evt := NewEvent(map[string]interface{}{"message": "hello"})
	if evt.Message() != "hello" {
		t.Fatalf("Unexpected message: %s", evt.Message())
	}
	if _, ok := evt.Data()["@timestamp"].(Timestamp); !ok {
		t.Fatalf("Expected @timestamp to be normalised")
	}
	if len(evt.Tags()) != 0 {
		t.Fatalf("Expected empty tag set, got: %v", evt.Tags())
	}
}

func TestEventTags(t *testing.T) {
	evt := NewEvent(map[string]interface{}{"message": "hello"})
	evt.AddTag("multiline")
	evt.AddTag("multiline")
	evt.AddTag("another")
	if len(evt.Tags()) != 2 {
		t.Fatalf("Unexpected tag count: %d", len(evt.Tags()))
	}
	if !evt.HasTag("multiline") {
		t.Fatalf("Expected multiline tag")
	}
	evt.RemoveTag("another")
	if evt.HasTag("another") {
		t.Fatalf("Expected another tag to be removed")
	}
	evt.RemoveTag("missing")
	if len(evt.Tags()) != 1 {
		t.Fatalf("Unexpected tag count: %d", len(evt.Tags()))
	}
}

func TestEventTagsOrdered(t *testing.T) {
	evt := NewEvent(map[string]interface{}{"message": "hello"})
	evt.AddTag("multiline")
	evt.AddTag("multiline_codec_max_lines_reached")
	evt.AddTag("another")
	tags := evt.Tags()
	if tags[0] != "another" || tags[1] != "multiline" || tags[2] != "multiline_codec_max_lines_reached" {
		t.Fatalf("Tags are not held in sorted order: %v", tags)
	}
}

func TestEventTagsNormalise(t *testing.T) {
	evt := NewEvent(map[string]interface{}{"message": "hello", "tags": "single"})
	if !evt.HasTag("single") {
		t.Fatalf("Expected string tags entry to be normalised")
	}
	evt = NewEvent(map[string]interface{}{"message": "hello", "tags": []string{"one", "two"}})
	if !evt.HasTag("one") || !evt.HasTag("two") {
		t.Fatalf("Expected string list tags entry to be normalised")
	}
	evt = NewEvent(map[string]interface{}{"message": "hello", "tags": 42})
	if !evt.HasTag("_tags_parse_failure") {
		t.Fatalf("Expected tags parse failure tag")
	}
}

func TestEventBytes(t *testing.T) {
	evt := NewEvent(map[string]interface{}{"message": "hello", "@timestamp": time.Unix(0, 0).UTC()})
	evt.AddTag("b")
	evt.AddTag("a")
	encoded := string(evt.Bytes())
	// Tags must encode as a sorted array
	if !strings.Contains(encoded, `"tags":["a","b"]`) {
		t.Fatalf("Unexpected encoding: %s", encoded)
	}
	evt.SetPath("test.log")
	evt.ClearCache()
	encoded = string(evt.Bytes())
	if !strings.Contains(encoded, `"path":"test.log"`) {
		t.Fatalf("Unexpected encoding after path set: %s", encoded)
	}
}
