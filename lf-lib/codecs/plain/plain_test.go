package codecs

import (
	"testing"

	"github.com/logfold/logfold/lf-lib/codecs"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/event"
)

func createPlainCodec(t *testing.T) codecs.Codec {
	factory, err := NewPlainCodecFactory(config.NewParser(config.NewConfig()), "", nil, "plain")
	if err != nil {
		t.Errorf("Failed to create plain codec: %s", err)
		t.FailNow()
	}
	return codecs.NewCodec(factory)
}

func TestPlainDecode(t *testing.T) {
	codec := createPlainCodec(t)

	var messages []string
	sink := func(evt *event.Event) error {
		messages = append(messages, evt.Message())
		return nil
	}

	if err := codec.Decode([]byte("first\nsecond\ntail"), sink); err != nil {
		t.Fatalf("Decode failed: %s", err)
	}
	if len(messages) != 2 || messages[0] != "first" || messages[1] != "second" {
		t.Fatalf("Unexpected messages: %v", messages)
	}

	// Close emits the partial tail
	if err := codec.Close(sink); err != nil {
		t.Fatalf("Close failed: %s", err)
	}
	if len(messages) != 3 || messages[2] != "tail" {
		t.Fatalf("Unexpected messages after close: %v", messages)
	}
}

func TestPlainAccept(t *testing.T) {
	codec := createPlainCodec(t)

	var paths []string
	listener := codecs.NewListenerAdapter("plain.log", func(evt *event.Event) error {
		paths = append(paths, evt.Path())
		return nil
	})

	if err := codec.Accept(listener.WithData([]byte("a line\n"))); err != nil {
		t.Fatalf("Accept failed: %s", err)
	}
	if len(paths) != 1 || paths[0] != "plain.log" {
		t.Fatalf("Unexpected paths: %v", paths)
	}
}
