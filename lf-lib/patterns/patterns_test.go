package patterns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLibraryLoadFromReader(t *testing.T) {
	library := NewLibrary()
	err := library.LoadFromReader(strings.NewReader(`
ALL %{SOME}*
# This is a comment
SOME .
	`))
	if err != nil {
		t.Fatalf("Load from reader failed: %s", err)
	}
	if library.definitions["ALL"] != "%{SOME}*" {
		t.Fatalf("Unexpected definition: %s", library.definitions["ALL"])
	}
	if library.definitions["SOME"] != "." {
		t.Fatalf("Unexpected definition: %s", library.definitions["SOME"])
	}
}

func TestLibraryLoadFromReaderInvalid(t *testing.T) {
	library := NewLibrary()
	err := library.LoadFromReader(strings.NewReader("BROKEN\n"))
	if err == nil {
		t.Fatalf("Expected load failure for definition with no pattern")
	}
}

func TestLibraryCompile(t *testing.T) {
	library := NewLibrary()
	library.AddPattern("PREFIX", `-+`)
	matcher, err := library.Compile(`^%{PREFIX} `)
	if err != nil {
		t.Fatalf("Compile failed: %s", err)
	}
	if !matcher.Match("-- continuation") {
		t.Fatalf("Expected match")
	}
	if matcher.Match("first line") {
		t.Fatalf("Unexpected match")
	}
}

func TestLibraryCompileCapture(t *testing.T) {
	library := NewLibrary()
	matcher, err := library.Compile(`^%{INT:indent}:`)
	if err != nil {
		t.Fatalf("Compile failed: %s", err)
	}
	if !matcher.Match("42: value") {
		t.Fatalf("Expected match")
	}
}

func TestLibraryCompileBuiltin(t *testing.T) {
	library := NewLibrary()
	matcher, err := library.Compile(`^%{TIMESTAMP_ISO8601}`)
	if err != nil {
		t.Fatalf("Compile failed: %s", err)
	}
	if !matcher.Match("2020-11-03T10:04:05Z some message") {
		t.Fatalf("Expected ISO8601 line to match")
	}
	if matcher.Match("    at org.example.Main.run(Main.java:5)") {
		t.Fatalf("Unexpected match for stack trace line")
	}
}

func TestLibraryCompileMissing(t *testing.T) {
	library := NewLibrary()
	_, err := library.Compile(`^%{NOSUCHPATTERN}`)
	if err == nil {
		t.Fatalf("Expected compile failure")
	}
	missingErr, ok := err.(*ErrorMissingPattern)
	if !ok {
		t.Fatalf("Unexpected error type: %s", err)
	}
	if missingErr.Missing != "NOSUCHPATTERN" {
		t.Fatalf("Unexpected missing name: %s", missingErr.Missing)
	}
}

func TestLibraryCompileCycle(t *testing.T) {
	library := NewLibrary()
	library.AddPattern("LOOPA", `%{LOOPB}`)
	library.AddPattern("LOOPB", `%{LOOPA}`)
	_, err := library.Compile(`%{LOOPA}`)
	if err == nil {
		t.Fatalf("Expected compile failure for definition cycle")
	}
}

func TestLibraryLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "extra"), []byte("MARKER ^==\n"), 0644); err != nil {
		t.Fatalf("Failed to write pattern file: %s", err)
	}

	library := NewLibrary()
	if err := library.LoadFromDir(dir); err != nil {
		t.Fatalf("Load from dir failed: %s", err)
	}

	matcher, err := library.Compile(`%{MARKER}`)
	if err != nil {
		t.Fatalf("Compile failed: %s", err)
	}
	if !matcher.Match("== section") {
		t.Fatalf("Expected match from directory pattern")
	}
}
