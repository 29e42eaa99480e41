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

package patterns

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	refMatcher = regexp.MustCompile(`%\{([^}]+)\}`)
)

// Library holds a collection of named sub-patterns that continuation patterns
// can reference using the %{NAME} syntax
type Library struct {
	definitions map[string]string
}

// ErrorMissingPattern is returned when a pattern cannot be compiled as it
// references a named pattern that was never loaded
// The name of the missing pattern is set inside the Missing field
type ErrorMissingPattern struct {
	Missing string
}

// Error returns an error message for the missing pattern
func (e *ErrorMissingPattern) Error() string {
	return fmt.Sprintf("Referenced pattern was not found: %s", e.Missing)
}

// NewLibrary returns a new Library preloaded with the builtin patterns
func NewLibrary() *Library {
	l := &Library{
		definitions: make(map[string]string),
	}
	if err := l.LoadFromReader(strings.NewReader(builtinPatterns)); err != nil {
		panic(fmt.Sprintf("Builtin patterns failed to load: %s", err))
	}
	return l
}

// AddPattern adds a new pattern definition to the library, replacing any
// existing definition of the same name
// References inside the pattern are not resolved until Compile
func (l *Library) AddPattern(name string, pattern string) {
	l.definitions[name] = pattern
}

// LoadFromFile loads pattern definitions from the requested file
// Each line of the file should be in the format: "NAME PATTERN"
// Empty lines and lines starting with "#" are skipped
func (l *Library) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		file.Close()
	}()

	return l.LoadFromReader(file)
}

// LoadFromReader loads pattern definitions from a reader, see LoadFromFile
func (l *Library) LoadFromReader(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		split := strings.SplitN(line, " ", 2)
		if len(split) != 2 || split[0] == "" || strings.TrimSpace(split[1]) == "" {
			return fmt.Errorf("Invalid pattern definition: %s", line)
		}

		l.AddPattern(split[0], strings.TrimSpace(split[1]))
	}

	return scanner.Err()
}

// LoadFromDir loads every pattern file found below the given directory
// The path may itself be a doublestar glob, so both "patterns" and
// "patterns/**/*.conf" are accepted
func (l *Library) LoadFromDir(path string) error {
	glob := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		glob = filepath.Join(path, "**", "*")
	}

	matches, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return fmt.Errorf("Invalid patterns directory glob '%s': %s", path, err)
	}

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return err
		}
		if info.IsDir() {
			continue
		}

		log.Debug("Loading patterns from %s", match)
		if err := l.LoadFromFile(match); err != nil {
			return fmt.Errorf("Failed to load patterns from %s: %s", match, err)
		}
	}

	return nil
}

// Compile expands all %{NAME} references in the given pattern using the
// library and compiles the result into a Matcher
// References may specify a capture name using the %{NAME:capture} syntax
func (l *Library) Compile(pattern string) (*Matcher, error) {
	expanded, err := l.expand(pattern, nil)
	if err != nil {
		return nil, err
	}

	matcher, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("Failed to compile pattern '%s': %s", pattern, err)
	}

	return &Matcher{source: pattern, matcher: matcher}, nil
}

// expand performs a single level of reference expansion, recursing for
// references whose definitions contain further references
// The seen list carries the reference names already being expanded so that
// definition cycles are reported rather than recursed into forever
func (l *Library) expand(pattern string, seen []string) (string, error) {
	results := refMatcher.FindAllStringSubmatchIndex(pattern, -1)
	if results == nil {
		return pattern, nil
	}

	var output strings.Builder
	lastOffset := 0
	for _, result := range results {
		spec := strings.SplitN(pattern[result[2]:result[3]], ":", 2)

		definition, ok := l.definitions[spec[0]]
		if !ok {
			return "", &ErrorMissingPattern{Missing: spec[0]}
		}

		for _, previous := range seen {
			if previous == spec[0] {
				return "", fmt.Errorf("Pattern reference cycle detected at %%{%s}", spec[0])
			}
		}

		expanded, err := l.expand(definition, append(seen, spec[0]))
		if err != nil {
			return "", err
		}

		output.WriteString(pattern[lastOffset:result[0]])
		if len(spec) > 1 {
			output.WriteString(fmt.Sprintf("(?P<%s>%s)", spec[1], expanded))
		} else {
			output.WriteString(fmt.Sprintf("(?:%s)", expanded))
		}
		lastOffset = result[1]
	}
	output.WriteString(pattern[lastOffset:])

	return output.String(), nil
}

// Matcher is a compiled continuation pattern
type Matcher struct {
	source  string
	matcher *regexp.Regexp
}

// Match reports whether the line matches anywhere
// It performs no allocations beyond those of the regexp engine
func (m *Matcher) Match(line string) bool {
	return m.matcher.MatchString(line)
}

// String returns the original pattern source before expansion
func (m *Matcher) String() string {
	return m.source
}
