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

package charset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	modeUTF8 = iota
	modeBinary
	modeDecode
)

// Converter converts bytes of a declared source encoding into valid UTF-8
// Invalid input sequences are substituted with the replacement character so
// the output is always safe to treat as a string
type Converter struct {
	name     string
	mode     int
	encoding encoding.Encoding
}

// NewConverter resolves the declared charset name into a converter
// Unknown charset names fail, which is fatal at registration time
func NewConverter(name string) (*Converter, error) {
	c := &Converter{name: name}

	switch strings.ToUpper(name) {
	case "", "UTF-8", "UTF8":
		c.mode = modeUTF8
	case "ASCII-8BIT", "BINARY":
		c.mode = modeBinary
	default:
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("Unknown charset '%s'", name)
		}
		c.mode = modeDecode
		c.encoding = enc
	}

	return c, nil
}

// Name returns the declared charset name
func (c *Converter) Name() string {
	return c.name
}

// Convert returns the given bytes as valid UTF-8, substituting the
// replacement character for any invalid input sub-sequence
// ASCII input is always byte-preserved
func (c *Converter) Convert(data []byte) string {
	switch c.mode {
	case modeUTF8:
		if utf8.Valid(data) {
			return string(data)
		}
		return sanitizeUTF8(data)
	case modeBinary:
		return sanitizeBinary(data)
	}

	// A fresh decoder each call keeps the converter safe for use from the
	// timer and reaper routines alongside decode
	decoded, err := c.encoding.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) {
		return sanitizeUTF8(decoded)
	}
	return string(decoded)
}

// sanitizeUTF8 replaces each invalid byte of a UTF-8 stream with the
// replacement character, preserving all valid sequences
func sanitizeUTF8(data []byte) string {
	var builder strings.Builder
	builder.Grow(len(data))
	for len(data) != 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			builder.WriteRune(utf8.RuneError)
			data = data[1:]
			continue
		}
		builder.Write(data[:size])
		data = data[size:]
	}
	return builder.String()
}

// sanitizeBinary passes ASCII through and replaces every other byte
func sanitizeBinary(data []byte) string {
	var builder strings.Builder
	builder.Grow(len(data))
	for _, b := range data {
		if b < utf8.RuneSelf {
			builder.WriteByte(b)
			continue
		}
		builder.WriteRune(utf8.RuneError)
	}
	return builder.String()
}
