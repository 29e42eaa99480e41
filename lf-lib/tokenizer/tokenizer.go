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

package tokenizer

import (
	"bytes"
)

// Tokenizer buffers arbitrary byte chunks and yields complete
// delimiter-terminated lines, retaining any tail until the next chunk
// arrives or Flush is called
type Tokenizer struct {
	delimiter []byte
	residue   []byte
}

// NewTokenizer creates a new tokenizer splitting on the given delimiter
// An empty delimiter means the default "\n"
func NewTokenizer(delimiter string) *Tokenizer {
	if delimiter == "" {
		delimiter = "\n"
	}
	return &Tokenizer{
		delimiter: []byte(delimiter),
	}
}

// Extract appends the chunk to the internal residue and returns all complete
// lines, delimiter stripped
// The returned slices remain valid until the tokenizer is used again
func (t *Tokenizer) Extract(chunk []byte) [][]byte {
	data := chunk
	if len(t.residue) != 0 {
		data = append(t.residue, chunk...)
	}

	var lines [][]byte
	for {
		n := bytes.Index(data, t.delimiter)
		if n < 0 {
			break
		}
		lines = append(lines, data[:n])
		data = data[n+len(t.delimiter):]
	}

	// Copy the tail so the next append cannot clobber the returned lines
	t.residue = append([]byte(nil), data...)

	return lines
}

// Flush returns the residue and clears it
func (t *Tokenizer) Flush() []byte {
	residue := t.residue
	t.residue = nil
	return residue
}

// BufferedLen returns the current number of bytes awaiting a delimiter
func (t *Tokenizer) BufferedLen() int {
	return len(t.residue)
}
