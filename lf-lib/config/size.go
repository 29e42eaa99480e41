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

package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Size is a configuration value measured in bytes
// It populates from a plain number of bytes or from a string with a binary
// unit suffix, such as "2mb" or "10 MiB"
type Size int64

var sizeMatcher = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([kKmMgGtT])?(?:[iI]?[bB])?$`)

// ParseSize parses a size string
func ParseSize(value string) (Size, error) {
	groups := sizeMatcher.FindStringSubmatch(strings.TrimSpace(value))
	if groups == nil {
		return 0, fmt.Errorf("'%s' is not a valid size", value)
	}

	number, err := strconv.ParseFloat(groups[1], 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid size: %s", value, err)
	}

	switch strings.ToLower(groups[2]) {
	case "k":
		number *= 1 << 10
	case "m":
		number *= 1 << 20
	case "g":
		number *= 1 << 30
	case "t":
		number *= 1 << 40
	}

	return Size(number), nil
}

// parseSizeValue accepts a size as a raw number of bytes or a string
func parseSizeValue(raw interface{}) (Size, error) {
	switch value := raw.(type) {
	case float64:
		if math.Floor(value) != value {
			return 0, fmt.Errorf("fractional byte count")
		}
		return Size(value), nil
	case int:
		return Size(value), nil
	case int64:
		return Size(value), nil
	case string:
		return ParseSize(value)
	}
	return 0, fmt.Errorf("unexpected %T", raw)
}
