/*
 * Copyright 2012-2021 Jason Woods and contributors
 *
 * This file is a modification of code from Logstash Forwarder.
 * Copyright 2012-2013 Jordan Sissel and contributors.
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
	"reflect"
	"strings"
	"time"

	"gopkg.in/op/go-logging.v1"
)

// Defaulter is implemented by configuration structures that have default
// values to set before population
type Defaulter interface {
	Defaults()
}

// Initer is implemented by configuration structures that need to resolve
// factories or other registrations once their values are populated
type Initer interface {
	Init(p *Parser, path string) error
}

// Validator is implemented by configuration structures that validate
// themselves after population
type Validator interface {
	Validate(p *Parser, path string) error
}

// Parser populates configuration structures from raw configuration data
// using the "config" struct tags and the lifecycle interfaces
type Parser struct {
	config *Config
}

// NewParser creates a new parser for the given configuration
func NewParser(cfg *Config) *Parser {
	return &Parser{config: cfg}
}

// Config returns the root configuration being parsed
func (p *Parser) Config() *Config {
	return p.config
}

// Populate populates the given configuration structure, which must be a
// pointer to struct, from the given raw configuration data
// Defaults is called before population and Init and Validate after
// When reportUnused is set, options that match no struct field and cannot be
// captured by an Unused field raise an error, flagging typos to the user
func (p *Parser) Populate(target interface{}, rawConfig map[string]interface{}, configPath string, reportUnused bool) (err error) {
	vTarget := reflect.ValueOf(target)
	if vTarget.Kind() != reflect.Ptr || vTarget.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("Invalid configuration structure given for %s: %T", configPath, target))
	}

	if defaulter, ok := target.(Defaulter); ok {
		defaulter.Defaults()
	}

	used := make(map[string]bool)
	if err = p.populateStruct(vTarget.Elem(), rawConfig, configPath, used); err != nil {
		return
	}

	unused := make(map[string]interface{})
	for key, value := range rawConfig {
		if !used[key] {
			unused[key] = value
		}
	}

	if !p.storeUnused(vTarget.Elem(), unused) && reportUnused {
		if err = p.ReportUnusedConfig(unused, configPath); err != nil {
			return
		}
	}

	if initer, ok := target.(Initer); ok {
		if err = initer.Init(p, configPath); err != nil {
			return
		}
	}

	if validator, ok := target.(Validator); ok {
		if err = validator.Validate(p, configPath); err != nil {
			return
		}
	}

	return nil
}

// populateStruct fills each tagged field of the structure, recursing into
// embedded structures tagged ",embed"
func (p *Parser) populateStruct(vStruct reflect.Value, rawConfig map[string]interface{}, configPath string, used map[string]bool) (err error) {
	tStruct := vStruct.Type()

	for i := 0; i < tStruct.NumField(); i++ {
		field := tStruct.Field(i)
		tag := field.Tag.Get("config")
		if tag == "" {
			continue
		}

		if tag == ",embed" {
			if field.Type.Kind() != reflect.Struct {
				panic(fmt.Sprintf("Embedded configuration entry is not a struct: %s%s", configPath, field.Name))
			}
			if err = p.populateStruct(vStruct.Field(i), rawConfig, configPath, used); err != nil {
				return
			}
			continue
		}

		raw, ok := rawConfig[tag]
		if !ok {
			continue
		}
		used[tag] = true

		log.Debug("populateEntry: %s (%s%s)", field.Type.String(), configPath, tag)

		if err = p.populateEntry(vStruct.Field(i), raw, fmt.Sprintf("%s%s", configPath, tag)); err != nil {
			return
		}
	}

	return nil
}

// storeUnused places unrecognised options into an untagged Unused field when
// the structure carries one, so factories can populate themselves later
func (p *Parser) storeUnused(vStruct reflect.Value, unused map[string]interface{}) bool {
	vUnused := vStruct.FieldByName("Unused")
	if !vUnused.IsValid() || vUnused.Kind() != reflect.Map {
		return false
	}

	vUnused.Set(reflect.ValueOf(unused))
	return true
}

// populateEntry handles population of a single value from its raw form
func (p *Parser) populateEntry(vField reflect.Value, raw interface{}, configPath string) (err error) {
	switch vField.Interface().(type) {
	case time.Duration:
		var duration time.Duration
		if duration, err = parseDuration(raw); err != nil {
			return fmt.Errorf("Option %s is not a valid duration (number of seconds or duration syntax): %s", configPath, err)
		}
		vField.Set(reflect.ValueOf(duration))
		return nil
	case Size:
		var size Size
		if size, err = parseSizeValue(raw); err != nil {
			return fmt.Errorf("Option %s is not a valid size (number of bytes or a value such as \"10 MiB\"): %s", configPath, err)
		}
		vField.Set(reflect.ValueOf(size))
		return nil
	case logging.Level:
		value, ok := raw.(string)
		if !ok {
			return fmt.Errorf("Option %s is not a valid log level (critical, error, warning, notice, info, debug)", configPath)
		}
		var logLevel logging.Level
		if logLevel, err = logging.LogLevel(value); err != nil {
			return fmt.Errorf("Option %s is not a valid log level: %s", configPath, err)
		}
		vField.Set(reflect.ValueOf(logLevel))
		return nil
	}

	switch vField.Kind() {
	case reflect.String:
		value, ok := raw.(string)
		if !ok {
			return fmt.Errorf("Option %s must be a string", configPath)
		}
		vField.SetString(value)
	case reflect.Bool:
		value, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("Option %s must be a boolean", configPath)
		}
		vField.SetBool(value)
	case reflect.Int, reflect.Int64:
		var number int64
		if number, err = parseInteger(raw); err != nil {
			return fmt.Errorf("Option %s is not a valid integer: %s", configPath, err)
		}
		vField.SetInt(number)
	case reflect.Float64:
		switch value := raw.(type) {
		case float64:
			vField.SetFloat(value)
		case int:
			vField.SetFloat(float64(value))
		default:
			return fmt.Errorf("Option %s must be a number", configPath)
		}
	case reflect.Slice:
		return p.populateSlice(vField, raw, configPath)
	case reflect.Map:
		value, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("Option %s must be a key-value hash", configPath)
		}
		vField.Set(reflect.ValueOf(value))
	case reflect.Struct:
		value, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("Option %s must be a key-value hash", configPath)
		}
		return p.Populate(vField.Addr().Interface(), value, configPath+"/", true)
	default:
		panic(fmt.Sprintf("Unrecognised configuration structure encountered: %s (Kind: %s)", vField.Type().Name(), vField.Kind().String()))
	}

	return nil
}

// populateSlice fills a slice field from a raw configuration array
// A single scalar is accepted in place of a one-entry array
func (p *Parser) populateSlice(vSlice reflect.Value, raw interface{}, configPath string) (err error) {
	rawList, ok := raw.([]interface{})
	if !ok {
		rawList = []interface{}{raw}
	}

	result := reflect.MakeSlice(vSlice.Type(), 0, len(rawList))
	for i, rawItem := range rawList {
		vItem := reflect.New(vSlice.Type().Elem()).Elem()
		itemPath := fmt.Sprintf("%s[%d]", configPath, i)

		if vItem.Kind() == reflect.Struct {
			value, ok := rawItem.(map[string]interface{})
			if !ok {
				return fmt.Errorf("Option %s must be a key-value hash", itemPath)
			}
			if err = p.Populate(vItem.Addr().Interface(), value, itemPath+"/", false); err != nil {
				return
			}
		} else if err = p.populateEntry(vItem, rawItem, itemPath); err != nil {
			return
		}

		result = reflect.Append(result, vItem)
	}

	vSlice.Set(result)
	return nil
}

// ReportUnusedConfig returns an error if the given raw configuration data
// contains any entries, flagging the first spelling mistake to the user
func (p *Parser) ReportUnusedConfig(unused map[string]interface{}, configPath string) error {
	for key := range unused {
		return fmt.Errorf("Option %s%s is not available", configPath, key)
	}
	return nil
}

// parseDuration accepts a duration as a number of seconds or as a Go
// duration string such as "300ms"
func parseDuration(raw interface{}) (time.Duration, error) {
	switch value := raw.(type) {
	case float64:
		if value < math.MinInt64 || value > math.MaxInt64 {
			return 0, fmt.Errorf("value out of range")
		}
		return time.Duration(value * float64(time.Second)), nil
	case int:
		return time.Duration(value) * time.Second, nil
	case int64:
		return time.Duration(value) * time.Second, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(value))
	}
	return 0, fmt.Errorf("unexpected %T", raw)
}

// parseInteger accepts whole numbers, rejecting fractions that some file
// formats deliver as floats
func parseInteger(raw interface{}) (int64, error) {
	switch value := raw.(type) {
	case float64:
		if math.Floor(value) != value {
			return 0, fmt.Errorf("float encountered")
		}
		return int64(value), nil
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	}
	return 0, fmt.Errorf("unexpected %T", raw)
}
