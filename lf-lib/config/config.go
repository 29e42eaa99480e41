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
	"path"
	"sort"
)

var (
	// DefaultConfigurationFile is a path to the default configuration file to
	// load, this can be changed during init()
	DefaultConfigurationFile = ""
)

// SectionCreator creates new Section structures
type SectionCreator func() interface{}

// registeredSectionCreators contains a list of registered external Section
// creators that should be processed in all new Config structures
var registeredSectionCreators = make(map[string]SectionCreator)

// Config holds the configuration
type Config struct {
	Sections map[string]interface{}
}

// NewConfig creates a new, empty, configuration structure
func NewConfig() *Config {
	c := &Config{
		Sections: make(map[string]interface{}),
	}

	for name, creator := range registeredSectionCreators {
		c.Sections[name] = creator()
	}

	return c
}

// Section returns the requested configuration section, or nil if it is not
// registered
func (c *Config) Section(name string) interface{} {
	ret, ok := c.Sections[name]
	if !ok {
		return nil
	}

	return ret
}

// loadFile detects the extension of the given file and loads it using the
// relevant load function
func (c *Config) loadFile(filePath string, rawConfig *map[string]interface{}) error {
	ext := path.Ext(filePath)

	switch ext {
	case ".json":
		return c.loadJSONFile(filePath, rawConfig)
	case ".conf":
		return c.loadJSONFile(filePath, rawConfig)
	case ".yaml":
		return c.loadYAMLFile(filePath, rawConfig)
	case ".yml":
		return c.loadYAMLFile(filePath, rawConfig)
	}

	return fmt.Errorf("File extension '%s' is not within the known extensions: conf, json, yaml", ext)
}

// Load the configuration from the given file
// Each registered section is populated, defaulted and validated; sections
// absent from the file still receive their defaults
func (c *Config) Load(path string) (err error) {
	rawConfig := make(map[string]interface{})
	if err = c.loadFile(path, &rawConfig); err != nil {
		return
	}

	return c.populate(rawConfig)
}

// LoadData populates the configuration from already parsed data, reporting
// errors on spelling mistakes etc. It is used by Load and directly by tests
func (c *Config) LoadData(rawConfig map[string]interface{}) error {
	return c.populate(rawConfig)
}

func (c *Config) populate(rawConfig map[string]interface{}) (err error) {
	parser := NewParser(c)

	// Iterate sections in a stable order so error reporting is deterministic
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var sectionConfig map[string]interface{}
		if raw, ok := rawConfig[name]; ok {
			if sectionConfig, ok = raw.(map[string]interface{}); !ok {
				return fmt.Errorf("Configuration section /%s must be a key-value hash", name)
			}
			delete(rawConfig, name)
		}

		if err = parser.Populate(c.Sections[name], sectionConfig, fmt.Sprintf("/%s/", name), true); err != nil {
			return
		}
	}

	for name := range rawConfig {
		return fmt.Errorf("Configuration section /%s is not recognised", name)
	}

	return nil
}

// RegisterSection registers a new Section creator which will be used to
// create new sections that will be available via Section() in all created
// Config structures
func RegisterSection(name string, creator SectionCreator) {
	registeredSectionCreators[name] = creator
}
