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
	"os"

	"gopkg.in/yaml.v2"
)

// loadYAMLFile loads the given YAML format file
func (c *Config) loadYAMLFile(path string, rawConfig *map[string]interface{}) (err error) {
	buffer, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Failed to read config file: %s", err)
	}

	loaded := make(map[interface{}]interface{})
	if err = yaml.Unmarshal(buffer, &loaded); err != nil {
		return fmt.Errorf("Failed to parse config file: %s", err)
	}

	fixed, err := fixMapInterfaceKeys("/", loaded)
	if err != nil {
		return err
	}

	*rawConfig = fixed
	return nil
}

// fixMapValue converts any map entries where the keys are interface{} values
// into map entries where the key is a string, recursing through hashes and
// arrays. It returns an error if any key is found that is not a string
// This is important as the yaml parser produces interface{} keys which the
// reflection parser and json.Encode cannot work with
func fixMapValue(path string, value interface{}) (interface{}, error) {
	switch item := value.(type) {
	case map[interface{}]interface{}:
		return fixMapInterfaceKeys(path, item)
	case []interface{}:
		for i, entry := range item {
			fixed, err := fixMapValue(fmt.Sprintf("%s[%d]", path, i), entry)
			if err != nil {
				return nil, err
			}
			item[i] = fixed
		}
		return item, nil
	}
	return value, nil
}

func fixMapInterfaceKeys(path string, value map[interface{}]interface{}) (map[string]interface{}, error) {
	fixedMap := make(map[string]interface{})

	for k, v := range value {
		ks, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("Invalid non-string key at %s", path)
		}

		fixed, err := fixMapValue(path+"/"+ks, v)
		if err != nil {
			return nil, err
		}
		fixedMap[ks] = fixed
	}

	return fixedMap, nil
}
