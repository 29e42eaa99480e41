//go:build windows

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

package main

import (
	"os"
	"os/signal"
)

// registerSignals sets up the signals to monitor
// Windows only provides interrupt
func registerSignals(signalChan chan os.Signal) {
	signal.Notify(signalChan, os.Interrupt)
}

// isReloadSignal always returns false as there is no reload signal on
// Windows
func isReloadSignal(sig os.Signal) bool {
	return false
}
