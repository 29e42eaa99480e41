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

package core

import (
	"io"
	golog "log"
	"os"

	"github.com/logfold/logfold/lf-lib/config"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

func init() {
	log = logging.MustGetLogger("core")
}

// FileLogBackend is a logging backend writing to a reopenable log file
type FileLogBackend struct {
	file *os.File
	path string
}

func newFileLogBackend(path string, prefix string, flag int) (*FileLogBackend, error) {
	ret := &FileLogBackend{
		path: path,
	}

	golog.SetPrefix(prefix)
	golog.SetFlags(flag)

	err := ret.Reopen()
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// Log writes a log record to the file
func (f *FileLogBackend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	golog.Print(rec.Formatted(calldepth + 1))
	return nil
}

// Reopen closes and reopens the log file, so external rotation can hand us
// a fresh file on signal
func (f *FileLogBackend) Reopen() (err error) {
	var newFile *os.File

	newFile, err = os.OpenFile(f.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0640)
	if err != nil {
		return
	}

	// Switch to new output before closing
	golog.SetOutput(newFile)

	if f.file != nil {
		f.file.Close()
	}

	f.file = newFile

	return nil
}

// Close the log file
func (f *FileLogBackend) Close() {
	// Discard logs before closing
	golog.SetOutput(io.Discard)

	if f.file != nil {
		f.file.Close()
	}

	f.file = nil
}

// ConfigureLogging enables the logging backends selected by the general
// configuration and sets the logging level
// It returns the file backend, if one was configured, so the caller can
// Reopen it on signal and Close it at shutdown
func ConfigureLogging(general *config.General) (fileBackend *FileLogBackend, err error) {
	backends := make([]logging.Backend, 0, 2)

	// Log to stderr so stdout stays clean for emitted events
	if general.LogStdout {
		backends = append(backends, logging.NewLogBackend(os.Stderr, "", golog.LstdFlags|golog.Lmicroseconds))
	}

	if general.LogFile != "" {
		fileBackend, err = newFileLogBackend(general.LogFile, "", golog.LstdFlags|golog.Lmicroseconds)
		if err != nil {
			return
		}

		backends = append(backends, fileBackend)
	}

	// Set backends BEFORE log level (or we reset log level)
	logging.SetBackend(backends...)
	logging.SetLevel(general.LogLevel, "")

	return
}
