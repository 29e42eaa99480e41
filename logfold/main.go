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
	"flag"
	"fmt"
	"os"

	"github.com/logfold/logfold/lf-lib/codecs"
	identity "github.com/logfold/logfold/lf-lib/codecs/identity"
	_ "github.com/logfold/logfold/lf-lib/codecs/multiline"
	_ "github.com/logfold/logfold/lf-lib/codecs/plain"
	"github.com/logfold/logfold/lf-lib/config"
	"github.com/logfold/logfold/lf-lib/core"
	"github.com/logfold/logfold/lf-lib/event"
	"gopkg.in/op/go-logging.v1"
)

const logfoldVersion = "2.0.0"

var log *logging.Logger

func init() {
	log = logging.MustGetLogger("logfold")
}

func main() {
	var version bool
	var listSupported bool
	var configTest bool
	var configFile string
	var path string

	flag.BoolVar(&version, "version", false, "Show version information")
	flag.BoolVar(&listSupported, "list-supported", false, "List the supported codecs")
	flag.BoolVar(&configTest, "config-test", false, "Test the configuration specified by -config")
	flag.StringVar(&configFile, "config", config.DefaultConfigurationFile, "The configuration file to load")
	flag.StringVar(&path, "path", "-", "The provenance path recorded on events read from stdin")

	flag.Parse()

	if version {
		fmt.Printf("logfold version %s\n", logfoldVersion)
		os.Exit(0)
	}

	if listSupported {
		fmt.Printf("Available codecs:\n")
		for _, codec := range codecs.Available() {
			fmt.Printf("  %s\n", codec)
		}
		os.Exit(0)
	}

	if configFile == "" {
		fmt.Fprintf(os.Stderr, "Please specify a configuration file with -config.\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.NewConfig()
	err := cfg.Load(configFile)

	if configTest {
		if err == nil {
			fmt.Printf("Configuration OK\n")
			os.Exit(0)
		}
		fmt.Printf("Configuration test failed: %s\n", err)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Configuration error: %s\n", err)
		os.Exit(1)
	}

	logFile, err := core.ConfigureLogging(cfg.General())
	if err != nil {
		fmt.Printf("Failed to initialise logging: %s\n", err)
		os.Exit(1)
	}

	run(cfg, path, logFile)
}

// run pumps stdin through the configured codec, writing each completed
// event as one JSON line on stdout, until EOF or a shutdown signal
func run(cfg *config.Config, path string, logFile *core.FileLogBackend) {
	sink := func(evt *event.Event) error {
		if _, err := os.Stdout.Write(evt.Bytes()); err != nil {
			return err
		}
		_, err := os.Stdout.Write([]byte{'\n'})
		return err
	}

	stream := codecs.Stream(cfg)
	identityConf := identity.Identity(cfg)

	var codec codecs.Codec
	var decode func(chunk []byte) error
	if identityConf.Enabled {
		m := identity.NewCodecMap(identityConf, stream.Codecs[0].Factory.(codecs.Factory), nil)
		codec = m
		decode = func(chunk []byte) error {
			return m.DecodeIdentity(path, chunk, sink)
		}
	} else {
		c := stream.NewCodec()
		codec = c
		listener := codecs.NewListenerAdapter(path, sink)
		decode = func(chunk []byte) error {
			return c.Accept(listener.WithData(chunk))
		}
	}

	signalChan := make(chan os.Signal, 1)
	registerSignals(signalChan)

	chunkChan := make(chan []byte)
	go func() {
		for {
			buffer := make([]byte, 16384)
			n, err := os.Stdin.Read(buffer)
			if n > 0 {
				chunkChan <- buffer[:n]
			}
			if err != nil {
				close(chunkChan)
				return
			}
		}
	}()

	log.Notice("logfold %s pipeline ready", logfoldVersion)

ReadLoop:
	for {
		select {
		case chunk, ok := <-chunkChan:
			if !ok {
				break ReadLoop
			}
			if err := decode(chunk); err != nil {
				log.Error("Decode failed: %s", err)
			}
		case sig := <-signalChan:
			if isReloadSignal(sig) {
				if logFile != nil {
					logFile.Reopen()
					log.Notice("Log file reopened")
				}
				continue
			}
			log.Notice("Initiating shutdown")
			break ReadLoop
		}
	}

	// Drain pending records before exit
	if err := codec.Close(sink); err != nil {
		log.Error("Close failed: %s", err)
	}

	log.Notice("Exiting")

	if logFile != nil {
		logFile.Close()
	}
}
