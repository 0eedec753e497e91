/*
 * config.go, part of gxtb.
 *
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rmera/gxtb/qm"
)

//Config holds the settings for gxtbcalc. They are read, in increasing
//order of precedence, from the defaults, a TOML file, the environment
//and the command line.
type Config struct {
	Command   string `toml:"command"`
	CoordFile string `toml:"coordfile"`
	Scratch   string `toml:"scratch"`
	ExportDir string `toml:"exportdir"`
	Timeout   string `toml:"timeout"` //a Go duration, such as "30m"
	NCPU      int    `toml:"ncpu"`
	Trigger   string `toml:"trigger"` //both, flags or markers
	Units     string `toml:"units"`   //kcal, ev or au
	Keep      bool   `toml:"keep"`
	Archive   string `toml:"archive"`
	Verbose   bool   `toml:"verbose"`
}

//DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Command:   "gxtb",
		CoordFile: "gxtb.xyz",
		ExportDir: ".",
		Timeout:   "1h",
		Trigger:   "both",
		Units:     "kcal",
	}
}

//LoadConfig returns the default settings, overridden by those in the TOML file filename.
//An empty filename just returns the defaults.
func LoadConfig(filename string) (Config, error) {
	conf := DefaultConfig()
	if filename == "" {
		return conf, nil
	}
	cont, err := os.ReadFile(filename)
	if err != nil {
		return conf, fmt.Errorf("LoadConfig: %w", err)
	}
	if err := toml.Unmarshal(cont, &conf); err != nil {
		return conf, fmt.Errorf("LoadConfig: %s: %w", filename, err)
	}
	return conf, nil
}

//LoadEnv adds the variables in the given .env files (".env" in the working
//directory if none is given) to the environment. Variables already set are
//not overridden, and missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

//FromEnv overrides the settings with the GXTB_COMMAND, GXTB_TIMEOUT and GXTB_SCRATCH
//environment variables, when they are set.
func (C *Config) FromEnv() {
	if v := os.Getenv("GXTB_COMMAND"); v != "" {
		C.Command = v
	}
	if v := os.Getenv("GXTB_TIMEOUT"); v != "" {
		C.Timeout = v
	}
	if v := os.Getenv("GXTB_SCRATCH"); v != "" {
		C.Scratch = v
	}
}

func parseTrigger(s string) (qm.Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return qm.TriggerBoth, nil
	case "flags":
		return qm.TriggerFlags, nil
	case "markers":
		return qm.TriggerMarkers, nil
	}
	return qm.TriggerBoth, fmt.Errorf("unknown trigger %q, use both, flags or markers", s)
}

//Handle returns a g-xTB handle set up according to C, and the units requested.
func (C Config) Handle() (*qm.GXTBHandle, qm.Units, error) {
	errid := "Config/Handle"
	units, err := qm.ParseUnits(C.Units)
	if err != nil {
		return nil, units, fmt.Errorf("%s: %w", errid, err)
	}
	trigger, err := parseTrigger(C.Trigger)
	if err != nil {
		return nil, units, fmt.Errorf("%s: %w", errid, err)
	}
	var timeout time.Duration
	if C.Timeout != "" {
		timeout, err = time.ParseDuration(C.Timeout)
		if err != nil {
			return nil, units, fmt.Errorf("%s: timeout: %w", errid, err)
		}
		if timeout < 0 {
			return nil, units, fmt.Errorf("%s: negative timeout %s", errid, C.Timeout)
		}
	}
	if C.NCPU < 0 {
		return nil, units, fmt.Errorf("%s: negative number of CPUs: %d", errid, C.NCPU)
	}
	H := qm.NewGXTBHandle()
	H.SetCommand(C.Command)
	if C.CoordFile != "" {
		H.SetCoordFile(C.CoordFile)
	}
	H.SetScratchDir(C.Scratch)
	if C.ExportDir != "" {
		H.SetExportDir(C.ExportDir)
	}
	H.SetTimeout(timeout)
	H.SetnCPU(C.NCPU)
	H.SetTrigger(trigger)
	H.SetKeepFiles(C.Keep)
	H.SetArchive(C.Archive)
	H.SetVerbose(C.Verbose)
	return H, units, nil
}
