// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config is the flag/env/file-driven boot configuration for
// cmd/stubsctl, the Go-native stand-in for the boot-loader-supplied
// cmdline string (spec.md §6). It follows gcsfuse's cfg package: cobra
// flags bound into a single viper instance, unmarshaled into one struct.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved boot configuration, after flags, a config
// file (if any) and environment variables ("STUBSCTL_" prefix) have all
// been merged by viper's usual precedence.
type Config struct {
	Cores int `mapstructure:"cores"`

	Disk DiskConfig `mapstructure:"disk"`
	GDB  GDBConfig  `mapstructure:"gdb"`
	Log  LogConfig  `mapstructure:"log"`
}

// DiskConfig describes the single Minix-formatted block device the kernel
// mounts at boot (spec.md §7: "exactly one mounted filesystem").
type DiskConfig struct {
	ImagePath string `mapstructure:"image-path"`
	BlockSize int    `mapstructure:"block-size"`
}

// GDBConfig selects how (or whether) the remote debug stub of spec.md §4.7
// is exposed: a TCP listen address, a real serial port, or neither.
type GDBConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen-addr"`
	SerialPort string `mapstructure:"serial-port"`
	SerialBaud int    `mapstructure:"serial-baud"`
}

// LogConfig mirrors internal/logging.Config, kept separate so this package
// does not need to import internal/logging just to describe it.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file-path"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
}

// BindFlags registers every flag on flagSet and binds it into v, the way
// gcsfuse's cfg.BindFlags binds pflags into the package-level viper
// instance. Call once per process, before v.Unmarshal.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	flagSet.Int("cores", 1, "Number of simulated CPU cores to boot.")
	if err := v.BindPFlag("cores", flagSet.Lookup("cores")); err != nil {
		return err
	}

	flagSet.String("disk-image", "", "Path to the Minix-formatted disk image to mount.")
	if err := v.BindPFlag("disk.image-path", flagSet.Lookup("disk-image")); err != nil {
		return err
	}

	flagSet.Int("disk-block-size", 1024, "Block size of the disk image, in bytes.")
	if err := v.BindPFlag("disk.block-size", flagSet.Lookup("disk-block-size")); err != nil {
		return err
	}

	flagSet.Bool("gdb-enabled", false, "Expose the GDB remote serial protocol stub.")
	if err := v.BindPFlag("gdb.enabled", flagSet.Lookup("gdb-enabled")); err != nil {
		return err
	}

	flagSet.String("gdb-listen-addr", "localhost:1234", "TCP address the GDB stub listens on.")
	if err := v.BindPFlag("gdb.listen-addr", flagSet.Lookup("gdb-listen-addr")); err != nil {
		return err
	}

	flagSet.String("gdb-serial-port", "", "Real serial port to use instead of TCP (e.g. /dev/ttyUSB0).")
	if err := v.BindPFlag("gdb.serial-port", flagSet.Lookup("gdb-serial-port")); err != nil {
		return err
	}

	flagSet.Int("gdb-serial-baud", 115200, "Baud rate for --gdb-serial-port.")
	if err := v.BindPFlag("gdb.serial-baud", flagSet.Lookup("gdb-serial-baud")); err != nil {
		return err
	}

	flagSet.String("log-level", "info", "One of debug, info, warn, error.")
	if err := v.BindPFlag("log.level", flagSet.Lookup("log-level")); err != nil {
		return err
	}

	flagSet.String("log-file", "", "Rotate kernel log lines through this file instead of stderr.")
	if err := v.BindPFlag("log.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}

// Load unmarshals v's merged flag/file/env state into a Config and runs
// Validate over it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that would otherwise fail deep inside boot
// with a less helpful error, the same role gcsfuse's validateConfig plays
// in cmd/root.go.
func (c Config) Validate() error {
	if c.Cores < 1 {
		return fmt.Errorf("cores must be >= 1, got %d", c.Cores)
	}
	if c.Disk.ImagePath == "" {
		return fmt.Errorf("disk.image-path is required")
	}
	if c.Disk.BlockSize <= 0 {
		return fmt.Errorf("disk.block-size must be positive, got %d", c.Disk.BlockSize)
	}
	if c.GDB.Enabled && c.GDB.ListenAddr == "" && c.GDB.SerialPort == "" {
		return fmt.Errorf("gdb.enabled requires either gdb.listen-addr or gdb.serial-port")
	}
	if c.GDB.SerialPort != "" && c.GDB.SerialBaud <= 0 {
		return fmt.Errorf("gdb.serial-baud must be positive, got %d", c.GDB.SerialBaud)
	}
	return nil
}
