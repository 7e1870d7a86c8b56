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

package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args []string) Config {
	t.Helper()
	v := viper.New()
	fs := pflag.NewFlagSet("stubsctl", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse(args))

	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := parse(t, []string{"--disk-image=disk.img"})

	assert.Equal(t, 1, cfg.Cores)
	assert.Equal(t, "disk.img", cfg.Disk.ImagePath)
	assert.Equal(t, 1024, cfg.Disk.BlockSize)
	assert.Equal(t, "localhost:1234", cfg.GDB.ListenAddr)
	assert.Equal(t, 115200, cfg.GDB.SerialBaud)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.GDB.Enabled)
}

func TestLoadOverridesFromFlags(t *testing.T) {
	cfg := parse(t, []string{
		"--disk-image=disk.img",
		"--cores=4",
		"--gdb-enabled",
		"--gdb-serial-port=/dev/ttyUSB0",
		"--gdb-serial-baud=9600",
		"--log-level=debug",
	})

	assert.Equal(t, 4, cfg.Cores)
	assert.True(t, cfg.GDB.Enabled)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GDB.SerialPort)
	assert.Equal(t, 9600, cfg.GDB.SerialBaud)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsMissingDiskImage(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("stubsctl", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse(nil))

	_, err := Load(v)
	require.Error(t, err)
}

func TestValidateRejectsZeroCores(t *testing.T) {
	cfg := Config{Cores: 0, Disk: DiskConfig{ImagePath: "disk.img", BlockSize: 1024}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEnabledGDBWithoutTransport(t *testing.T) {
	cfg := Config{
		Cores: 1,
		Disk:  DiskConfig{ImagePath: "disk.img", BlockSize: 1024},
		GDB:   GDBConfig{Enabled: true},
	}
	require.Error(t, cfg.Validate())
}
