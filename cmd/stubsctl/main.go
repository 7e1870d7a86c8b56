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

// Command stubsctl boots the kernel: it parses flags/env/config file into
// a config.Config (the Go-native analogue of the boot-loader cmdline
// string, spec.md §6), brings up the requested number of cores, mounts the
// Minix volume, installs the interrupt vector table and scheduler, and
// optionally exposes the GDB remote stub and a Prometheus /metrics
// endpoint. Structured the way gcsfuse's cmd/root.go and cmd/mount.go
// split flag parsing from the actual mount/serve loop.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/config"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/gdbstub"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/interrupt"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/logging"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/vfs"
)

// bootInstanceID is attached, as boot_id, to the log lines run() writes
// through its boot logger; one per process lifetime.
var bootInstanceID = uuid.New()

var v = viper.New()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stubsctl",
		Short: "Boot the teaching kernel against a Minix v3 disk image.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cmd.PersistentFlags().String("config-file", "", "Path to a YAML config file overlaying flags.")
	cobra.OnInitialize(func() {
		if path, _ := cmd.PersistentFlags().GetString("config-file"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "reading config file: %v\n", err)
				os.Exit(1)
			}
		}
		v.SetEnvPrefix("stubsctl")
		v.AutomaticEnv()
	})

	cmd.AddCommand(newStatusCmd())
	return cmd
}

// newStatusCmd mounts the configured disk image (opened read-write) and prints its
// mountinfo.Info-shaped mount-table entry, the Go-native analogue of
// reading /proc/mounts for a single-mount system.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the mount-table entry for the configured disk image.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			dev, err := blockdev.OpenFileDevice(cfg.Disk.ImagePath, false)
			if err != nil {
				return fmt.Errorf("opening disk image: %w", err)
			}
			defer dev.Close()
			if err := dev.SetBlockSize(cfg.Disk.BlockSize); err != nil {
				return fmt.Errorf("setting block size: %w", err)
			}

			fs, err := vfs.Mount(dev, cfg.Disk.ImagePath)
			if err != nil {
				return fmt.Errorf("mounting %s: %w", cfg.Disk.ImagePath, err)
			}
			defer fs.Umount()

			info := fs.MountInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "%d %d %s %s %s %s %s\n",
				info.ID, info.Parent, info.Root, info.Mountpoint,
				info.Options, info.FSType, info.Source)
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	log := logging.Get().With("boot_id", bootInstanceID.String())
	log.Info("booting", "cores", cfg.Cores, "disk", cfg.Disk.ImagePath)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	topo, err := cpu.New(cfg.Cores)
	if err != nil {
		return fmt.Errorf("cpu.New: %w", err)
	}

	lapics := make([]*cpu.LAPIC, cfg.Cores)
	for i := range lapics {
		lapics[i] = cpu.NewLAPIC(cpu.CoreID(i))
	}

	dev, err := blockdev.OpenFileDevice(cfg.Disk.ImagePath, false)
	if err != nil {
		return fmt.Errorf("opening disk image: %w", err)
	}
	if err := dev.SetBlockSize(cfg.Disk.BlockSize); err != nil {
		return fmt.Errorf("setting block size: %w", err)
	}
	defer dev.Close()

	fs, err := vfs.Mount(dev, cfg.Disk.ImagePath)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", cfg.Disk.ImagePath, err)
	}
	defer fs.Sync()

	plugbox := interrupt.NewPlugbox(interrupt.NewPanicHandler(topo, 0, "unhandled vector"))
	engine := interrupt.NewEngine(cfg.Cores)
	dispatcher := interrupt.NewDispatcher(plugbox, engine, lapics)
	dispatcher.Load()

	// Each core's idle thread is its own parked goroutine (spec.md §4.5);
	// SetIdle both installs and starts it, so there is nothing left for
	// Topology.Boot to fan out here: boot's per-core work is already
	// running once this loop returns.
	scheduler := kthread.NewScheduler(cfg.Cores)
	for c := 0; c < cfg.Cores; c++ {
		core := cpu.CoreID(c)
		idle := kthread.New(scheduler.IdleLoop(core))
		scheduler.SetIdle(core, idle)
	}

	if cfg.GDB.Enabled {
		stub, transport, err := newGDBStub(ctx, cfg, topo, lapics)
		if err != nil {
			return fmt.Errorf("starting gdb stub: %w", err)
		}
		defer transport.Drain()
		scheduler.DebugSafepoint = stub.Safepoint
		log.Info("gdb stub armed", "listen", cfg.GDB.ListenAddr, "serial", cfg.GDB.SerialPort)
	}

	go serveMetrics(cfg)

	log.Info("boot complete, entering idle loop")
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// newGDBStub wires either a TCP listener or a real serial port as the
// stub's transport (spec.md §4.7), per --gdb-serial-port taking priority
// over --gdb-listen-addr the way a developer plugging in a debug cable
// would expect to override a default network listener.
func newGDBStub(ctx context.Context, cfg config.Config, topo *cpu.Topology, lapics []*cpu.LAPIC) (*gdbstub.Stub, gdbstub.Transport, error) {
	mem := gdbstub.NewFlatMemory(1 << 20)

	var transport gdbstub.Transport
	if cfg.GDB.SerialPort != "" {
		st, err := gdbstub.OpenSerial(cfg.GDB.SerialPort, cfg.GDB.SerialBaud)
		if err != nil {
			return nil, nil, err
		}
		transport = st
	} else {
		ln, err := net.Listen("tcp", cfg.GDB.ListenAddr)
		if err != nil {
			return nil, nil, err
		}
		conn, err := ln.Accept()
		if err != nil {
			return nil, nil, err
		}
		transport = netTransport{conn}
	}

	return gdbstub.New(ctx, transport, topo, lapics, mem, false), transport, nil
}

// netTransport adapts a net.Conn (the TCP listen-address path) to
// gdbstub.Transport, whose Drain has no equivalent on net.Conn: a real RSP
// client always reads frame-by-frame, so there is nothing to flush.
type netTransport struct {
	net.Conn
}

func (netTransport) Drain() error { return nil }

func serveMetrics(cfg config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	addr := "localhost:9273"
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Get().Warn("metrics server stopped", "err", err)
	}
}
