package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/lib/types"
	"github.com/chazu/esch/logging"
	"github.com/chazu/esch/metrics"
	"github.com/chazu/esch/vm"
	"github.com/chazu/esch/vm/dump"
)

// loadFile returns the explicit config file, or the nearest esch.toml
// above the working directory. A missing file is not an error.
func loadFile(path string) (*config.File, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func newLogger(f *config.File, verbose int) logging.Logger {
	name, verbosity, console := "esch", verbose, verbose > 0
	if f != nil {
		if f.Log.Name != "" {
			name = f.Log.Name
		}
		verbosity = max(verbosity, f.Log.Verbosity)
		console = console || f.Log.Console
	}
	if !console {
		return logging.Nop()
	}
	return logging.NewConsole(name, verbosity)
}

func runWorkload(opts *options, fs *pflag.FlagSet, stdout, stderr io.Writer) (err error) {
	f, err := loadFile(opts.configPath)
	if err != nil {
		return err
	}

	var allocOpts []alloc.Option
	if f != nil && f.Alloc.Limit > 0 {
		allocOpts = append(allocOpts, alloc.WithLimit(f.Alloc.Limit))
	}
	a := alloc.New(allocOpts...)
	log := newLogger(f, opts.verbose)
	if f != nil {
		log.Infof("esch: using %s", f.Path)
	}
	base := config.New(a, log)

	gcCfg := base.Clone()
	if f != nil {
		if err := f.Apply(gcCfg); err != nil {
			return err
		}
	}
	if fs.Changed("slots") {
		if err := gcCfg.SetInt(config.KeyInitialSlots, opts.slots); err != nil {
			return err
		}
	}
	if opts.noGrowth {
		if err := gcCfg.SetBool(config.KeyGrowth, false); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	if err := gcCfg.SetObject(vm.KeyObserver, rec); err != nil {
		return err
	}

	root, err := types.NewVector(base)
	if err != nil {
		return err
	}
	if err := gcCfg.SetObject(vm.KeyRoot, root); err != nil {
		return err
	}
	gc, err := vm.NewCollector(gcCfg)
	if err != nil {
		_ = vm.Delete(root)
		return err
	}
	defer func() {
		if cerr := gc.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if aerr := a.Close(); aerr != nil {
			err = errors.Join(err, aerr)
		}
	}()

	cfg := base.Clone()
	if err := cfg.SetObject(vm.KeyCollector, gc); err != nil {
		return err
	}
	if err := populate(cfg, root, opts); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "collector %s: %d live in %d slots\n", gc.ID(), gc.Live(), gc.Capacity())

	for pass := 1; pass <= 2; pass++ {
		stats, err := gc.Recycle()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "recycle %d: freed %d (%d failed), live %d/%d in %s\n",
			pass, stats.Freed, stats.Failed, stats.Live, stats.Capacity, stats.Duration)
	}

	if opts.dumpPath != "" {
		if err := writeDump(gc, opts.dumpPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "snapshot written to %s\n", opts.dumpPath)
	}
	if opts.metrics {
		if err := metrics.WriteText(stdout, reg); err != nil {
			return err
		}
	}
	return nil
}

// populate allocates opts.objects integers, appending every opts.keep-th
// to root, then builds opts.cycles unreachable pairs of vectors that refer
// to each other.
func populate(cfg *config.Config, root *types.Vector, opts *options) error {
	for i := 0; i < opts.objects; i++ {
		n, err := types.NewInteger(cfg, int64(i))
		if err != nil {
			return fmt.Errorf("integer %d: %w", i, err)
		}
		if opts.keep > 0 && i%opts.keep == 0 {
			if err := root.Append(vm.FromObject(n)); err != nil {
				return err
			}
		}
	}
	for i := 0; i < opts.cycles; i++ {
		a, err := types.NewVector(cfg)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}
		b, err := types.NewVector(cfg)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}
		if err := a.Append(vm.FromObject(b)); err != nil {
			return err
		}
		if err := b.Append(vm.FromObject(a)); err != nil {
			return err
		}
	}
	return nil
}

func writeDump(gc *vm.Collector, path string) error {
	snap, err := gc.Snapshot()
	if err != nil {
		return err
	}
	data, err := dump.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
