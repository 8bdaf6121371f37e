// mro CLI - inspect class hierarchies declared in mro.toml files
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/mro/manifest"
	"github.com/chazu/mro/server"
	"github.com/chazu/mro/vm"
	"github.com/chazu/mro/vm/dist"
)

type options struct {
	class     string
	lookup    string
	super     string
	dump      string
	load      string
	verbosity int
}

func main() {
	var opts options
	flag.StringVar(&opts.class, "class", "", "Print the linearization of a class")
	flag.StringVar(&opts.lookup, "lookup", "", "Resolve a method on -class")
	flag.StringVar(&opts.super, "super", "", "With -lookup, resolve a super call made from this class")
	flag.StringVar(&opts.dump, "dump", "", "Write a snapshot of the loaded classes to a file")
	flag.StringVar(&opts.load, "load", "", "Restore classes from a snapshot instead of mro.toml")
	lspMode := flag.Bool("lsp", false, "Run the language server on stdio")
	flag.IntVar(&opts.verbosity, "v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mro [options] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the mro.toml found in dir (or a parent) and reports on its classes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mro                                # Print every linearization\n")
		fmt.Fprintf(os.Stderr, "  mro -class Child                   # Print Child's linearization\n")
		fmt.Fprintf(os.Stderr, "  mro -class Child -lookup foo       # Which class answers foo\n")
		fmt.Fprintf(os.Stderr, "  mro -class Child -lookup foo -super Left\n")
		fmt.Fprintf(os.Stderr, "  mro -dump classes.cbor             # Snapshot the hierarchy\n")
		fmt.Fprintf(os.Stderr, "  mro -load classes.cbor -class Child\n")
		fmt.Fprintf(os.Stderr, "  mro -lsp                           # Language server for editors\n")
	}
	flag.Parse()

	commonlog.Configure(opts.verbosity, nil)

	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	if err := run(os.Stdout, dir, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, dir string, opts options) error {
	v, err := loadVM(dir, opts)
	if err != nil {
		return err
	}

	if opts.dump != "" {
		if err := dump(out, v, opts.dump); err != nil {
			return err
		}
	}

	if opts.class == "" {
		if opts.lookup != "" || opts.super != "" {
			return errors.New("-lookup and -super require -class")
		}
		for _, c := range v.Classes.All() {
			printLinearization(out, c)
		}
		return nil
	}

	c, err := v.LookupClass(opts.class)
	if err != nil {
		return err
	}
	if opts.lookup == "" {
		printLinearization(out, c)
		return nil
	}
	return resolve(out, v, c, opts)
}

// loadVM builds the VM from a snapshot when -load is given, else from
// the nearest mro.toml.
func loadVM(dir string, opts options) (*vm.VM, error) {
	if opts.load != "" {
		data, err := os.ReadFile(opts.load)
		if err != nil {
			return nil, fmt.Errorf("cannot read snapshot: %w", err)
		}
		snap, err := dist.UnmarshalSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("cannot decode %s: %w", opts.load, err)
		}
		return dist.Restore(snap)
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	if m.Runtime.Verbosity > opts.verbosity {
		commonlog.Configure(m.Runtime.Verbosity, nil)
	}
	return m.NewVM()
}

func dump(out io.Writer, v *vm.VM, path string) error {
	snap := dist.Capture(v)
	data, err := dist.MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	sum, err := snap.Hash()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d classes to %s (%s)\n", len(snap.Classes), path, hex.EncodeToString(sum[:8]))
	return nil
}

func resolve(out io.Writer, v *vm.VM, c *vm.Class, opts options) error {
	var (
		m   vm.Value
		err error
	)
	if opts.super != "" {
		defining, lerr := v.LookupClass(opts.super)
		if lerr != nil {
			return lerr
		}
		receiver, ierr := v.NewInstance(c)
		if ierr != nil {
			return ierr
		}
		m, err = v.SendSuper(defining, receiver, opts.lookup)
	} else {
		m, err = v.Resolve(c, opts.lookup)
	}
	if err != nil {
		return err
	}

	fn, ok := m.Object().(*vm.Function)
	if !ok {
		fmt.Fprintf(out, "%s.%s -> %v\n", c.Name(), opts.lookup, m)
		return nil
	}
	fmt.Fprintf(out, "%s.%s -> %s\n", c.Name(), opts.lookup, fn)
	return nil
}

func printLinearization(out io.Writer, c *vm.Class) {
	fmt.Fprintf(out, "%s:", c.Name())
	for _, k := range c.Linearization() {
		fmt.Fprintf(out, " %s", k.Name())
	}
	fmt.Fprintln(out)
}
