// Package manifest handles mro.toml class hierarchy files.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/mro/vm"
)

// FileName is the manifest file looked up in project directories.
const FileName = "mro.toml"

var log = commonlog.GetLogger("mro.manifest")

// Manifest represents an mro.toml file.
type Manifest struct {
	Project Project     `toml:"project"`
	Runtime Runtime     `toml:"runtime"`
	Classes []ClassDecl `toml:"class"`

	// Dir is the directory containing the mro.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Runtime configures the VM built from the manifest.
type Runtime struct {
	// GCThreshold is the number of bytes allocated between collections
	// that triggers the next one. Zero disables automatic collection.
	GCThreshold int `toml:"gc-threshold"`
	Verbosity   int `toml:"verbosity"`
}

// ClassDecl declares one class. Parents must be declared earlier in the
// file, in the order they should be inherited.
type ClassDecl struct {
	Name    string   `toml:"name"`
	Parents []string `toml:"parents"`
	Methods []string `toml:"methods"`
}

// DeclError ties an error to the class declaration that caused it.
type DeclError struct {
	Class string
	Err   error
}

func (e *DeclError) Error() string {
	return fmt.Sprintf("class %s: %v", e.Class, e.Err)
}

func (e *DeclError) Unwrap() error { return e.Err }

// Parse decodes and validates manifest text.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load parses the mro.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	log.Debugf("loaded %s: %d classes", path, len(m.Classes))
	return m, nil
}

// FindAndLoad walks up from startDir to find an mro.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks declarations without building anything: every class
// is named once and every parent is declared before its children.
func (m *Manifest) Validate() error {
	declared := make(map[string]bool, len(m.Classes))
	for i, decl := range m.Classes {
		if decl.Name == "" {
			return fmt.Errorf("class #%d has no name", i+1)
		}
		if declared[decl.Name] {
			return &DeclError{Class: decl.Name, Err: errors.New("declared more than once")}
		}
		for _, p := range decl.Parents {
			if !declared[p] {
				return &DeclError{Class: decl.Name, Err: fmt.Errorf("parent %s must be declared before it is inherited", p)}
			}
		}
		declared[decl.Name] = true
	}
	if m.Runtime.GCThreshold < 0 {
		return fmt.Errorf("runtime.gc-threshold must not be negative")
	}
	return nil
}

// Apply defines every declared class on v, in file order. Methods get a
// text body naming their class and selector. The first failure stops the
// build and is returned as a *DeclError.
func (m *Manifest) Apply(v *vm.VM) error {
	for _, decl := range m.Classes {
		c, err := v.DefineClass(decl.Name, decl.Parents...)
		if err != nil {
			return &DeclError{Class: decl.Name, Err: err}
		}
		for _, method := range decl.Methods {
			if _, err := v.DefineMethod(c, method, 0, decl.Name+"."+method); err != nil {
				return &DeclError{Class: decl.Name, Err: err}
			}
		}
	}
	return nil
}

// NewVM builds a VM configured by the runtime section and populated with
// the declared classes.
func (m *Manifest) NewVM() (*vm.VM, error) {
	v := vm.NewVM()
	v.Heap.SetThreshold(m.Runtime.GCThreshold)
	if err := m.Apply(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Class returns the declaration named name, or nil.
func (m *Manifest) Class(name string) *ClassDecl {
	for i := range m.Classes {
		if m.Classes[i].Name == name {
			return &m.Classes[i]
		}
	}
	return nil
}
