package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluence-lang/fluence/intrinsics"
)

// manifestFileName is the project manifest Load (and so CompileProject)
// looks for at a project root.
const manifestFileName = "fluence.yaml"

// Project is a compiled unit's root directory, its parsed manifest (if
// any), and the file table CompileProject interns the entry file's path
// into. CompileProject does not walk included or imported files.
type Project struct {
	Root     string
	Manifest *intrinsics.Manifest
	Files    *FileTable
}

// Load resolves root to an absolute directory, reads its fluence.yaml if
// present, and returns a Project ready for CompileProject to populate.
// A project without a manifest is valid: AllowedLibraries is then empty
// and the entry file must be supplied by the caller directly.
func Load(root string) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("project: resolve %s: %w", root, err)
	}
	p := &Project{Root: absRoot, Files: NewFileTable()}

	manifestPath := filepath.Join(absRoot, manifestFileName)
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err := intrinsics.LoadManifestFile(manifestPath)
		if err != nil {
			return nil, err
		}
		p.Manifest = manifest
	}
	return p, nil
}

// EntryPath returns the project's configured entry file as an absolute
// path, erroring if no manifest was loaded.
func (p *Project) EntryPath() (string, error) {
	if p.Manifest == nil || p.Manifest.Entry == "" {
		return "", fmt.Errorf("project: no entry file configured for %s", p.Root)
	}
	return p.Manifest.Entry, nil
}
