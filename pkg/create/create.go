// Package create bootstraps a new application laid out the way the py2i
// recipe expects it.
package create

import (
	"os"
	"path/filepath"
	"text/template"

	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/create/templates"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// DefaultPort is the port the generated server listens on.
const DefaultPort = 8080

// Bootstrap contains the parameters of a new application.
type Bootstrap struct {
	DestinationDir string
	Name           string
	Port           int
}

// New returns a new bootstrap for the application name in destination.
func New(name, dst string) *Bootstrap {
	return &Bootstrap{Name: name, DestinationDir: dst, Port: DefaultPort}
}

// AddManifest creates an empty requirements manifest.
func (b *Bootstrap) AddManifest() error {
	return b.process(templates.Requirements, constants.RequirementsFile, 0644)
}

// AddApplication creates the server package, the config package and the
// entry point.
func (b *Bootstrap) AddApplication() error {
	files := []struct {
		template string
		path     string
	}{
		{templates.Server, constants.ServerDir + "__init__.py"},
		{templates.Config, constants.ConfigPackage},
		{templates.Start, constants.EntryPoint},
	}
	for _, f := range files {
		if err := b.process(f.template, f.path, 0644); err != nil {
			return err
		}
	}
	return nil
}

// AddDockerIgnore creates a .dockerignore excluding local state.
func (b *Bootstrap) AddDockerIgnore() error {
	return b.process(templates.DockerIgnore, constants.IgnoreFile, 0644)
}

// process renders t into dst. Existing files are left untouched.
func (b *Bootstrap) process(t string, dst string, perm os.FileMode) error {
	tpl := template.Must(template.New("").Parse(t))
	path := filepath.Join(b.DestinationDir, filepath.FromSlash(dst))
	if _, err := os.Stat(path); err == nil {
		log.Warningf("%s already exists, skipping", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	return tpl.Execute(f, b)
}
