package recipe

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"text/template"

	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

var dockerfileTemplate = template.Must(template.New("dockerfile").Parse(
	`# Generated by py2i from recipe {{ .Digest }}
{{ range .Steps }}{{ . }}
{{ end }}`))

// Render writes the recipe as a Dockerfile.
func (r *Recipe) Render(w io.Writer) error {
	var buf bytes.Buffer
	steps := r.Steps()
	// the digest line is rendered from the steps alone to keep it stable
	if err := dockerfileTemplate.Execute(&buf, struct {
		Digest string
		Steps  []Step
	}{Digest: stepsDigest(steps), Steps: steps}); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteDockerfile renders the recipe into the file at path, creating parent
// directories when needed.
func (r *Recipe) WriteDockerfile(path string) error {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	log.V(3).Infof("Writing Dockerfile %s:\n%s", path, buf.String())
	return ioutil.WriteFile(path, buf.Bytes(), 0644)
}
