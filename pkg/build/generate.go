package build

import (
	"bytes"

	"github.com/openshift/py2i/pkg/api"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/recipe"
)

// GenerateDockerfile renders the recipe of the build context into the file
// at path, without building anything.
func GenerateDockerfile(config *api.Config, path string) (*recipe.Recipe, error) {
	r, err := LoadRecipe(config)
	if err != nil {
		return nil, err
	}
	if err := r.WriteDockerfile(path); err != nil {
		return nil, s2ierr.NewDockerfileCreateError(path, err)
	}
	log.V(1).Infof("Wrote Dockerfile %s", path)
	return r, nil
}

// RenderDockerfile renders the recipe to a string.
func RenderDockerfile(r *recipe.Recipe) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
