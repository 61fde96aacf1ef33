package recipe

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v2"

	"github.com/openshift/py2i/pkg/api/constants"
)

// Load reads a YAML recipe. Fields absent from the file keep their default
// value, a payload list in the file replaces the default payload.
func Load(path string) (*Recipe, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := Default()
	if err := yaml.UnmarshalStrict(data, r); err != nil {
		return nil, fmt.Errorf("parsing %s: %v", path, err)
	}
	log.V(2).Infof("Loaded recipe from %s", path)
	return r, nil
}

// ForContext returns the recipe for a build context. An explicit file must
// exist; otherwise py2i.yaml at the context root is used when present and the
// default recipe when not.
func ForContext(contextDir, file string) (*Recipe, string, error) {
	if len(file) > 0 {
		if !filepath.IsAbs(file) {
			file = filepath.Join(contextDir, file)
		}
		r, err := Load(file)
		return r, file, err
	}
	candidate := filepath.Join(contextDir, constants.RecipeFile)
	r, err := Load(candidate)
	if os.IsNotExist(err) {
		log.V(3).Infof("No %s in %s, using the default recipe", constants.RecipeFile, contextDir)
		return Default(), "", nil
	}
	return r, candidate, err
}

// Override applies the non-empty command line overrides to the recipe.
func (r *Recipe) Override(baseImage, maintainer string) {
	if len(baseImage) > 0 {
		r.BaseImage = baseImage
	}
	if len(maintainer) > 0 {
		r.Maintainer = maintainer
	}
}

func stepsDigest(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintln(&b, s.String())
	}
	return digest.FromString(b.String()).Encoded()[:12]
}
