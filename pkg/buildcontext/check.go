// Package buildcontext inspects and packages the local build context of a
// recipe: it checks every path the recipe copies is present before a daemon
// is contacted, and produces the tar stream the image builder consumes.
package buildcontext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/openshift/py2i/pkg/ignore"
	"github.com/openshift/py2i/pkg/recipe"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// MissingPathError reports a recipe path the build would not find.
type MissingPathError struct {
	// Step is the COPY step reading the path.
	Step recipe.Step
	// Total is the number of steps in the recipe.
	Total int
	// Path is the context relative path.
	Path string
	// Reason explains why the path is unusable.
	Reason string
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("step %d/%d (%s): %s %s", e.Step.Index, e.Total, e.Step, e.Path, e.Reason)
}

// Check verifies the build context provides every path the recipe copies, and
// that the manifest can be installed with only itself present. All problems
// are returned together.
func Check(contextDir string, r *recipe.Recipe) error {
	info, err := os.Stat(contextDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("build context %s is not a directory", contextDir)
	}

	matcher, err := ignore.NewMatcher(contextDir)
	if err != nil {
		return err
	}

	var result *multierror.Error
	total := len(r.Steps())
	for _, p := range r.Paths() {
		step, _ := r.StepFor(p)
		if reason := checkPath(contextDir, p, matcher); len(reason) > 0 {
			result = multierror.Append(result, &MissingPathError{Step: step, Total: total, Path: p, Reason: reason})
			continue
		}
		log.V(4).Infof("Found %s for step %d", p, step.Index)
	}

	if _, err := os.Stat(filepath.Join(contextDir, filepath.FromSlash(r.Manifest))); err == nil {
		reqs, err := ReadRequirements(contextDir, r)
		if err != nil {
			result = multierror.Append(result, err)
		} else if problems := reqs.Unresolvable(); len(problems) > 0 {
			for _, p := range problems {
				result = multierror.Append(result, p)
			}
		} else if len(reqs.Packages) == 0 {
			log.Warningf("%s lists no packages, the install step will be a no-op", r.Manifest)
		}
	}

	return result.ErrorOrNil()
}

// MissingPaths extracts the missing path errors from the error returned by
// Check.
func MissingPaths(err error) []*MissingPathError {
	var out []*MissingPathError
	merr, ok := err.(*multierror.Error)
	if !ok {
		if e, ok := err.(*MissingPathError); ok {
			return []*MissingPathError{e}
		}
		return nil
	}
	for _, e := range merr.Errors {
		if m, ok := e.(*MissingPathError); ok {
			out = append(out, m)
		}
	}
	return out
}

func checkPath(contextDir, p string, matcher *ignore.Matcher) string {
	rel := strings.TrimSuffix(p, "/")
	if matcher.Match(rel) {
		return "is excluded by .dockerignore"
	}
	info, err := os.Lstat(filepath.Join(contextDir, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return "not found in build context"
	}
	if err != nil {
		return err.Error()
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(filepath.Join(contextDir, filepath.FromSlash(rel)))
		if err != nil {
			return "is a dangling symbolic link"
		}
		root, _ := filepath.EvalSymlinks(contextDir)
		if !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return "links outside the build context"
		}
		if info, err = os.Stat(target); err != nil {
			return err.Error()
		}
	}
	if recipe.IsDir(p) && !info.IsDir() {
		return "must be a directory"
	}
	if !recipe.IsDir(p) && !info.Mode().IsRegular() {
		return "must be a regular file"
	}
	return ""
}
