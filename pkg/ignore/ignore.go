// Package ignore evaluates the .dockerignore file of a build context, so the
// preflight check sees the same files the image builder will.
package ignore

import (
	"os"
	"path/filepath"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"

	"github.com/openshift/py2i/pkg/api/constants"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// Matcher matches build context paths against the ignore patterns.
type Matcher struct {
	patterns []string
	pm       *patternmatcher.PatternMatcher
}

// NewMatcher reads the ignore file at the root of contextDir. A missing file
// yields a matcher that ignores nothing.
func NewMatcher(contextDir string) (*Matcher, error) {
	path := filepath.Join(contextDir, constants.IgnoreFile)
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("Ignore processing, problem opening %s because of %v", path, err)
			return nil, err
		}
		log.V(4).Infof("%s file does not exist", constants.IgnoreFile)
		return &Matcher{}, nil
	}
	defer file.Close()

	patterns, err := ignorefile.ReadAll(file)
	if err != nil {
		log.Errorf("Problem processing %s %v", path, err)
		return nil, err
	}
	for _, p := range patterns {
		log.V(4).Infof("%s lists a file spec of %s", constants.IgnoreFile, p)
	}
	return NewMatcherFromPatterns(patterns)
}

// NewMatcherFromPatterns builds a matcher from already parsed patterns.
func NewMatcherFromPatterns(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		return &Matcher{}, nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}
	return &Matcher{patterns: patterns, pm: pm}, nil
}

// Patterns returns the patterns of the ignore file.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports whether the slash separated context relative path, or one of
// its parents, is excluded from the build context.
func (m *Matcher) Match(path string) bool {
	if m.pm == nil {
		return false
	}
	ok, err := m.pm.MatchesOrParentMatches(filepath.FromSlash(path))
	if err != nil {
		log.V(4).Infof("Unable to match %s: %v", path, err)
		return false
	}
	return ok
}
