// Package build holds what every py2i build strategy shares: loading the
// recipe, checking the build context before any image work starts and
// verifying the produced image against the recipe.
package build

import (
	"context"
	"time"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/buildcontext"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/recipe"
	"github.com/openshift/py2i/pkg/remote"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// LoadRecipe returns the validated recipe of the build context with the
// command line overrides applied.
func LoadRecipe(config *api.Config) (*recipe.Recipe, error) {
	r, source, err := recipe.ForContext(config.ContextDir, config.RecipeFile)
	if len(source) == 0 {
		source = "(default)"
	}
	if err != nil {
		return nil, s2ierr.NewRecipeError(source, err)
	}
	r.Override(config.BaseImage, config.Maintainer)
	if err := r.Validate(); err != nil {
		return nil, s2ierr.NewRecipeError(source, err)
	}
	return r, nil
}

// Preflight loads the recipe and checks the build context provides every path
// it copies. When configured, the base image is inspected in its registry.
// Timings are recorded on the result.
func Preflight(ctx context.Context, config *api.Config, inspector remote.Inspector, result *api.Result) (*recipe.Recipe, error) {
	r, err := LoadRecipe(config)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	err = buildcontext.Check(config.ContextDir, r)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StagePreflight, api.CheckContextStep, startTime, time.Now())
	if err != nil {
		for _, missing := range buildcontext.MissingPaths(err) {
			result.Messages = append(result.Messages, missing.Error())
		}
		return nil, s2ierr.NewBuildContextError(config.ContextDir, err)
	}

	if config.RemoteBaseCheck && inspector != nil {
		startTime = time.Now()
		info, err := inspector.InspectBaseImage(ctx, r.BaseImage, config.PullAuthentication)
		if err == nil {
			err = remote.CheckPython3(info)
		}
		if _, ok := err.(s2ierr.Error); err != nil && !ok {
			err = s2ierr.NewRemoteInspectError(r.BaseImage, err)
		}
		result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StagePreflight, api.InspectBaseImageStep, startTime, time.Now())
		if err != nil {
			return nil, err
		}
		log.V(1).Infof("Base image %s (%s) provides Python 3", info.Name, info.Digest)
	}
	return r, nil
}
