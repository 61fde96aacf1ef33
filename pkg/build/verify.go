package build

import (
	"context"
	"fmt"
	"time"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/recipe"
	"github.com/openshift/py2i/pkg/util"
)

// VerifyImage returns every way the image configuration departs from the
// launch contract of the recipe.
func VerifyImage(r *recipe.Recipe, image *api.Image) []string {
	if image == nil || image.Config == nil {
		return []string{"image has no configuration"}
	}
	config := image.Config
	var problems []string
	if len(config.Entrypoint) > 0 {
		problems = append(problems, fmt.Sprintf("entrypoint %q wraps the default command", config.Entrypoint))
	}
	if !equal(config.Cmd, r.Command) {
		problems = append(problems, fmt.Sprintf("default command is %q, expected %q", config.Cmd, r.Command))
	}
	if config.WorkingDir != r.WorkDir {
		problems = append(problems, fmt.Sprintf("working directory is %q, expected %q", config.WorkingDir, r.WorkDir))
	}
	if config.Labels[constants.MaintainerLabel] != r.Maintainer {
		problems = append(problems, fmt.Sprintf("%s label is %q, expected %q", constants.MaintainerLabel, config.Labels[constants.MaintainerLabel], r.Maintainer))
	}
	return problems
}

// Verify inspects the built image and checks it against the recipe,
// recording the step on the result.
func Verify(ctx context.Context, inspector ImageInspector, name string, r *recipe.Recipe, result *api.Result) error {
	startTime := time.Now()
	image, err := inspector.InspectImage(ctx, name)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageVerify, api.InspectImageStep, startTime, time.Now())
	if err != nil {
		return s2ierr.NewInspectImageError(name, err)
	}
	log.V(3).Infof("Image %s configuration: %s", name, util.SafeForLoggingContainerConfig(image.Config))
	if problems := VerifyImage(r, image); len(problems) > 0 {
		return s2ierr.NewImageVerifyError(name, problems)
	}
	if len(result.ImageID) == 0 {
		result.ImageID = image.ID
	}
	return nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
