// Package engine builds the recipe image through the Docker Engine API.
package engine

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"time"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/buildcontext"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/recipe"
	"github.com/openshift/py2i/pkg/remote"
	"github.com/openshift/py2i/pkg/util"
	utillog "github.com/openshift/py2i/pkg/util/log"
	utilstatus "github.com/openshift/py2i/pkg/util/status"
)

var log = utillog.StderrLog

var errNotPresent = errors.New("image is not present locally and the pull policy is never")

// Engine builds the image by sending the archived build context and the
// rendered Dockerfile to the daemon.
type Engine struct {
	docker    docker.Docker
	inspector remote.Inspector
}

// New returns an engine builder. The inspector is only consulted when the
// configuration asks for a remote base image check.
func New(client docker.Docker, inspector remote.Inspector) *Engine {
	return &Engine{docker: client, inspector: inspector}
}

// Build runs the preflight checks, builds the image and verifies it. The
// result carries the failure reason when an error is returned.
func (e *Engine) Build(ctx context.Context, config *api.Config) (*api.Result, error) {
	if config.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.BuildTimeout)
		defer cancel()
	}

	result := &api.Result{}
	if err := e.build(ctx, config, result); err != nil {
		if len(result.BuildInfo.FailureReason.Reason) == 0 {
			result.BuildInfo.FailureReason = utilstatus.ReasonForError(err)
		}
		return result, err
	}
	result.Success = true
	return result, nil
}

func (e *Engine) build(ctx context.Context, config *api.Config, result *api.Result) error {
	r, err := build.Preflight(ctx, config, e.inspector, result)
	if err != nil {
		return err
	}

	pullParent, err := e.ensureBaseImage(ctx, config.PullPolicy, r.BaseImage)
	if err != nil {
		return err
	}

	contextDigest, err := buildcontext.Digest(config.ContextDir, r)
	if err != nil {
		result.BuildInfo.FailureReason = utilstatus.NewFailureReason(utilstatus.ReasonTarSourceFailed, utilstatus.ReasonMessageTarSourceFailed)
		return s2ierr.NewBuildContextError(config.ContextDir, err)
	}
	result.ContextDigest = contextDigest.String()
	labels := util.GenerateOutputImageLabels(config, r, contextDigest)

	if err := render(config, r, result); err != nil {
		return err
	}

	startTime := time.Now()
	stream, err := buildcontext.Archive(config.ContextDir, r, constants.GeneratedDockerfile)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.ArchiveContextStep, startTime, time.Now())
	if err != nil {
		result.BuildInfo.FailureReason = utilstatus.NewFailureReason(utilstatus.ReasonTarSourceFailed, utilstatus.ReasonMessageTarSourceFailed)
		return s2ierr.NewBuildContextError(config.ContextDir, err)
	}
	defer stream.Close()

	var out io.Writer
	if config.Quiet {
		out = ioutil.Discard
	}
	tag := docker.GetImageName(config.Tag)
	opts := docker.BuildImageOptions{
		Name:       tag,
		Context:    stream,
		Dockerfile: constants.GeneratedDockerfile,
		NoCache:    !config.UseCache,
		PullParent: pullParent,
		BuildArgs:  config.Environment.AsBuildArgs(),
		Labels:     labels,
		Memory:     config.MemoryLimit,
		Stdout:     out,
	}
	log.V(0).Infof("Building %s from %s", tag, config.ContextDir)
	startTime = time.Now()
	imageID, err := e.docker.BuildImage(ctx, opts)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.BuildImageStep, startTime, time.Now())
	if err != nil {
		return err
	}
	result.ImageID = imageID

	if config.SkipVerify {
		log.V(1).Infof("Skipping verification of %s", tag)
		return nil
	}
	if err := build.Verify(ctx, e.docker, tag, r, result); err != nil {
		log.V(0).Infof("Removing image %s that does not match the recipe", tag)
		if rmErr := e.docker.RemoveImage(ctx, tag); rmErr != nil {
			log.Warningf("Unable to remove image %s: %v", tag, rmErr)
		}
		return err
	}
	return nil
}

// ensureBaseImage makes the base image available according to the pull
// policy. It reports whether the daemon should pull the base image itself.
func (e *Engine) ensureBaseImage(ctx context.Context, policy api.PullPolicy, baseImage string) (bool, error) {
	switch policy {
	case api.PullAlways:
		return true, nil
	case api.PullNever:
		present, err := e.docker.IsImageInLocalRegistry(ctx, baseImage)
		if err != nil {
			return false, err
		}
		if !present {
			return false, s2ierr.NewInspectImageError(baseImage, errNotPresent)
		}
		return false, nil
	default:
		if _, err := e.docker.CheckAndPullImage(ctx, baseImage); err != nil {
			return false, err
		}
		return false, nil
	}
}

func render(config *api.Config, r *recipe.Recipe, result *api.Result) error {
	startTime := time.Now()
	defer func() {
		result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.RenderDockerfileStep, startTime, time.Now())
	}()

	dockerfile, err := build.RenderDockerfile(r)
	if err != nil {
		return s2ierr.NewDockerfileCreateError(constants.GeneratedDockerfile, err)
	}
	result.Dockerfile = dockerfile
	log.V(2).Infof("Rendered Dockerfile:\n%s", dockerfile)

	if len(config.AsDockerfile) > 0 {
		if err := r.WriteDockerfile(config.AsDockerfile); err != nil {
			return s2ierr.NewDockerfileCreateError(config.AsDockerfile, err)
		}
	}
	return nil
}
