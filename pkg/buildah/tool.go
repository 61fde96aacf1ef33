package buildah

import (
	"context"
	"fmt"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// Tool is an image tool driven through its command line.
type Tool struct {
	// Command is the executable name: buildah, podman or docker.
	Command string

	execute func(ctx context.Context, cmdSlice []string) ([]byte, error)
}

// New returns the named image tool.
func New(command string) *Tool {
	return &Tool{
		Command: command,
		execute: func(ctx context.Context, cmdSlice []string) ([]byte, error) {
			return Execute(ctx, cmdSlice, nil, false)
		},
	}
}

// inspectCommand returns the command inspecting a local image.
func (t *Tool) inspectCommand(name string) []string {
	if t.Command == constants.BuildahBuilder {
		return []string{t.Command, "inspect", "--type", "image", name}
	}
	return []string{t.Command, "image", "inspect", name}
}

// InspectImage runs the inspect command of the tool and transforms the output
// into an api.Image instance.
func (t *Tool) InspectImage(ctx context.Context, name string) (*api.Image, error) {
	name = docker.GetImageName(name)
	log.V(3).Infof("Inspecting image '%s' with %s...", name, t.Command)
	output, err := t.execute(ctx, t.inspectCommand(name))
	if err != nil {
		log.V(4).Infof("error inspecting image %s: %v", name, err)
		return nil, s2ierr.NewInspectImageError(name, err)
	}
	if t.Command == constants.BuildahBuilder {
		return parseBuildahInspect(output)
	}
	return parseEngineInspect(output)
}

// IsImageInLocalRegistry tries to inspect the image name, if no error is raised it returns true.
func (t *Tool) IsImageInLocalRegistry(ctx context.Context, name string) bool {
	_, err := t.InspectImage(ctx, name)
	return err == nil
}

// RemoveImage removes the informed image. It can return error when the
// command does.
func (t *Tool) RemoveImage(ctx context.Context, name string) error {
	name = docker.GetImageName(name)
	log.V(2).Infof("Removing image '%s'...", name)
	cmd := []string{t.Command, "image", "rm", "--force", name}
	if t.Command == constants.BuildahBuilder {
		cmd = []string{t.Command, "rmi", "--force", name}
	}
	if _, err := t.execute(ctx, cmd); err != nil {
		return s2ierr.NewRemoveImageError(name, err)
	}
	return nil
}

// Version returns what the tool prints for --version.
func (t *Tool) Version(ctx context.Context) (string, error) {
	output, err := t.execute(ctx, []string{t.Command, "--version"})
	if err != nil {
		return "", fmt.Errorf("%s --version: %v", t.Command, err)
	}
	return trimOutput(output), nil
}
