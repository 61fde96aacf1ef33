// Package remote inspects the recipe base image in its registry without
// pulling it, so a build can fail before the daemon downloads anything.
package remote

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/containers/image/v5/manifest"
	"github.com/containers/image/v5/transports/alltransports"
	"github.com/containers/image/v5/types"
	"github.com/docker/distribution/reference"
	"github.com/opencontainers/go-digest"

	"github.com/openshift/py2i/pkg/api"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// pythonVersionEnv is set by the official Python images.
const pythonVersionEnv = "PYTHON_VERSION"

// ImageInfo is the registry side view of an image.
type ImageInfo struct {
	Name         string
	Digest       digest.Digest
	Created      *time.Time
	Architecture string
	Os           string
	Env          []string
	Labels       map[string]string
	Layers       int
}

// Inspector inspects images in their registry.
type Inspector interface {
	InspectBaseImage(ctx context.Context, name string, auth api.AuthConfig) (*ImageInfo, error)
}

type registryInspector struct{}

// New returns an Inspector talking to the image registries directly.
func New() Inspector {
	return registryInspector{}
}

// CanonizeImageArg appends 'docker://' if the image doesn't contain a schema.
func CanonizeImageArg(image string) string {
	if strings.Contains(image, "://") {
		return image
	}
	return "docker://" + image
}

// InspectBaseImage reads the manifest and configuration of the image from
// its registry.
func (registryInspector) InspectBaseImage(ctx context.Context, name string, auth api.AuthConfig) (*ImageInfo, error) {
	ref, err := alltransports.ParseImageName(CanonizeImageArg(name))
	if err != nil {
		return nil, s2ierr.NewRemoteInspectError(name, err)
	}
	sys := &types.SystemContext{}
	if len(auth.Username) > 0 {
		sys.DockerAuthConfig = &types.DockerAuthConfig{Username: auth.Username, Password: auth.Password}
	}

	log.V(2).Infof("Inspecting %s in its registry", name)
	img, err := ref.NewImage(ctx, sys)
	if err != nil {
		return nil, s2ierr.NewRemoteInspectError(name, err)
	}
	defer img.Close()

	inspected, err := img.Inspect(ctx)
	if err != nil {
		return nil, s2ierr.NewRemoteInspectError(name, err)
	}
	info := &ImageInfo{
		Name:         name,
		Created:      inspected.Created,
		Architecture: inspected.Architecture,
		Os:           inspected.Os,
		Env:          inspected.Env,
		Labels:       inspected.Labels,
		Layers:       len(inspected.Layers),
	}
	if dockerRef := ref.DockerReference(); dockerRef != nil {
		info.Name = dockerRef.String()
	}
	if raw, _, err := img.Manifest(ctx); err == nil {
		if d, err := manifest.Digest(raw); err == nil {
			info.Digest = d
		}
	}
	log.V(3).Infof("Base image %s: digest=%s os=%s arch=%s layers=%d", info.Name, info.Digest, info.Os, info.Architecture, info.Layers)
	return info, nil
}

// CheckPython3 verifies the image provides a Python 3 runtime. The version
// variable of the official images wins; without it the image must be a
// python repository with a 3.x tag.
func CheckPython3(info *ImageInfo) error {
	for _, e := range info.Env {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 || parts[0] != pythonVersionEnv {
			continue
		}
		if parts[1] == "3" || strings.HasPrefix(parts[1], "3.") {
			return nil
		}
		return fmt.Errorf("base image %s provides Python %s, Python 3 is required", info.Name, parts[1])
	}

	named, err := reference.ParseNormalizedNamed(info.Name)
	if err != nil {
		return fmt.Errorf("base image %s: %v", info.Name, err)
	}
	tagged, ok := reference.TagNameOnly(named).(reference.Tagged)
	if ok && path.Base(reference.Path(named)) == "python" && (tagged.Tag() == "3" || strings.HasPrefix(tagged.Tag(), "3.") || strings.HasPrefix(tagged.Tag(), "3-")) {
		return nil
	}
	return fmt.Errorf("cannot tell whether base image %s provides Python 3: %s is not set", info.Name, pythonVersionEnv)
}
