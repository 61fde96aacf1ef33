package buildah

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/openshift/py2i/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Inspect parsed outcomes of "buildah inspect" calls.
type Inspect struct {
	FromImageID string        `json:"FromImageID"`
	Docker      InspectDocker `json:"Docker"`
}

// InspectDocker docker section of config instance.
type InspectDocker struct {
	Created time.Time           `json:"created"`
	Config  InspectDockerConfig `json:"config"`
}

// InspectDockerConfig config section inside Docker config.
type InspectDockerConfig struct {
	User       string            `json:"User"`
	Env        []string          `json:"Env"`
	Cmd        []string          `json:"Cmd"`
	WorkingDir string            `json:"WorkingDir"`
	Entrypoint []string          `json:"Entrypoint"`
	Labels     map[string]string `json:"Labels"`
}

// engineInspect is one element of "docker image inspect" and
// "podman image inspect" output.
type engineInspect struct {
	ID      string              `json:"Id"`
	Created time.Time           `json:"Created"`
	Size    int64               `json:"Size"`
	Config  InspectDockerConfig `json:"Config"`
}

func (c InspectDockerConfig) toContainerConfig() *api.ContainerConfig {
	return &api.ContainerConfig{
		Labels:     c.Labels,
		Env:        c.Env,
		Cmd:        c.Cmd,
		Entrypoint: c.Entrypoint,
		WorkingDir: c.WorkingDir,
		User:       c.User,
	}
}

// parseBuildahInspect parses out "buildah inspect --type image" output.
func parseBuildahInspect(output []byte) (*api.Image, error) {
	imageMetadata := &Inspect{}
	if err := json.Unmarshal(output, imageMetadata); err != nil {
		log.Errorf("Error parsing JSON output '%s': '%q'", output, err)
		return nil, err
	}
	return &api.Image{
		ID:      imageMetadata.FromImageID,
		Created: imageMetadata.Docker.Created,
		Config:  imageMetadata.Docker.Config.toContainerConfig(),
	}, nil
}

// parseEngineInspect parses out "image inspect" output of docker and podman,
// a JSON list holding one entry per inspected image.
func parseEngineInspect(output []byte) (*api.Image, error) {
	var images []engineInspect
	if err := json.Unmarshal(output, &images); err != nil {
		log.Errorf("Error parsing JSON output '%s': '%q'", output, err)
		return nil, err
	}
	if len(images) != 1 {
		return nil, fmt.Errorf("expected one image, inspect returned %d", len(images))
	}
	return &api.Image{
		ID:      images[0].ID,
		Created: images[0].Created,
		Size:    images[0].Size,
		Config:  images[0].Config.toContainerConfig(),
	}, nil
}
