// Package docker wraps the Docker Engine API client with the higher level
// operations py2i performs: building the recipe image, inspecting and pulling
// images and running the produced image.
package docker

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"regexp"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	dockernetwork "github.com/docker/docker/api/types/network"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	jsoniter "github.com/json-iterator/go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/time/rate"

	"github.com/openshift/py2i/pkg/api"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultDockerTimeout specifies a timeout for Docker API calls. When this
	// timeout is reached, certain Docker API calls might error out.
	DefaultDockerTimeout = 2 * time.Minute

	// DefaultPullTimeout bounds a single base image pull.
	DefaultPullTimeout = 15 * time.Minute

	// progressInterval throttles pull progress lines in the log.
	progressInterval = 2 * time.Second
)

// Docker is the interface between py2i and the docker engine-api. It contains
// the higher level operations called from the build and run commands.
type Docker interface {
	CheckReachable(ctx context.Context) error
	Version(ctx context.Context) (dockertypes.Version, error)
	BuildImage(ctx context.Context, opts BuildImageOptions) (string, error)
	InspectImage(ctx context.Context, name string) (*api.Image, error)
	IsImageInLocalRegistry(ctx context.Context, name string) (bool, error)
	PullImage(ctx context.Context, name string) (*api.Image, error)
	CheckAndPullImage(ctx context.Context, name string) (*api.Image, error)
	RunContainer(ctx context.Context, opts RunContainerOptions) error
	RemoveImage(ctx context.Context, name string) error
	Endpoint() string
}

// Client contains all methods used when interacting directly with the
// docker engine-api.
type Client interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options dockertypes.ImageBuildOptions) (dockertypes.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, image string) (dockertypes.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options dockertypes.ImagePullOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, image string, options dockertypes.ImageRemoveOptions) ([]dockertypes.ImageDeleteResponseItem, error)
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *dockernetwork.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerAttach(ctx context.Context, container string, options dockertypes.ContainerAttachOptions) (dockertypes.HijackedResponse, error)
	ContainerStart(ctx context.Context, container string, options dockertypes.ContainerStartOptions) error
	ContainerWait(ctx context.Context, container string, condition dockercontainer.WaitCondition) (<-chan dockercontainer.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, container string, options dockertypes.ContainerRemoveOptions) error
	ServerVersion(ctx context.Context) (dockertypes.Version, error)
	Ping(ctx context.Context) (dockertypes.Ping, error)
}

type engineDocker struct {
	client   Client
	endpoint string
	pullAuth dockerregistry.AuthConfig
}

// BuildImageOptions are options passed in to the BuildImage method.
type BuildImageOptions struct {
	// Name is the tag applied to the built image.
	Name string
	// Context is the tar stream of the build context.
	Context io.Reader
	// Dockerfile is the path of the Dockerfile inside the context.
	Dockerfile string
	// NoCache disables the layer cache of the daemon.
	NoCache bool
	// PullParent always attempts to pull a newer base image.
	PullParent bool
	BuildArgs  map[string]*string
	Labels     map[string]string
	// Memory is the memory limit of the build containers in bytes.
	Memory int64
	// Stdout receives the build output, the log is used when nil.
	Stdout io.Writer
}

// RunContainerOptions are options passed in to the RunContainer method.
type RunContainerOptions struct {
	Image string
	// PullImage pulls the image when it is not present locally.
	PullImage bool
	// Command replaces the default command of the image when set.
	Command []string
	Env     []string
	// Memory is the memory limit of the container in bytes.
	Memory int64
	Stdout io.Writer
	Stderr io.Writer
	// OnStart is invoked with the container ID once the container runs.
	OnStart func(containerID string)
}

// New creates a new implementation of the py2i Docker interface.
func New(client Client, endpoint string, auth api.AuthConfig) Docker {
	return &engineDocker{
		client:   client,
		endpoint: endpoint,
		pullAuth: dockerregistry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			Email:         auth.Email,
			ServerAddress: auth.ServerAddress,
		},
	}
}

func (d *engineDocker) Endpoint() string {
	return d.endpoint
}

// CheckReachable checks if the Docker daemon is reachable.
func (d *engineDocker) CheckReachable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	if _, err := d.client.Ping(ctx); err != nil {
		return s2ierr.NewDockerConnectionError(d.endpoint, err)
	}
	return nil
}

// Version returns information of the docker client and server host.
func (d *engineDocker) Version(ctx context.Context) (dockertypes.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	return d.client.ServerVersion(ctx)
}

// BuildImage builds the image from the supplied tar stream and returns the
// ID of the built image. Any error reported in the build output stream fails
// the build; the daemon does not tag the image in that case.
func (d *engineDocker) BuildImage(ctx context.Context, opts BuildImageOptions) (string, error) {
	name := GetImageName(opts.Name)
	options := dockertypes.ImageBuildOptions{
		Tags:        []string{name},
		Dockerfile:  opts.Dockerfile,
		NoCache:     opts.NoCache,
		PullParent:  opts.PullParent,
		Remove:      true,
		ForceRemove: true,
		BuildArgs:   opts.BuildArgs,
		Labels:      opts.Labels,
		Memory:      opts.Memory,
	}
	log.V(2).Infof("Building container using config: %+v", options)

	resp, err := d.client.ImageBuild(ctx, opts.Context, options)
	if err != nil {
		return "", s2ierr.NewBuildError(name, err)
	}
	defer resp.Body.Close()

	out := opts.Stdout
	if out == nil {
		out = &logWriter{}
	}
	var imageID string
	aux := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var result dockertypes.BuildResult
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			log.V(4).Infof("Ignoring build aux message: %v", err)
			return
		}
		imageID = result.ID
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, aux); err != nil {
		return "", s2ierr.NewBuildError(name, err)
	}

	if len(imageID) == 0 {
		image, err := d.InspectImage(ctx, name)
		if err != nil {
			return "", err
		}
		imageID = image.ID
	}
	log.V(1).Infof("Built image %s (%s)", name, imageID)
	return imageID, nil
}

// InspectImage returns the image configuration of a local image.
func (d *engineDocker) InspectImage(ctx context.Context, name string) (*api.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	resp, _, err := d.client.ImageInspectWithRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	return toImage(resp), nil
}

// IsImageInLocalRegistry determines whether the supplied image is in the
// local registry.
func (d *engineDocker) IsImageInLocalRegistry(ctx context.Context, name string) (bool, error) {
	name = GetImageName(name)
	if _, err := d.InspectImage(ctx, name); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, s2ierr.NewInspectImageError(name, err)
	}
	return true, nil
}

// PullImage pulls an image into the local registry.
func (d *engineDocker) PullImage(ctx context.Context, name string) (*api.Image, error) {
	name = GetImageName(name)
	log.V(2).Infof("Pulling image %q", name)

	auth, err := dockerregistry.EncodeAuthConfig(d.pullAuth)
	if err != nil {
		return nil, s2ierr.NewPullImageError(name, err)
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultPullTimeout)
	defer cancel()
	body, err := d.client.ImagePull(ctx, name, dockertypes.ImagePullOptions{RegistryAuth: auth})
	if err != nil {
		return nil, s2ierr.NewPullImageError(name, err)
	}
	defer body.Close()
	if err := followProgress(body); err != nil {
		return nil, s2ierr.NewPullImageError(name, err)
	}

	image, err := d.InspectImage(ctx, name)
	if err != nil {
		return nil, s2ierr.NewInspectImageError(name, err)
	}
	return image, nil
}

// CheckAndPullImage pulls an image into the local registry if not present
// and returns the image metadata.
func (d *engineDocker) CheckAndPullImage(ctx context.Context, name string) (*api.Image, error) {
	name = GetImageName(name)
	present, err := d.IsImageInLocalRegistry(ctx, name)
	if err != nil {
		return nil, err
	}
	if present {
		log.V(3).Infof("Using locally available image %q", name)
		return d.InspectImage(ctx, name)
	}
	return d.PullImage(ctx, name)
}

// RemoveImage removes the image with specified ID.
func (d *engineDocker) RemoveImage(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	if _, err := d.client.ImageRemove(ctx, name, dockertypes.ImageRemoveOptions{PruneChildren: true}); err != nil {
		return s2ierr.NewRemoveImageError(name, err)
	}
	return nil
}

// RunContainer creates a container from the image, streams its output and
// waits for it to exit. The container is always removed. A non-zero exit code
// is returned as a ContainerError.
func (d *engineDocker) RunContainer(ctx context.Context, opts RunContainerOptions) error {
	var (
		image *api.Image
		err   error
	)
	if opts.PullImage {
		image, err = d.CheckAndPullImage(ctx, opts.Image)
	} else {
		image, err = d.InspectImage(ctx, GetImageName(opts.Image))
		if err != nil {
			err = s2ierr.NewInspectImageError(opts.Image, err)
		}
	}
	if err != nil {
		log.V(0).Infof("error: Unable to get image metadata for %s: %v", opts.Image, err)
		return err
	}

	config := &dockercontainer.Config{
		Image:        image.ID,
		Env:          opts.Env,
		AttachStdout: true,
		AttachStderr: true,
	}
	if len(opts.Command) > 0 {
		config.Cmd = opts.Command
	}
	hostConfig := &dockercontainer.HostConfig{}
	if opts.Memory > 0 {
		hostConfig.Resources.Memory = opts.Memory
		hostConfig.Resources.MemorySwap = opts.Memory
	}

	name := containerName(opts.Image)
	log.V(2).Infof("Creating container with options {Name:%q Config:%+v HostConfig:%+v}", name, config, hostConfig)
	created, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return err
	}
	defer d.removeContainer(created.ID)

	attached, err := d.client.ContainerAttach(ctx, created.ID, dockertypes.ContainerAttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return err
	}
	defer attached.Close()

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = &logWriter{}
	}
	if stderr == nil {
		stderr = &logWriter{}
	}
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attached.Reader)
		copied <- err
	}()

	statusCh, errCh := d.client.ContainerWait(ctx, created.ID, dockercontainer.WaitConditionNextExit)

	log.V(2).Infof("Starting container %q", name)
	if err := d.client.ContainerStart(ctx, created.ID, dockertypes.ContainerStartOptions{}); err != nil {
		return err
	}
	if opts.OnStart != nil {
		opts.OnStart(created.ID)
	}

	var exitCode int
	select {
	case status := <-statusCh:
		if status.Error != nil && len(status.Error.Message) > 0 {
			return fmt.Errorf("waiting for container %q: %s", name, status.Error.Message)
		}
		exitCode = int(status.StatusCode)
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := <-copied; err != nil && err != io.EOF {
		log.V(2).Infof("Unable to read container output: %v", err)
	}
	log.V(2).Infof("Container %q exited with %d", name, exitCode)
	if exitCode != 0 {
		return s2ierr.NewContainerError(opts.Image, exitCode, "")
	}
	return nil
}

func (d *engineDocker) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDockerTimeout)
	defer cancel()
	if err := d.client.ContainerRemove(ctx, id, dockertypes.ContainerRemoveOptions{RemoveVolumes: true, Force: true}); err != nil {
		log.Warningf("Unable to remove container %q: %v", id, err)
		return
	}
	log.V(4).Infof("Removed container %q", id)
}

// followProgress consumes a pull progress stream, logging throttled progress
// and returning the first error the stream reports.
func followProgress(body io.Reader) error {
	limiter := rate.NewLimiter(rate.Every(progressInterval), 1)
	dec := json.NewDecoder(body)
	for dec.More() {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			return err
		}
		if msg.Error != nil {
			return msg.Error
		}
		if msg.Progress != nil && msg.Progress.Total > 0 {
			if !limiter.Allow() {
				continue
			}
			log.V(2).Infof("%s: %s %s", msg.ID, msg.Status, msg.Progress.String())
			continue
		}
		if len(msg.ID) > 0 {
			log.V(3).Infof("%s: %s", msg.ID, msg.Status)
		} else if len(msg.Status) > 0 {
			log.V(2).Infof("%s", msg.Status)
		}
	}
	return nil
}

func toImage(resp dockertypes.ImageInspect) *api.Image {
	image := &api.Image{
		ID:   resp.ID,
		Size: resp.Size,
	}
	if created, err := time.Parse(time.RFC3339Nano, resp.Created); err == nil {
		image.Created = created
	}
	if resp.Config != nil {
		image.Config = &api.ContainerConfig{
			Labels:     resp.Config.Labels,
			Env:        resp.Config.Env,
			Cmd:        resp.Config.Cmd,
			Entrypoint: resp.Config.Entrypoint,
			WorkingDir: resp.Config.WorkingDir,
			User:       resp.Config.User,
		}
	}
	return image
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// containerName creates names for Docker containers launched by py2i. It is
// meant to resemble Kubernetes' pkg/kubelet/dockertools.BuildDockerName.
func containerName(image string) string {
	prefix := invalidNameChars.ReplaceAllString(strings.ToLower(image), "_")
	return fmt.Sprintf("py2i_%s_%08x", prefix, rand.Uint32())
}

// logWriter sends every complete line written to it to the log.
type logWriter struct {
	buf []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := strings.IndexAny(string(w.buf), "\r\n")
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.buf[:i])); len(line) > 0 {
			log.Info(line)
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
