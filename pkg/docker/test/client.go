package test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type FakeDockerAddr struct {
}

func (a FakeDockerAddr) Network() string {
	return ""
}

func (a FakeDockerAddr) String() string {
	return ""
}

type FakeDockerConn struct {
}

func (c FakeDockerConn) Read(b []byte) (n int, err error) {
	return 0, io.EOF
}

func (c FakeDockerConn) Write(b []byte) (n int, err error) {
	return len(b), nil
}

func (c FakeDockerConn) Close() error {
	return nil
}

func (c FakeDockerConn) LocalAddr() net.Addr {
	return FakeDockerAddr{}
}

func (c FakeDockerConn) RemoteAddr() net.Addr {
	return FakeDockerAddr{}
}

func (c FakeDockerConn) SetDeadline(t time.Time) error {
	return nil
}

func (c FakeDockerConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (c FakeDockerConn) SetWriteDeadline(t time.Time) error {
	return nil
}

// FakeDockerClient provides a Fake client for Docker testing
type FakeDockerClient struct {
	// BuildImageOpts records the options of the last build.
	BuildImageOpts dockertypes.ImageBuildOptions
	// BuildContext records the build context the last build received.
	BuildContext []byte
	// BuildResponse is the JSON message stream returned by ImageBuild.
	BuildResponse string
	BuildImageErr error
	// BuiltImage is added to Images under every tag of a successful build.
	BuiltImage *dockertypes.ImageInspect

	Images map[string]dockertypes.ImageInspect

	Containers map[string]dockercontainer.Config
	// CreatedConfig and HostConfig record the last created container.
	CreatedConfig *dockercontainer.Config
	HostConfig    *dockercontainer.HostConfig

	// ContainerStdout and ContainerStderr are multiplexed into the attach
	// stream.
	ContainerStdout     string
	ContainerStderr     string
	WaitContainerResult int
	WaitContainerErr    error
	StartContainerErr   error

	PullResponse string
	PullFail     error
	// PulledImage is added to Images when a pull succeeds.
	PulledImage *dockertypes.ImageInspect

	PingErr error
	Version dockertypes.Version

	Calls []string
}

// NewFakeDockerClient returns a fake client with no images or containers.
func NewFakeDockerClient() *FakeDockerClient {
	return &FakeDockerClient{
		Images:     make(map[string]dockertypes.ImageInspect),
		Containers: make(map[string]dockercontainer.Config),
		Calls:      make([]string, 0),
	}
}

func (d *FakeDockerClient) ImageInspectWithRaw(ctx context.Context, imageID string) (dockertypes.ImageInspect, []byte, error) {
	d.Calls = append(d.Calls, "inspect_image")

	if image, exists := d.Images[imageID]; exists {
		return image, nil, nil
	}
	for _, image := range d.Images {
		if image.ID == imageID {
			return image, nil, nil
		}
	}
	return dockertypes.ImageInspect{}, nil, errdefs.NotFound(fmt.Errorf("No such image: %s", imageID))
}

func (d *FakeDockerClient) ImageBuild(ctx context.Context, buildContext io.Reader, options dockertypes.ImageBuildOptions) (dockertypes.ImageBuildResponse, error) {
	d.Calls = append(d.Calls, "build")
	d.BuildImageOpts = options
	if buildContext != nil {
		d.BuildContext, _ = ioutil.ReadAll(buildContext)
	}
	if d.BuildImageErr != nil {
		return dockertypes.ImageBuildResponse{}, d.BuildImageErr
	}
	if d.BuiltImage != nil && !bytes.Contains([]byte(d.BuildResponse), []byte(`"error"`)) {
		for _, tag := range options.Tags {
			d.Images[tag] = *d.BuiltImage
		}
	}
	return dockertypes.ImageBuildResponse{
		Body: ioutil.NopCloser(bytes.NewReader([]byte(d.BuildResponse))),
	}, nil
}

func (d *FakeDockerClient) ImagePull(ctx context.Context, ref string, options dockertypes.ImagePullOptions) (io.ReadCloser, error) {
	d.Calls = append(d.Calls, "pull")

	if d.PullFail != nil {
		return nil, d.PullFail
	}
	if d.PulledImage != nil {
		d.Images[ref] = *d.PulledImage
	}
	return ioutil.NopCloser(bytes.NewReader([]byte(d.PullResponse))), nil
}

func (d *FakeDockerClient) ImageRemove(ctx context.Context, imageID string, options dockertypes.ImageRemoveOptions) ([]dockertypes.ImageDeleteResponseItem, error) {
	d.Calls = append(d.Calls, "remove_image")

	removed := false
	for name, image := range d.Images {
		if name == imageID || image.ID == imageID {
			delete(d.Images, name)
			removed = true
		}
	}
	if removed {
		return []dockertypes.ImageDeleteResponseItem{{Deleted: imageID}}, nil
	}
	return nil, errors.New("image does not exist")
}

func (d *FakeDockerClient) ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *dockernetwork.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error) {
	d.Calls = append(d.Calls, "create")

	d.Containers[containerName] = *config
	d.CreatedConfig = config
	d.HostConfig = hostConfig
	return dockercontainer.CreateResponse{ID: containerName}, nil
}

func (d *FakeDockerClient) ContainerAttach(ctx context.Context, container string, options dockertypes.ContainerAttachOptions) (dockertypes.HijackedResponse, error) {
	d.Calls = append(d.Calls, "attach")

	var stream bytes.Buffer
	if len(d.ContainerStdout) > 0 {
		stdcopy.NewStdWriter(&stream, stdcopy.Stdout).Write([]byte(d.ContainerStdout))
	}
	if len(d.ContainerStderr) > 0 {
		stdcopy.NewStdWriter(&stream, stdcopy.Stderr).Write([]byte(d.ContainerStderr))
	}
	return dockertypes.HijackedResponse{
		Conn:   FakeDockerConn{},
		Reader: bufio.NewReader(&stream),
	}, nil
}

func (d *FakeDockerClient) ContainerStart(ctx context.Context, containerID string, options dockertypes.ContainerStartOptions) error {
	d.Calls = append(d.Calls, "start")
	return d.StartContainerErr
}

func (d *FakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition dockercontainer.WaitCondition) (<-chan dockercontainer.WaitResponse, <-chan error) {
	d.Calls = append(d.Calls, "wait")

	statusCh := make(chan dockercontainer.WaitResponse, 1)
	errCh := make(chan error, 1)
	if d.WaitContainerErr != nil {
		errCh <- d.WaitContainerErr
	} else {
		statusCh <- dockercontainer.WaitResponse{StatusCode: int64(d.WaitContainerResult)}
	}
	return statusCh, errCh
}

func (d *FakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options dockertypes.ContainerRemoveOptions) error {
	d.Calls = append(d.Calls, "remove")

	if _, exists := d.Containers[containerID]; exists {
		delete(d.Containers, containerID)
		return nil
	}
	return errors.New("container does not exist")
}

func (d *FakeDockerClient) ServerVersion(ctx context.Context) (dockertypes.Version, error) {
	d.Calls = append(d.Calls, "version")
	return d.Version, nil
}

func (d *FakeDockerClient) Ping(ctx context.Context) (dockertypes.Ping, error) {
	d.Calls = append(d.Calls, "ping")
	return dockertypes.Ping{}, d.PingErr
}
