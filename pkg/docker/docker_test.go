package docker

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/docker/test"
	s2ierr "github.com/openshift/py2i/pkg/errors"
)

func getDocker(client Client) *engineDocker {
	return New(client, "unix:///var/run/docker.sock", api.AuthConfig{}).(*engineDocker)
}

func pythonImage(id string) dockertypes.ImageInspect {
	return dockertypes.ImageInspect{
		ID:      id,
		Created: "2023-11-20T10:04:05.123456789Z",
		Config: &dockercontainer.Config{
			Cmd:        []string{"python3", "./start.py"},
			WorkingDir: "/application",
			Labels:     map[string]string{"maintainer": "ops@example.com"},
		},
	}
}

func TestContainerName(t *testing.T) {
	got := containerName("sub.domain.com:5000/repo:tag@sha256:ffffff")
	want := regexp.MustCompile(`^py2i_sub_domain_com_5000_repo_tag_sha256_ffffff_[0-9a-f]{8}$`)
	if !want.MatchString(got) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCheckReachable(t *testing.T) {
	fake := test.NewFakeDockerClient()
	dh := getDocker(fake)
	if err := dh.CheckReachable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	fake.PingErr = errors.New("connection refused")
	err := dh.CheckReachable(context.Background())
	e, ok := err.(s2ierr.Error)
	if !ok || e.ErrorCode != s2ierr.DockerConnectionError {
		t.Errorf("expected a docker connection error, got %#v", err)
	}
}

func TestIsImageInLocalRegistry(t *testing.T) {
	tests := map[string]struct {
		imageName      string
		images         map[string]dockertypes.ImageInspect
		expectedResult bool
	}{
		"ImageFound": {
			imageName:      "python:3",
			images:         map[string]dockertypes.ImageInspect{"python:3": pythonImage("sha256:aaa")},
			expectedResult: true,
		},
		"ImplicitTag": {
			imageName:      "myapp",
			images:         map[string]dockertypes.ImageInspect{"myapp:latest": pythonImage("sha256:bbb")},
			expectedResult: true,
		},
		"ImageNotFound": {
			imageName: "python:3",
		},
	}

	for name, tc := range tests {
		fake := test.NewFakeDockerClient()
		for k, v := range tc.images {
			fake.Images[k] = v
		}
		dh := getDocker(fake)

		result, err := dh.IsImageInLocalRegistry(context.Background(), tc.imageName)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
		if result != tc.expectedResult {
			t.Errorf("%s: expected result: %v. Got: %v", name, tc.expectedResult, result)
		}
		if !reflect.DeepEqual(fake.Calls, []string{"inspect_image"}) {
			t.Errorf("%s: unexpected calls %v", name, fake.Calls)
		}
	}
}

func TestCheckAndPullImage(t *testing.T) {
	image := pythonImage("sha256:aaa")
	tests := map[string]struct {
		present       bool
		pulled        *dockertypes.ImageInspect
		pullFail      error
		pullResponse  string
		calls         []string
		expectedError int
	}{
		"ImageExists": {
			present: true,
			calls:   []string{"inspect_image", "inspect_image"},
		},
		"ImageDoesNotExist": {
			pulled:       &image,
			pullResponse: `{"status":"Pulling from library/python","id":"3"}` + "\n" + `{"status":"Downloading","progressDetail":{"current":10,"total":100},"id":"abc"}` + "\n",
			calls:        []string{"inspect_image", "pull", "inspect_image"},
		},
		"PullError": {
			pullFail:      errors.New("registry unavailable"),
			calls:         []string{"inspect_image", "pull"},
			expectedError: s2ierr.PullImageError,
		},
		"PullStreamError": {
			pullResponse:  `{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n",
			calls:         []string{"inspect_image", "pull"},
			expectedError: s2ierr.PullImageError,
		},
	}

	for name, tc := range tests {
		fake := test.NewFakeDockerClient()
		if tc.present {
			fake.Images["python:3"] = image
		}
		fake.PulledImage = tc.pulled
		fake.PullFail = tc.pullFail
		fake.PullResponse = tc.pullResponse
		dh := getDocker(fake)

		result, err := dh.CheckAndPullImage(context.Background(), "python:3")
		if !reflect.DeepEqual(fake.Calls, tc.calls) {
			t.Errorf("%s: expected calls %v, got %v", name, tc.calls, fake.Calls)
		}
		if tc.expectedError != 0 {
			e, ok := err.(s2ierr.Error)
			if !ok || e.ErrorCode != tc.expectedError {
				t.Errorf("%s: expected error code %d, got %#v", name, tc.expectedError, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if result.ID != image.ID || result.Config.WorkingDir != "/application" {
			t.Errorf("%s: unexpected image %+v", name, result)
		}
		if result.Created.IsZero() {
			t.Errorf("%s: expected the creation time to be parsed", name)
		}
	}
}

func TestFollowProgress(t *testing.T) {
	tests := map[string]struct {
		stream string
		fails  bool
		err    string
	}{
		"Empty":             {stream: ""},
		"TrailingNewline":   {stream: `{"status":"Pulling from library/python","id":"3"}` + "\n"},
		"NoTrailingNewline": {stream: `{"status":"Pulling from library/python","id":"3"}`},
		"Progress": {
			stream: `{"status":"Downloading","progressDetail":{"current":10,"total":100},"id":"abc"}` + "\n" +
				`{"status":"Downloading","progressDetail":{"current":100,"total":100},"id":"abc"}` + "\n\n",
		},
		"StreamError": {
			stream: `{"status":"Pulling from library/python","id":"3"}` + "\n" +
				`{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n",
			fails: true,
			err:   "manifest unknown",
		},
		"Malformed": {stream: `{"status":`, fails: true},
	}
	for name, tc := range tests {
		err := followProgress(strings.NewReader(tc.stream))
		if !tc.fails {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.err) {
			t.Errorf("%s: expected an error containing %q, got %v", name, tc.err, err)
		}
	}
}

func TestBuildImage(t *testing.T) {
	image := pythonImage("sha256:0123456789ab")
	success := `{"stream":"Step 1/9 : FROM python:3\n"}
{"stream":" ---> 52bd3b3a0a2e\n"}
{"aux":{"ID":"sha256:0123456789ab"}}
{"stream":"Successfully built 0123456789ab\n"}
`
	failure := `{"stream":"Step 5/9 : RUN pip install --no-cache-dir -r requirements.txt\n"}
{"stream":"ERROR: No matching distribution found for nonexistent-package-py2i\n"}
{"errorDetail":{"code":1,"message":"The command '/bin/sh -c pip install --no-cache-dir -r requirements.txt' returned a non-zero code: 1"},"error":"The command '/bin/sh -c pip install --no-cache-dir -r requirements.txt' returned a non-zero code: 1"}
`
	tests := map[string]struct {
		response      string
		buildErr      error
		expectedID    string
		expectedError string
	}{
		"valid": {
			response:   success,
			expectedID: "sha256:0123456789ab",
		},
		"stream error": {
			response:      failure,
			expectedError: "returned a non-zero code: 1",
		},
		"request error": {
			buildErr:      errors.New("Test error"),
			expectedError: "Test error",
		},
	}

	for desc, tc := range tests {
		fake := test.NewFakeDockerClient()
		fake.BuildResponse = tc.response
		fake.BuildImageErr = tc.buildErr
		fake.BuiltImage = &image
		dh := getDocker(fake)

		var out bytes.Buffer
		imageID, err := dh.BuildImage(context.Background(), BuildImageOptions{
			Name:       "myapp",
			Context:    strings.NewReader("context"),
			Dockerfile: "Dockerfile.py2i",
			NoCache:    true,
			Labels:     map[string]string{"io.py2i.build.recipe": "abc"},
			Stdout:     &out,
		})

		opts := fake.BuildImageOpts
		if len(opts.Tags) != 1 || opts.Tags[0] != "myapp:latest" {
			t.Errorf("%s: unexpected tags %v", desc, opts.Tags)
		}
		if !opts.NoCache || !opts.Remove || !opts.ForceRemove || opts.Dockerfile != "Dockerfile.py2i" {
			t.Errorf("%s: unexpected build options %+v", desc, opts)
		}
		if string(fake.BuildContext) != "context" {
			t.Errorf("%s: the build context was not sent", desc)
		}

		if len(tc.expectedError) > 0 {
			e, ok := err.(s2ierr.Error)
			if !ok || e.ErrorCode != s2ierr.BuildError || !strings.Contains(e.Details.Error(), tc.expectedError) {
				t.Errorf("%s: unexpected error %#v", desc, err)
			}
			if _, tagged := fake.Images["myapp:latest"]; tagged {
				t.Errorf("%s: a failed build must not tag an image", desc)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", desc, err)
		}
		if imageID != tc.expectedID {
			t.Errorf("%s: expected image %s, got %s", desc, tc.expectedID, imageID)
		}
		if !strings.Contains(out.String(), "Step 1/9 : FROM python:3") {
			t.Errorf("%s: build output was not streamed: %q", desc, out.String())
		}
	}
}

func TestRunContainer(t *testing.T) {
	tests := map[string]struct {
		command      []string
		memory       int64
		exitCode     int
		waitErr      error
		expectedCode int
	}{
		"default command": {},
		"command override": {
			command: []string{"python3", "-c", "import config"},
		},
		"memory limit": {
			memory: 256 * 1024 * 1024,
		},
		"non-zero exit": {
			exitCode:     3,
			expectedCode: 3,
		},
		"wait error": {
			waitErr: errors.New("daemon went away"),
		},
	}

	for desc, tc := range tests {
		fake := test.NewFakeDockerClient()
		fake.Images["myapp:latest"] = pythonImage("sha256:0123456789ab")
		fake.ContainerStdout = "serving on 0.0.0.0:8080\n"
		fake.ContainerStderr = "Traceback (most recent call last):\n"
		fake.WaitContainerResult = tc.exitCode
		fake.WaitContainerErr = tc.waitErr
		dh := getDocker(fake)

		var stdout, stderr bytes.Buffer
		var started string
		err := dh.RunContainer(context.Background(), RunContainerOptions{
			Image:   "myapp",
			Command: tc.command,
			Memory:  tc.memory,
			Stdout:  &stdout,
			Stderr:  &stderr,
			OnStart: func(id string) { started = id },
		})

		expectedCalls := []string{"inspect_image", "create", "attach", "wait", "start", "remove"}
		if !reflect.DeepEqual(fake.Calls, expectedCalls) {
			t.Errorf("%s: expected calls %v, got %v", desc, expectedCalls, fake.Calls)
		}
		if len(fake.Containers) != 0 {
			t.Errorf("%s: the container was not removed", desc)
		}
		if !strings.HasPrefix(started, "py2i_myapp_") {
			t.Errorf("%s: unexpected started container %q", desc, started)
		}
		if fake.HostConfig.Memory != tc.memory {
			t.Errorf("%s: expected memory %d, got %d", desc, tc.memory, fake.HostConfig.Memory)
		}

		switch {
		case tc.waitErr != nil:
			if err != tc.waitErr {
				t.Errorf("%s: expected %v, got %v", desc, tc.waitErr, err)
			}
			continue
		case tc.expectedCode != 0:
			e, ok := err.(s2ierr.ContainerError)
			if !ok || e.ExitCode != tc.expectedCode {
				t.Errorf("%s: expected container error with exit code %d, got %#v", desc, tc.expectedCode, err)
			}
		case err != nil:
			t.Errorf("%s: unexpected error: %v", desc, err)
		}
		if stdout.String() != "serving on 0.0.0.0:8080\n" || stderr.String() != "Traceback (most recent call last):\n" {
			t.Errorf("%s: unexpected output %q / %q", desc, stdout.String(), stderr.String())
		}
	}
}

func TestRunContainerCommand(t *testing.T) {
	tests := map[string]struct {
		command  []string
		expected []string
	}{
		"image default": {},
		"override":      {command: []string{"python3", "-V"}, expected: []string{"python3", "-V"}},
	}
	for desc, tc := range tests {
		fake := test.NewFakeDockerClient()
		fake.Images["myapp:latest"] = pythonImage("sha256:0123456789ab")
		dh := getDocker(fake)

		err := dh.RunContainer(context.Background(), RunContainerOptions{Image: "myapp", Command: tc.command, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", desc, err)
		}
		cfg := fake.CreatedConfig
		if !reflect.DeepEqual([]string(cfg.Cmd), tc.expected) {
			t.Errorf("%s: unexpected command %v", desc, cfg.Cmd)
		}
		if cfg.Image != "sha256:0123456789ab" {
			t.Errorf("%s: expected the container to use the image ID, got %q", desc, cfg.Image)
		}
		if !cfg.AttachStdout || !cfg.AttachStderr {
			t.Errorf("%s: expected stdout and stderr to be attached", desc)
		}
	}
}

func TestRemoveImage(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.Images["myapp:latest"] = pythonImage("sha256:0123456789ab")
	dh := getDocker(fake)

	if err := dh.RemoveImage(context.Background(), "sha256:0123456789ab"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(fake.Images) != 0 {
		t.Errorf("expected the image to be removed")
	}
	err := dh.RemoveImage(context.Background(), "sha256:0123456789ab")
	if e, ok := err.(s2ierr.Error); !ok || e.ErrorCode != s2ierr.RemoveImageError {
		t.Errorf("expected a remove image error, got %#v", err)
	}
}
