package engine

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/docker"
	"github.com/openshift/py2i/pkg/docker/test"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	utilstatus "github.com/openshift/py2i/pkg/util/status"
)

const (
	successStream = `{"stream":"Step 1/9 : FROM python:3\n"}
{"stream":"Step 5/9 : RUN pip install --no-cache-dir -r requirements.txt\n"}
{"aux":{"ID":"sha256:1f2e3d4c5b6a"}}
{"stream":"Successfully built 1f2e3d4c5b6a\n"}
`
	installFailureStream = `{"stream":"Step 5/9 : RUN pip install --no-cache-dir -r requirements.txt\n"}
{"stream":"ERROR: No matching distribution found for nonexistent-package-py2i\n"}
{"errorDetail":{"code":1,"message":"The command '/bin/sh -c pip install --no-cache-dir -r requirements.txt' returned a non-zero code: 1"},"error":"The command '/bin/sh -c pip install --no-cache-dir -r requirements.txt' returned a non-zero code: 1"}
`
	maintainer = "platform@example.com"
)

func createContext(t *testing.T, files map[string]string) string {
	dir, err := ioutil.TempDir("", "py2i-engine-")
	if err != nil {
		t.Fatalf("unable to create temp dir: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("unable to create %s: %v", filepath.Dir(path), err)
		}
		if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("unable to write %s: %v", path, err)
		}
	}
	return dir
}

func application(requirements string) map[string]string {
	return map[string]string{
		"requirements.txt":   requirements,
		"server/routing.py":  "from config import settings\n",
		"config/__init__.py": "",
		"start.py":           "import server.routing\n",
	}
}

func builtImage(cmd []string, workDir string) *dockertypes.ImageInspect {
	return &dockertypes.ImageInspect{
		ID: "sha256:1f2e3d4c5b6a",
		Config: &dockercontainer.Config{
			Cmd:        cmd,
			WorkingDir: workDir,
			Labels:     map[string]string{constants.MaintainerLabel: maintainer},
		},
	}
}

func newFake() *test.FakeDockerClient {
	fake := test.NewFakeDockerClient()
	fake.Images["python:3"] = dockertypes.ImageInspect{ID: "sha256:base", Config: &dockercontainer.Config{}}
	fake.BuildResponse = successStream
	fake.BuiltImage = builtImage([]string{"python3", "./start.py"}, "/application")
	return fake
}

func newConfig(dir string) *api.Config {
	return &api.Config{
		ContextDir: dir,
		Tag:        "myapp",
		Maintainer: maintainer,
		PullPolicy: api.PullIfNotPresent,
		Quiet:      true,
	}
}

func contains(calls []string, call string) bool {
	for _, c := range calls {
		if c == call {
			return true
		}
	}
	return false
}

func TestBuildValidContext(t *testing.T) {
	dir := createContext(t, application("flask==2.3.2\nbcrypt\n"))
	defer os.RemoveAll(dir)
	fake := newFake()
	config := newConfig(dir)

	result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.ImageID != "sha256:1f2e3d4c5b6a" {
		t.Errorf("unexpected result %+v", result)
	}
	if !strings.Contains(result.Dockerfile, `CMD ["python3", "./start.py"]`) {
		t.Errorf("the default command is not rendered in exec form:\n%s", result.Dockerfile)
	}
	if len(result.ContextDigest) == 0 {
		t.Errorf("expected the context digest to be recorded")
	}

	opts := fake.BuildImageOpts
	if opts.Dockerfile != constants.GeneratedDockerfile {
		t.Errorf("unexpected Dockerfile %q", opts.Dockerfile)
	}
	if opts.Labels[constants.ContextDigestLabel] != result.ContextDigest {
		t.Errorf("expected the context digest label, got %v", opts.Labels)
	}
	if !bytes.Contains(fake.BuildContext, []byte(constants.GeneratedDockerfile)) {
		t.Errorf("the rendered Dockerfile was not sent with the build context")
	}
	if contains(fake.Calls, "pull") {
		t.Errorf("the base image is present and must not be pulled: %v", fake.Calls)
	}

	stages := map[api.StageName]bool{}
	for _, s := range result.BuildInfo.Stages {
		stages[s.Name] = true
	}
	for _, s := range []api.StageName{api.StagePreflight, api.StageBuild, api.StageVerify} {
		if !stages[s] {
			t.Errorf("stage %s was not recorded: %+v", s, result.BuildInfo.Stages)
		}
	}
}

func TestBuildReinstallsDependencies(t *testing.T) {
	dir := createContext(t, application("flask==2.3.2\n"))
	defer os.RemoveAll(dir)

	tests := map[string]struct {
		useCache        bool
		expectedNoCache bool
	}{
		"default":   {expectedNoCache: true},
		"use cache": {useCache: true, expectedNoCache: false},
	}
	for desc, tc := range tests {
		fake := newFake()
		config := newConfig(dir)
		config.UseCache = tc.useCache
		result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), config)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", desc, err)
		}
		if fake.BuildImageOpts.NoCache != tc.expectedNoCache {
			t.Errorf("%s: expected NoCache=%v", desc, tc.expectedNoCache)
		}
		if !strings.Contains(result.Dockerfile, "pip install --no-cache-dir -r requirements.txt") {
			t.Errorf("%s: the install step keeps the package cache:\n%s", desc, result.Dockerfile)
		}
	}
}

func TestBuildNonexistentPackage(t *testing.T) {
	dir := createContext(t, application("nonexistent-package-py2i==0.0.0\n"))
	defer os.RemoveAll(dir)
	fake := newFake()
	fake.BuildResponse = installFailureStream

	result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), newConfig(dir))
	e, ok := err.(s2ierr.Error)
	if !ok || e.ErrorCode != s2ierr.BuildError {
		t.Fatalf("expected a build error, got %#v", err)
	}
	if result.Success {
		t.Errorf("a failed build must not succeed")
	}
	if result.BuildInfo.FailureReason.Reason != utilstatus.ReasonDockerImageBuildFailed {
		t.Errorf("unexpected failure reason %+v", result.BuildInfo.FailureReason)
	}
	if _, tagged := fake.Images["myapp:latest"]; tagged {
		t.Errorf("no image may be tagged when the install fails")
	}
}

func TestBuildMissingServer(t *testing.T) {
	files := application("flask\n")
	delete(files, "server/routing.py")
	dir := createContext(t, files)
	defer os.RemoveAll(dir)
	fake := newFake()

	result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), newConfig(dir))
	e, ok := err.(s2ierr.Error)
	if !ok || e.ErrorCode != s2ierr.BuildContextError {
		t.Fatalf("expected a build context error, got %#v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("the daemon must not be contacted, got %v", fake.Calls)
	}
	if len(result.Messages) != 1 || !strings.Contains(result.Messages[0], "step 6/9 (COPY server/ ./server/)") {
		t.Errorf("expected the failing COPY step to be reported, got %v", result.Messages)
	}
	if result.BuildInfo.FailureReason.Reason != utilstatus.ReasonContextCheckFailed {
		t.Errorf("unexpected failure reason %+v", result.BuildInfo.FailureReason)
	}
}

func TestBuildRemovesImageFailingVerification(t *testing.T) {
	dir := createContext(t, application("flask\n"))
	defer os.RemoveAll(dir)

	tests := map[string]*dockertypes.ImageInspect{
		"wrong command": builtImage([]string{"/bin/sh", "-c", "python3 start.py"}, "/application"),
		"wrong workdir": builtImage([]string{"python3", "./start.py"}, "/"),
	}
	for desc, image := range tests {
		fake := newFake()
		fake.BuiltImage = image

		result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), newConfig(dir))
		e, ok := err.(s2ierr.Error)
		if !ok || e.ErrorCode != s2ierr.ImageVerifyError {
			t.Errorf("%s: expected an image verify error, got %#v", desc, err)
			continue
		}
		if result.Success {
			t.Errorf("%s: verification failure must fail the build", desc)
		}
		if !contains(fake.Calls, "remove_image") {
			t.Errorf("%s: expected the image to be removed, calls %v", desc, fake.Calls)
		}
		if _, tagged := fake.Images["myapp:latest"]; tagged {
			t.Errorf("%s: the image is still tagged", desc)
		}
	}
}

func TestBuildPullPolicy(t *testing.T) {
	dir := createContext(t, application("flask\n"))
	defer os.RemoveAll(dir)

	tests := map[string]struct {
		policy             api.PullPolicy
		basePresent        bool
		expectedPullParent bool
		expectedPull       bool
		expectedError      int
	}{
		"always": {
			policy:             api.PullAlways,
			expectedPullParent: true,
		},
		"if-not-present, missing": {
			policy:       api.PullIfNotPresent,
			expectedPull: true,
		},
		"never, present": {
			policy:      api.PullNever,
			basePresent: true,
		},
		"never, missing": {
			policy:        api.PullNever,
			expectedError: s2ierr.InspectImageError,
		},
	}
	for desc, tc := range tests {
		fake := newFake()
		if !tc.basePresent {
			delete(fake.Images, "python:3")
		}
		fake.PulledImage = &dockertypes.ImageInspect{ID: "sha256:base", Config: &dockercontainer.Config{}}
		config := newConfig(dir)
		config.PullPolicy = tc.policy

		_, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), config)
		if tc.expectedError != 0 {
			e, ok := err.(s2ierr.Error)
			if !ok || e.ErrorCode != tc.expectedError {
				t.Errorf("%s: expected error code %d, got %#v", desc, tc.expectedError, err)
			}
			if contains(fake.Calls, "build") {
				t.Errorf("%s: the build must not start", desc)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", desc, err)
			continue
		}
		if fake.BuildImageOpts.PullParent != tc.expectedPullParent {
			t.Errorf("%s: expected PullParent=%v", desc, tc.expectedPullParent)
		}
		if contains(fake.Calls, "pull") != tc.expectedPull {
			t.Errorf("%s: expected pull=%v, calls %v", desc, tc.expectedPull, fake.Calls)
		}
	}
}

func TestBuildWritesDockerfile(t *testing.T) {
	dir := createContext(t, application("flask\n"))
	defer os.RemoveAll(dir)
	fake := newFake()
	config := newConfig(dir)
	config.AsDockerfile = filepath.Join(dir, "out", "Dockerfile")
	config.SkipVerify = true

	result, err := New(docker.New(fake, "", api.AuthConfig{}), nil).Build(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	written, err := ioutil.ReadFile(config.AsDockerfile)
	if err != nil {
		t.Fatalf("the Dockerfile was not written: %v", err)
	}
	if string(written) != result.Dockerfile {
		t.Errorf("written Dockerfile differs from the built one:\n%s", written)
	}
}
