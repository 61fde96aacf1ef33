package cmd

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/docker"
	dockertest "github.com/openshift/py2i/pkg/docker/test"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/recipe"
)

func createContext(t *testing.T, files map[string]string) string {
	dir, err := ioutil.TempDir("", "py2i-cmd-")
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

func application() map[string]string {
	return map[string]string{
		"requirements.txt":   "flask\n",
		"server/routing.py":  "",
		"config/__init__.py": "",
		"start.py":           "",
	}
}

func execute(c *cobra.Command, args ...string) error {
	c.SetArgs(args)
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetOut(ioutil.Discard)
	return c.Execute()
}

func TestCheck(t *testing.T) {
	complete := application()
	noServer := application()
	delete(noServer, "server/routing.py")

	tests := []struct {
		name   string
		files  map[string]string
		err    bool
		output string
	}{
		{name: "complete", files: complete, output: "satisfies the recipe"},
		{name: "missing server", files: noServer, err: true, output: "MISSING step 6/9 (COPY server/ ./server/)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := createContext(t, tc.files)
			defer os.RemoveAll(dir)

			var out bytes.Buffer
			err := execute(NewCmdCheck(&api.Config{}, nil, &out), dir)
			if tc.err != (err != nil) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if !strings.Contains(out.String(), tc.output) {
				t.Errorf("expected output to contain %q, got:\n%s", tc.output, out.String())
			}
		})
	}
}

func TestVerifyCommand(t *testing.T) {
	dir := createContext(t, application())
	defer os.RemoveAll(dir)

	good := filepath.Join(dir, "Dockerfile.good")
	if err := recipe.Default().WriteDockerfile(good); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "Dockerfile.bad")
	if err := ioutil.WriteFile(bad, []byte("FROM python:2\nWORKDIR /application\nCMD python3 start.py\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := execute(NewCmdVerify(&api.Config{}, &out), "--context", dir, good); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}

	out.Reset()
	err := execute(NewCmdVerify(&api.Config{}, &out), "--context", dir, bad)
	e, ok := err.(s2ierr.Error)
	if !ok || e.ErrorCode != s2ierr.ImageVerifyError {
		t.Fatalf("expected an image verification error, got %#v", err)
	}
	for _, expected := range []string{`base image must be "python:3"`, "exec form", "never installed"} {
		if !strings.Contains(out.String(), expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, out.String())
		}
	}
}

func TestExport(t *testing.T) {
	files := application()
	files["scripts/sync_data.py"] = ""
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "context.tar")
	if err := execute(NewCmdExport(&api.Config{}, ioutil.Discard), dir, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(target)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var names []string
	tr := tar.NewReader(f)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if h.Typeflag == tar.TypeReg {
			names = append(names, h.Name)
		}
	}
	sort.Strings(names)
	expected := []string{constants.GeneratedDockerfile, "config/__init__.py", "requirements.txt", "server/routing.py", "start.py"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v in the archive, got %v", expected, names)
	}
}

func TestInspect(t *testing.T) {
	dir := createContext(t, application())
	defer os.RemoveAll(dir)

	tests := []struct {
		name    string
		cmd     []string
		workdir string
		err     bool
	}{
		{name: "follows the recipe", cmd: []string{"python3", "./start.py"}, workdir: "/application"},
		{name: "wrong command", cmd: []string{"python3", "app.py"}, workdir: "/application", err: true},
		{name: "wrong workdir", cmd: []string{"python3", "./start.py"}, workdir: "/", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := dockertest.NewFakeDockerClient()
			fake.Images["myapp:latest"] = dockertypes.ImageInspect{
				ID: "sha256:1234",
				Config: &dockercontainer.Config{
					Cmd:        strslice.StrSlice(tc.cmd),
					WorkingDir: tc.workdir,
					Labels: map[string]string{
						constants.MaintainerLabel:    constants.DefaultMaintainer,
						constants.ContextDigestLabel: "sha256:abcd",
						"other":                      "x",
					},
				},
			}
			newDocker := func(ctx context.Context, cfg *api.Config) (docker.Docker, error) {
				return docker.New(fake, "", api.AuthConfig{}), nil
			}

			var out bytes.Buffer
			err := execute(NewCmdInspect(&api.Config{}, newDocker, &out), "--context", dir, "myapp")
			if tc.err != (err != nil) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if !strings.Contains(out.String(), constants.ContextDigestLabel+"=sha256:abcd") {
				t.Errorf("expected the context digest label in the output, got:\n%s", out.String())
			}
			if strings.Contains(out.String(), "other=x") {
				t.Errorf("expected only py2i labels in the output, got:\n%s", out.String())
			}
		})
	}
}
