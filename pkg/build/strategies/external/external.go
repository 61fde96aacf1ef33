// Package external builds the recipe image by shelling out to an external
// builder CLI: docker, podman or buildah.
package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/buildah"
	"github.com/openshift/py2i/pkg/buildcontext"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/remote"
	"github.com/openshift/py2i/pkg/util"
	utillog "github.com/openshift/py2i/pkg/util/log"
	utilstatus "github.com/openshift/py2i/pkg/util/status"
)

// ImageTool inspects and removes the images an external builder produces.
type ImageTool interface {
	build.ImageInspector
	RemoveImage(ctx context.Context, name string) error
	Version(ctx context.Context) (string, error)
}

// External represents the shell out for external build commands.
type External struct {
	tool      ImageTool
	inspector remote.Inspector
	stdout    io.Writer
	stderr    io.Writer
}

var (
	// local logger
	log = utillog.StderrLog

	// flags shared by every builder, the builders agree on their spelling
	flagsTemplate = `{{ define "flags" }}` +
		`{{ if .NoCache }} --no-cache{{ end }}` +
		`{{ if .Pull }} --pull{{ end }}` +
		`{{ if .Memory }} --memory {{ .Memory }}{{ end }}` +
		`{{ range .Labels }} --label {{ quote . }}{{ end }}` +
		`{{ range .BuildArgs }} --build-arg {{ quote . }}{{ end }}` +
		`{{ end }}`

	// supported external commands, template is based on commandData
	commands = map[string]string{
		constants.BuildahBuilder: `buildah bud --tag {{ quote .Tag }} --file {{ quote .AsDockerfile }}{{ template "flags" . }} {{ quote (or .ContextDir ".") }}`,
		constants.DockerBuilder:  `docker build --tag {{ quote .Tag }} --file {{ quote .AsDockerfile }}{{ template "flags" . }} {{ quote (or .ContextDir ".") }}`,
		constants.PodmanBuilder:  `podman build --tag {{ quote .Tag }} --file {{ quote .AsDockerfile }}{{ template "flags" . }} {{ quote (or .ContextDir ".") }}`,
	}

	safeWord = regexp.MustCompile(`^[A-Za-z0-9_./:@=,+%-]+$`)
)

// commandData feeds the command templates.
type commandData struct {
	Tag          string
	AsDockerfile string
	ContextDir   string
	NoCache      bool
	Pull         bool
	Memory       int64
	// Labels and BuildArgs are sorted NAME=VALUE pairs.
	Labels    []string
	BuildArgs []string
}

// GetBuilders returns a list of command names, based global commands map.
func GetBuilders() []string {
	builders := []string{}
	for k := range commands {
		builders = append(builders, k)
	}
	sort.Strings(builders)
	return builders
}

// ValidBuilderName returns a boolean based in keys of global commands map.
func ValidBuilderName(name string) bool {
	_, exists := commands[name]
	return exists
}

// quote protects a template value from the shell word splitting applied to
// the rendered command.
func quote(s string) string {
	if safeWord.MatchString(s) {
		return s
	}
	return "'" + strings.Replace(s, "'", `'"'"'`, -1) + "'"
}

func pairs(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// newCommandData collects the template values of a build.
func newCommandData(config *api.Config, labels map[string]string) commandData {
	buildArgs := config.Environment.AsStrings()
	sort.Strings(buildArgs)
	return commandData{
		Tag:          docker.GetImageName(config.Tag),
		AsDockerfile: config.AsDockerfile,
		ContextDir:   config.ContextDir,
		NoCache:      !config.UseCache,
		Pull:         config.PullPolicy == api.PullAlways,
		Memory:       config.MemoryLimit,
		Labels:       pairs(labels),
		BuildArgs:    buildArgs,
	}
}

// renderCommand render a shell command for the configured builder. It can
// return error in case of template parsing or evaluation issues.
func (e *External) renderCommand(builder string, data commandData) (string, error) {
	commandTemplate, exists := commands[builder]
	if !exists {
		return "", fmt.Errorf("cannot find command '%s' in dictionary: '%#v'",
			builder, commands)
	}

	t, err := template.New("external-command").Funcs(template.FuncMap{"quote": quote}).Parse(flagsTemplate)
	if err != nil {
		return "", err
	}
	if t, err = t.Parse(commandTemplate); err != nil {
		return "", err
	}
	var output bytes.Buffer
	if err = t.Execute(&output, data); err != nil {
		return "", err
	}
	return output.String(), nil
}

// execute the given external command. Returns the outcomes as api.Result,
// making sure it only marks result as success when exit-code is zero.
func (e *External) execute(ctx context.Context, externalCommand string) (*api.Result, error) {
	log.V(0).Infof("Executing external build command: '%s'", externalCommand)

	res := &api.Result{Success: false}
	res.Messages = append(res.Messages, fmt.Sprintf("Running command: '%s'", externalCommand))

	externalCommandSlice, err := shellwords.Parse(externalCommand)
	if err != nil {
		res.Messages = append(res.Messages, err.Error())
		return res, err
	}
	if len(externalCommandSlice) == 0 {
		return res, fmt.Errorf("empty external command")
	}
	cmd := exec.CommandContext(ctx, externalCommandSlice[0], externalCommandSlice[1:]...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Run(); err != nil {
		if exitErr, okay := err.(*exec.ExitError); okay {
			exitCode := exitErr.ExitCode()
			log.V(0).Infof("External command return-code: %d", exitCode)
			res.Messages = append(res.Messages, fmt.Sprintf("exit-code: %d", exitCode))
		} else {
			res.Messages = append(res.Messages, err.Error())
		}
		return res, err
	}
	res.Messages = append(res.Messages, "exit-code: 0")
	res.Success = true
	return res, nil
}

// asDockerfile inspect config, if user has already informed `--as-dockerfile`
// option, that's simply returned, otherwise the Dockerfile is written into
// the build context.
func (e *External) asDockerfile(config *api.Config) string {
	if len(config.AsDockerfile) > 0 {
		return config.AsDockerfile
	}

	if len(config.ContextDir) > 0 {
		return filepath.Join(config.ContextDir, constants.GeneratedDockerfile)
	}
	return constants.GeneratedDockerfile
}

// Build renders the recipe into AsDockerfile first, and then proceeds to
// execute the external command and verify the image it produced.
func (e *External) Build(ctx context.Context, config *api.Config) (*api.Result, error) {
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

func (e *External) build(ctx context.Context, config *api.Config, result *api.Result) error {
	builder := config.ResolvedBuilder()
	if version, err := e.tool.Version(ctx); err == nil {
		log.V(2).Infof("Using %s", version)
	}

	r, err := build.Preflight(ctx, config, e.inspector, result)
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

	// generating dockerfile following AsDockerfile directive
	startTime := time.Now()
	dockerfilePath := e.asDockerfile(config)
	err = r.WriteDockerfile(dockerfilePath)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.RenderDockerfileStep, startTime, time.Now())
	if err != nil {
		return s2ierr.NewDockerfileCreateError(dockerfilePath, err)
	}
	result.Dockerfile, _ = build.RenderDockerfile(r)

	data := newCommandData(config, labels)
	data.AsDockerfile = dockerfilePath
	externalCommand, err := e.renderCommand(builder, data)
	if err != nil {
		return s2ierr.NewExternalCommandError(builder, err)
	}

	startTime = time.Now()
	res, err := e.execute(ctx, externalCommand)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.BuildImageStep, startTime, time.Now())
	result.Messages = append(result.Messages, res.Messages...)
	if err != nil {
		return s2ierr.NewExternalCommandError(externalCommand, err)
	}

	if config.SkipVerify {
		return nil
	}
	tag := docker.GetImageName(config.Tag)
	if err := build.Verify(ctx, e.tool, tag, r, result); err != nil {
		log.V(0).Infof("Removing image %s that does not match the recipe", tag)
		if rmErr := e.tool.RemoveImage(ctx, tag); rmErr != nil {
			log.Warningf("Unable to remove image %s: %v", tag, rmErr)
		}
		return err
	}
	return nil
}

// New instance of External command strategy for the configured builder.
func New(config *api.Config, inspector remote.Inspector) *External {
	e := &External{
		tool:      buildah.New(config.ResolvedBuilder()),
		inspector: inspector,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	if config.Quiet {
		e.stdout = ioutil.Discard
	}
	return e
}
