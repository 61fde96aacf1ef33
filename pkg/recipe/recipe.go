package recipe

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/hashicorp/go-multierror"
	"github.com/opencontainers/go-digest"

	"github.com/openshift/py2i/pkg/api/constants"
)

// Instruction is a Dockerfile instruction emitted by a recipe step.
type Instruction string

// Instructions used by the recipe.
const (
	From    Instruction = "FROM"
	Label   Instruction = "LABEL"
	Workdir Instruction = "WORKDIR"
	Copy    Instruction = "COPY"
	Run     Instruction = "RUN"
	Cmd     Instruction = "CMD"
)

// Recipe describes how the application image is assembled.
type Recipe struct {
	// BaseImage is the Python 3 runtime image.
	BaseImage string `yaml:"baseImage"`

	// Maintainer is the contact stored in the maintainer label. Every image
	// carries one.
	Maintainer string `yaml:"maintainer"`

	// WorkDir is the absolute working directory inside the image.
	WorkDir string `yaml:"workDir"`

	// Manifest is the requirements file at the build context root.
	Manifest string `yaml:"manifest"`

	// Payload lists the context paths copied after the dependencies are
	// installed. Directories carry a trailing slash.
	Payload []string `yaml:"payload"`

	// Command is the default command in exec form.
	Command []string `yaml:"command"`
}

// Step is a single, ordered build step.
type Step struct {
	// Index is the 1-based position of the step in the Dockerfile.
	Index int
	// Instruction is the Dockerfile instruction.
	Instruction Instruction
	// Args are the instruction arguments.
	Args []string
	// Source is the build context path a COPY step reads, empty otherwise.
	Source string
}

// Default returns the recipe of the reference application: python:3 base,
// the default maintainer contact, /application working directory,
// requirements.txt, server/, config/__init__.py and start.py, started with
// python3 ./start.py.
func Default() *Recipe {
	return &Recipe{
		BaseImage:  constants.DefaultBaseImage,
		Maintainer: constants.DefaultMaintainer,
		WorkDir:    constants.DefaultWorkDir,
		Manifest:   constants.RequirementsFile,
		Payload: []string{
			constants.ServerDir,
			constants.ConfigPackage,
			constants.EntryPoint,
		},
		Command: []string{constants.PythonInterpreter, "./" + constants.EntryPoint},
	}
}

// InstallCommand returns the shell command installing the manifest. The
// package cache is never kept in the image.
func (r *Recipe) InstallCommand() string {
	return fmt.Sprintf("pip install --no-cache-dir -r %s", r.Manifest)
}

// Steps returns the build steps in the order they execute.
func (r *Recipe) Steps() []Step {
	steps := []Step{
		{Instruction: From, Args: []string{r.BaseImage}},
		{Instruction: Label, Args: []string{constants.MaintainerLabel, r.Maintainer}},
	}
	steps = append(steps,
		Step{Instruction: Workdir, Args: []string{r.WorkDir}},
		Step{Instruction: Copy, Args: []string{r.Manifest, destination(r.Manifest)}, Source: r.Manifest},
		Step{Instruction: Run, Args: []string{r.InstallCommand()}},
	)
	for _, p := range r.Payload {
		steps = append(steps, Step{Instruction: Copy, Args: []string{p, destination(p)}, Source: p})
	}
	steps = append(steps, Step{Instruction: Cmd, Args: r.Command})
	for i := range steps {
		steps[i].Index = i + 1
	}
	return steps
}

// StepFor returns the COPY step reading the given context path.
func (r *Recipe) StepFor(contextPath string) (Step, bool) {
	for _, s := range r.Steps() {
		if s.Instruction == Copy && s.Source == contextPath {
			return s, true
		}
	}
	return Step{}, false
}

// Paths returns every build context path the recipe reads, manifest first.
func (r *Recipe) Paths() []string {
	return append([]string{r.Manifest}, r.Payload...)
}

// Digest identifies the recipe by its rendered Dockerfile.
func (r *Recipe) Digest() (digest.Digest, error) {
	var b strings.Builder
	if err := r.Render(&b); err != nil {
		return "", err
	}
	return digest.FromString(b.String()), nil
}

// String renders the step as a Dockerfile line.
func (s Step) String() string {
	switch s.Instruction {
	case Label:
		return fmt.Sprintf("%s %s=%s", s.Instruction, s.Args[0], strconv.Quote(s.Args[1]))
	case Cmd:
		quoted := make([]string, 0, len(s.Args))
		for _, a := range s.Args {
			quoted = append(quoted, strconv.Quote(a))
		}
		return fmt.Sprintf("%s [%s]", s.Instruction, strings.Join(quoted, ", "))
	default:
		return fmt.Sprintf("%s %s", s.Instruction, strings.Join(s.Args, " "))
	}
}

// Validate reports every problem of the recipe at once.
func (r *Recipe) Validate() error {
	var result *multierror.Error

	if len(r.BaseImage) == 0 {
		result = multierror.Append(result, fmt.Errorf("baseImage must be set"))
	} else if _, err := reference.ParseNormalizedNamed(r.BaseImage); err != nil {
		result = multierror.Append(result, fmt.Errorf("baseImage %q: %v", r.BaseImage, err))
	}

	if len(strings.TrimSpace(r.Maintainer)) == 0 {
		result = multierror.Append(result, fmt.Errorf("maintainer must be set"))
	} else if strings.ContainsAny(r.Maintainer, "\n\r") {
		result = multierror.Append(result, fmt.Errorf("maintainer must be a single line"))
	}

	if !path.IsAbs(r.WorkDir) {
		result = multierror.Append(result, fmt.Errorf("workDir %q must be an absolute path", r.WorkDir))
	} else if path.Clean(r.WorkDir) != r.WorkDir {
		result = multierror.Append(result, fmt.Errorf("workDir %q must be clean, use %q", r.WorkDir, path.Clean(r.WorkDir)))
	}

	if len(r.Manifest) == 0 {
		result = multierror.Append(result, fmt.Errorf("manifest must be set"))
	} else if err := validContextPath(r.Manifest); err != nil {
		result = multierror.Append(result, fmt.Errorf("manifest: %v", err))
	} else if strings.HasSuffix(r.Manifest, "/") {
		result = multierror.Append(result, fmt.Errorf("manifest %q must be a file", r.Manifest))
	}

	seen := map[string]bool{r.Manifest: true}
	for _, p := range r.Payload {
		if err := validContextPath(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("payload: %v", err))
			continue
		}
		if seen[p] {
			result = multierror.Append(result, fmt.Errorf("payload: %q is copied twice", p))
		}
		seen[p] = true
	}

	if len(r.Command) == 0 || len(strings.TrimSpace(r.Command[0])) == 0 {
		result = multierror.Append(result, fmt.Errorf("command must name an executable"))
	}
	for _, a := range r.Command {
		if strings.ContainsAny(a, "\n\r") {
			result = multierror.Append(result, fmt.Errorf("command argument %q must be a single line", a))
		}
	}

	return result.ErrorOrNil()
}

// validContextPath checks the path stays inside the build context.
func validContextPath(p string) error {
	if len(p) == 0 {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsAny(p, " \t\n\r") {
		return fmt.Errorf("%q must not contain whitespace", p)
	}
	if path.IsAbs(p) {
		return fmt.Errorf("%q must be relative to the build context", p)
	}
	trimmed := strings.TrimSuffix(p, "/")
	if path.Clean(trimmed) != trimmed || trimmed == "." {
		return fmt.Errorf("%q must be a clean path", p)
	}
	if trimmed == ".." || strings.HasPrefix(trimmed, "../") {
		return fmt.Errorf("%q points outside the build context", p)
	}
	return nil
}

// destination keeps the relative path of the source below the working
// directory, so config/__init__.py lands in ./config/__init__.py.
func destination(p string) string {
	return "./" + p
}

// IsDir reports whether the payload path names a directory.
func IsDir(p string) bool {
	return strings.HasSuffix(p, "/")
}
