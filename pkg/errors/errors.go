package errors

import (
	"fmt"
	"strings"
)

// Common py2i error codes. The CLI exits with these codes so scripts can tell
// a broken build context apart from a failing daemon.
const (
	InspectImageError int = 1 + iota
	PullImageError
	DockerConnectionError
	BuildContextError
	RecipeError
	DockerfileCreateError
	BuildError
	ImageVerifyError
	RemoveImageError
	ExternalCommandError
	RemoteInspectError
)

// Error represents an error thrown during py2i execution
type Error struct {
	Message    string
	Details    error
	ErrorCode  int
	Suggestion string
}

// ContainerError is an error returned when a container exits with a non-zero code.
// ExitCode contains the exit code from the container
type ContainerError struct {
	Message    string
	Output     string
	ErrorCode  int
	Suggestion string
	ExitCode   int
}

// Error returns a string for a given error
func (s Error) Error() string {
	return s.Message
}

// Error returns a string for the given error
func (s ContainerError) Error() string {
	return s.Message
}

// NewInspectImageError returns a new error which indicates there was a problem
// inspecting the image
func NewInspectImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to get metadata for %s", name),
		Details:    err,
		ErrorCode:  InspectImageError,
		Suggestion: "check image name, or if using local image add --pull-policy=never flag",
	}
}

// NewPullImageError returns a new error which indicates there was a problem
// pulling the image
func NewPullImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to get %s", name),
		Details:    err,
		ErrorCode:  PullImageError,
		Suggestion: "check image name, or if using a local image add the --pull-policy=never flag",
	}
}

// NewDockerConnectionError returns a new error which indicates there was a
// problem connecting to the Docker daemon
func NewDockerConnectionError(endpoint string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to connect to Docker daemon at %s", endpoint),
		Details:    err,
		ErrorCode:  DockerConnectionError,
		Suggestion: "check the --url flag, the DOCKER_HOST variable and that the daemon is running",
	}
}

// NewBuildContextError returns a new error which indicates the build context
// does not contain everything the recipe copies into the image
func NewBuildContextError(dir string, err error) error {
	return Error{
		Message:    fmt.Sprintf("build context %s cannot satisfy the recipe", dir),
		Details:    err,
		ErrorCode:  BuildContextError,
		Suggestion: "add the missing files to the build context or adjust the recipe payload",
	}
}

// NewRecipeError returns a new error which indicates the recipe itself is invalid
func NewRecipeError(source string, err error) error {
	return Error{
		Message:    fmt.Sprintf("invalid recipe %s", source),
		Details:    err,
		ErrorCode:  RecipeError,
		Suggestion: "check the recipe file against the documented fields",
	}
}

// NewDockerfileCreateError returns an error if the Dockerfile cannot be written
func NewDockerfileCreateError(path string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to create Dockerfile %s", path),
		Details:    err,
		ErrorCode:  DockerfileCreateError,
		Suggestion: "check that the target directory exists and is writable",
	}
}

// NewBuildError returns a new error which indicates the image build failed
func NewBuildError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("building image %s failed", name),
		Details:    err,
		ErrorCode:  BuildError,
		Suggestion: "check the build output, a dependency listed in the requirements manifest may not be installable",
	}
}

// NewImageVerifyError returns a new error which indicates the built image does
// not honour the launch contract of the recipe
func NewImageVerifyError(name string, problems []string) error {
	return Error{
		Message:    fmt.Sprintf("image %s does not match the recipe: %s", name, strings.Join(problems, "; ")),
		ErrorCode:  ImageVerifyError,
		Suggestion: "a Dockerfile in the build context may override the generated one, remove it or rename it",
	}
}

// NewRemoveImageError returns a new error which indicates there was a problem
// removing an image
func NewRemoveImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to remove image %s", name),
		Details:    err,
		ErrorCode:  RemoveImageError,
		Suggestion: "remove the image manually",
	}
}

// NewExternalCommandError returns a new error which indicates the external
// builder exited with a non-zero code
func NewExternalCommandError(command string, err error) error {
	return Error{
		Message:    fmt.Sprintf("external build command %q failed", command),
		Details:    err,
		ErrorCode:  ExternalCommandError,
		Suggestion: "make sure the builder binary is installed and on PATH",
	}
}

// NewRemoteInspectError returns a new error which indicates the base image
// could not be inspected in its registry
func NewRemoteInspectError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to inspect %s in its registry", name),
		Details:    err,
		ErrorCode:  RemoteInspectError,
		Suggestion: "check the image name and the registry credentials in the Docker configuration file",
	}
}

// NewContainerError return a new error which indicates there was a problem
// running the container
func NewContainerError(name string, code int, output string) error {
	return ContainerError{
		Message:    fmt.Sprintf("container %q returned non-zero exit code %d", name, code),
		Output:     output,
		ErrorCode:  code,
		Suggestion: "check the container logs for more information on the failure",
		ExitCode:   code,
	}
}
