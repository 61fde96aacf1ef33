package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/openshift/py2i/pkg/api/constants"
)

// Config contains essential fields for performing a build.
type Config struct {
	// ContextDir is the build context: the local directory holding the
	// requirements manifest and the application payload.
	ContextDir string

	// Tag is a result image tag name.
	Tag string

	// RecipeFile is an optional recipe file overriding the default recipe.
	// Relative paths are resolved against ContextDir.
	RecipeFile string

	// BaseImage overrides the recipe base image when set.
	BaseImage string

	// Maintainer overrides the recipe maintainer contact when set.
	Maintainer string

	// Builder selects how the image is built: the Docker Engine API
	// ("engine") or an external command ("docker", "podman", "buildah").
	Builder string

	// AsDockerfile is the path the rendered Dockerfile is written to. The
	// engine builder only writes it when set; the external builders always
	// need it and default to Dockerfile.py2i inside the context.
	AsDockerfile string

	// DockerConfig describes how to access host docker daemon.
	DockerConfig *DockerConfig

	// DockerCfgPath provides the path to the .dockercfg file
	DockerCfgPath string

	// PullAuthentication holds the authentication information for pulling the
	// base image from private repositories.
	PullAuthentication AuthConfig

	// PullPolicy specifies when to pull the base image
	PullPolicy PullPolicy

	// UseCache allows the daemon to reuse cached layers. It is off by default
	// so every build re-resolves and reinstalls the dependencies.
	UseCache bool

	// Quiet describes whether to suppress the build output.
	Quiet bool

	// Environment is a list of build arguments passed to the build.
	Environment EnvironmentList

	// EnvironmentFile provides the path to a file with list of build arguments.
	EnvironmentFile string

	// DisplayName is a result image display-name label. This defaults to the
	// output image name.
	DisplayName string

	// Description is a result image description label.
	Description string

	// Labels specify labels and their values to be applied to the resulting
	// image.
	Labels map[string]string

	// MemoryLimit is the memory limit in bytes for build and run containers.
	// Zero means no limit.
	MemoryLimit int64

	// Command overrides the default command when running the image.
	Command string

	// RunImage will trigger a "docker run ..." invocation of the produced
	// image so the user can see if it operates as they would expect
	RunImage bool

	// SkipVerify disables the inspection of the built image against the recipe.
	SkipVerify bool

	// RemoteBaseCheck inspects the base image in its registry before building.
	RemoteBaseCheck bool

	// MetricsFile is where build metrics are written in the Prometheus text
	// format, empty disables it.
	MetricsFile string

	// BuildTimeout bounds a single build, zero means no timeout.
	BuildTimeout time.Duration
}

// DockerConfig contains the configuration for a Docker connection.
type DockerConfig struct {
	// Endpoint is the docker network endpoint or socket
	Endpoint string

	// CertFile is the certificate file path for a TLS connection
	CertFile string

	// KeyFile is the key file path for a TLS connection
	KeyFile string

	// CAFile is the certificate authority file path for a TLS connection
	CAFile string

	// UseTLS indicates if TLS must be used
	UseTLS bool

	// TLSVerify indicates if TLS peer must be verified
	TLSVerify bool
}

// AuthConfig is our abstraction of the Registry authorization information for
// whatever docker client we happen to be based on
type AuthConfig struct {
	Username      string
	Password      string
	Email         string
	ServerAddress string
}

// Result structure contains information from build process.
type Result struct {
	// Success describes whether the build was successful.
	Success bool

	// Messages is a list of messages from build process.
	Messages []string

	// ImageID describes resulting image ID.
	ImageID string

	// Dockerfile is the rendered Dockerfile the image was built from.
	Dockerfile string

	// ContextDigest is the digest of the files sent to the builder.
	ContextDigest string

	// BuildInfo holds information about the result of a build.
	BuildInfo BuildInfo
}

// BuildInfo contains information about the build process.
type BuildInfo struct {
	// Stages contains details about each build stage.
	Stages []StageInfo

	// FailureReason is a camel case reason that is used by the machine to
	// report the failure of the build.
	FailureReason FailureReason
}

// StageInfo contains details about a build stage.
type StageInfo struct {
	// Name is the identifier for each build stage.
	Name StageName

	// StartTime identifies when this stage started.
	StartTime time.Time

	// DurationMilliseconds identifies how long this stage ran.
	DurationMilliseconds int64

	// Steps contains details about each build step within a build stage.
	Steps []StepInfo
}

// StageName is the identifier for each build stage.
type StageName string

// Valid StageNames
const (
	// StagePreflight validates the build context against the recipe.
	StagePreflight StageName = "Preflight"

	// StageBuild builds the image.
	StageBuild StageName = "Build"

	// StageVerify checks the built image against the recipe.
	StageVerify StageName = "Verify"
)

// StepInfo contains details about a build step.
type StepInfo struct {
	// Name is the identifier for each build step.
	Name StepName

	// StartTime identifies when this step started.
	StartTime time.Time

	// DurationMilliseconds identifies how long this step ran.
	DurationMilliseconds int64
}

// StepName is the identifier for each build step.
type StepName string

// Valid StepNames
const (
	// CheckContextStep checks every recipe path exists in the build context.
	CheckContextStep StepName = "CheckContext"

	// InspectBaseImageStep inspects the base image in its registry.
	InspectBaseImageStep StepName = "InspectBaseImage"

	// RenderDockerfileStep renders the recipe into a Dockerfile.
	RenderDockerfileStep StepName = "RenderDockerfile"

	// ArchiveContextStep produces the tar stream sent to the daemon.
	ArchiveContextStep StepName = "ArchiveContext"

	// BuildImageStep runs the image build.
	BuildImageStep StepName = "BuildImage"

	// InspectImageStep inspects the produced image.
	InspectImageStep StepName = "InspectImage"
)

// StepFailureReason holds the type of failure that occurred during the build
// process.
type StepFailureReason string

// StepFailureMessage holds the detailed message of a failure.
type StepFailureMessage string

// FailureReason holds the type of failure that occurred during the build
// process.
type FailureReason struct {
	Reason  StepFailureReason
	Message StepFailureMessage
}

// ContainerConfig is the subset of the image configuration py2i inspects,
// independent of the container engine client in use.
type ContainerConfig struct {
	Labels     map[string]string
	Env        []string
	Cmd        []string
	Entrypoint []string
	WorkingDir string
	User       string
}

// Image is the engine independent view of an inspected image.
type Image struct {
	ID      string
	Created time.Time
	Size    int64
	Config  *ContainerConfig
}

// PullPolicy specifies a type for the method used to retrieve the base image
type PullPolicy string

// String implements the String() function of pflags.Value so this can be used
// as command line parameter.
// This method is really used just to show the default value when printing
// help. It will not default the configuration.
func (p *PullPolicy) String() string {
	if len(string(*p)) == 0 {
		return string(DefaultPullPolicy)
	}
	return string(*p)
}

// Type implements the Type() function of pflags.Value interface
func (p *PullPolicy) Type() string {
	return "string"
}

// Set implements the Set() function of pflags.Value interface
// The valid options are "always", "never" or "if-not-present"
func (p *PullPolicy) Set(v string) error {
	switch v {
	case "always":
		*p = PullAlways
	case "never":
		*p = PullNever
	case "if-not-present":
		*p = PullIfNotPresent
	default:
		return fmt.Errorf("invalid value %q, valid values are: always, never or if-not-present", v)
	}
	return nil
}

// IsInvalidPullPolicy checks if the provided string is a valid pull policy.
func IsInvalidPullPolicy(p PullPolicy) bool {
	switch p {
	case PullAlways, PullNever, PullIfNotPresent:
		return false
	}
	return true
}

const (
	// PullAlways means that we always attempt to pull the latest image.
	PullAlways PullPolicy = "always"

	// PullNever means that we never pull an image, but only use a local image.
	PullNever PullPolicy = "never"

	// PullIfNotPresent means that we pull if the image isn't present on disk.
	PullIfNotPresent PullPolicy = "if-not-present"

	// DefaultPullPolicy specifies the default pull policy to use
	DefaultPullPolicy = PullIfNotPresent
)

// EnvironmentSpec specifies a single environment variable.
type EnvironmentSpec struct {
	Name  string
	Value string
}

// EnvironmentList contains list of environment variables.
type EnvironmentList []EnvironmentSpec

// Set implements the Set() function of pflags.Value interface.
// This function parses a single NAME=VALUE pair.
func (e *EnvironmentList) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || len(parts[0]) == 0 {
		return fmt.Errorf("invalid environment format %q, must be NAME=VALUE", value)
	}
	if strings.Contains(parts[1], ",") && strings.Contains(parts[1], "=") {
		return fmt.Errorf("multiple variables must be specified as separate flags, got %q", value)
	}
	*e = append(*e, EnvironmentSpec{
		Name:  strings.TrimSpace(parts[0]),
		Value: strings.TrimSpace(parts[1]),
	})
	return nil
}

// String returns the string representation of the environment list.
func (e *EnvironmentList) String() string {
	result := []string{}
	for _, i := range *e {
		result = append(result, strings.Join([]string{i.Name, i.Value}, "="))
	}
	return strings.Join(result, ",")
}

// Type returns the type of the environment list.
func (e *EnvironmentList) Type() string {
	return "string"
}

// AsBuildArgs returns the list as the map expected by the image builders.
func (e EnvironmentList) AsBuildArgs() map[string]*string {
	if len(e) == 0 {
		return nil
	}
	args := make(map[string]*string, len(e))
	for i := range e {
		value := e[i].Value
		args[e[i].Name] = &value
	}
	return args
}

// AsStrings returns the list as NAME=VALUE strings.
func (e EnvironmentList) AsStrings() []string {
	out := make([]string, 0, len(e))
	for _, i := range e {
		out = append(out, i.Name+"="+i.Value)
	}
	return out
}

// ResolvedBuilder returns the configured builder, defaulting to the engine
// builder.
func (c *Config) ResolvedBuilder() string {
	if len(c.Builder) == 0 {
		return constants.EngineBuilder
	}
	return c.Builder
}
