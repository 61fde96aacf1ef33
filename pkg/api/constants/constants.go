package constants

const (
	// DefaultBaseImage is the Python 3 runtime the recipe starts from. The
	// minor version is intentionally left unpinned.
	DefaultBaseImage = "python:3"

	// DefaultWorkDir is the working directory established before any copy or
	// install step and where the default command executes.
	DefaultWorkDir = "/application"

	// RequirementsFile is the dependency manifest at the build context root.
	RequirementsFile = "requirements.txt"

	// ServerDir is the application package tree copied into the image.
	ServerDir = "server/"

	// ConfigPackage makes config an importable package inside the image.
	ConfigPackage = "config/__init__.py"

	// EntryPoint is the script the default command runs.
	EntryPoint = "start.py"

	// PythonInterpreter is the interpreter invoked by the default command.
	PythonInterpreter = "python3"

	// MaintainerLabel is the image label carrying the maintainer contact.
	MaintainerLabel = "maintainer"

	// DefaultMaintainer is the contact stored in the maintainer label unless
	// the recipe file or --maintainer names another one.
	DefaultMaintainer = "Application Maintainers <maintainers@localhost>"
)

const (
	// DefaultNamespace is the default namespace prefix used for the labels
	DefaultNamespace = "io.py2i."

	// KubernetesDescriptionLabel is a label used to describe the image
	KubernetesDescriptionLabel = "io.k8s.description"

	// KubernetesDisplayNameLabel is a label used to provide a human readable
	// name of the image
	KubernetesDisplayNameLabel = "io.k8s.display-name"

	// ContextDigestLabel records the digest of the files copied from the
	// build context.
	ContextDigestLabel = DefaultNamespace + "build.context-digest"

	// RecipeLabel records the recipe digest the image was built from.
	RecipeLabel = DefaultNamespace + "build.recipe"
)

const (
	// IgnoreFile is the file listing build context paths the daemon never sees.
	IgnoreFile = ".dockerignore"

	// RecipeFile is the optional recipe file in the build context.
	RecipeFile = "py2i.yaml"

	// ConfigFile stores the command line options for --use-config.
	ConfigFile = ".py2ifile"

	// SourceConfig is the directory holding per-application py2i settings.
	SourceConfig = ".py2i"

	// GeneratedDockerfile is the name of the rendered Dockerfile inside the
	// build context archive.
	GeneratedDockerfile = "Dockerfile.py2i"
)

const (
	// EngineBuilder builds through the Docker Engine API.
	EngineBuilder = "engine"

	// DockerBuilder shells out to the docker CLI.
	DockerBuilder = "docker"

	// PodmanBuilder shells out to the podman CLI.
	PodmanBuilder = "podman"

	// BuildahBuilder shells out to the buildah CLI.
	BuildahBuilder = "buildah"
)
