package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/api/validation"
	"github.com/openshift/py2i/pkg/build/strategies"
	cmdutil "github.com/openshift/py2i/pkg/cmd"
	"github.com/openshift/py2i/pkg/cmd/cli/cmd"
	"github.com/openshift/py2i/pkg/config"
	"github.com/openshift/py2i/pkg/create"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	"github.com/openshift/py2i/pkg/metrics"
	"github.com/openshift/py2i/pkg/remote"
	"github.com/openshift/py2i/pkg/run"
	"github.com/openshift/py2i/pkg/util"
	"github.com/openshift/py2i/pkg/util/interrupt"
	utillog "github.com/openshift/py2i/pkg/util/log"
	"github.com/openshift/py2i/pkg/version"
)

var log = utillog.StderrLog

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version",
		Long:  "Display version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("py2i %v\n", version.Get())
		},
	}
}

func newCmdBuild(cfg *api.Config) *cobra.Command {
	useConfig := false

	buildCmd := &cobra.Command{
		Use:   "build <context> <tag>",
		Short: "Build a new image",
		Long: "Build a Python 3 application image named <tag> from a build context holding " +
			"requirements.txt, the server package, config/__init__.py and start.py.",
		Example: `
# Build the application in the current directory
$ py2i build . myapp

# Build with podman and run the result
$ py2i build --builder podman --run . myapp
`,
		RunE: func(c *cobra.Command, args []string) error {
			log.V(1).Infof("Running py2i version %q", version.Get())

			// Attempt to restore the build command from the configuration file
			if useConfig {
				config.Restore(cfg, c)
			}

			// If user specifies the arguments, then we override the stored ones
			if len(args) >= 2 {
				cfg.ContextDir = args[0]
				cfg.Tag = args[1]
			}
			if len(cfg.PullPolicy) == 0 {
				cfg.PullPolicy = api.DefaultPullPolicy
			}
			if err := util.MergeEnvironmentFile(cfg); err != nil {
				log.Warningf("Unable to read build argument file %q: %v", cfg.EnvironmentFile, err)
			}

			if errs := validation.ValidateConfig(cfg); len(errs) > 0 {
				c.Usage()
				return validation.NewValidationError(errs)
			}

			// Persists the current command line options and config into .py2ifile
			if useConfig {
				config.Save(cfg, c)
			}

			log.V(2).Infof("\n%s\n", cfg.PrintObj())

			ctx, stop := interrupt.Context(c.Context())
			defer stop()

			var client docker.Docker
			if cfg.ResolvedBuilder() == constants.EngineBuilder || cfg.RunImage {
				var err error
				client, err = cmdutil.NewDocker(ctx, cfg)
				if err != nil {
					return err
				}
			}

			builder, err := strategies.GetStrategy(cfg, client, remote.New())
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := builder.Build(ctx, cfg)
			if len(cfg.MetricsFile) > 0 {
				writeMetrics(cfg, result, time.Since(start))
			}
			if result != nil {
				for _, message := range result.Messages {
					log.V(1).Infof(message)
				}
			}
			if err != nil {
				return err
			}

			if cfg.RunImage {
				return run.New(client).Run(ctx, cfg)
			}
			return nil
		},
	}

	cmdutil.AddCommonFlags(buildCmd, cfg)
	cmdutil.AddRecipeFlags(buildCmd, cfg)

	buildCmd.Flags().BoolVar(&(cfg.RunImage), "run", false, "Run resulting image as part of invocation of this command")
	buildCmd.Flags().VarP(&(cfg.Environment), "env", "e", "Specify a single build argument in NAME=VALUE format")
	buildCmd.Flags().StringVarP(&(cfg.EnvironmentFile), "environment-file", "E", "", "Specify the path to the file with build arguments")
	buildCmd.Flags().BoolVar(&(useConfig), "use-config", false, "Store command line options to "+constants.ConfigFile)
	buildCmd.Flags().StringVarP(&(cfg.DisplayName), "application-name", "n", "", "Specify the display name for the application (default: output image name)")
	buildCmd.Flags().StringVar(&(cfg.Description), "description", "", "Specify the description of the application")
	buildCmd.Flags().StringToStringVar(&(cfg.Labels), "label", nil, "Specify additional labels in NAME=VALUE format to apply to the resulting image")
	buildCmd.Flags().BoolVar(&(cfg.UseCache), "use-cache", false, "Reuse cached layers, the dependencies are reinstalled on every build otherwise")
	buildCmd.Flags().StringVar(&(cfg.AsDockerfile), "as-dockerfile", "", "Also write the rendered Dockerfile to this path")
	buildCmd.Flags().BoolVar(&(cfg.SkipVerify), "skip-verify", false, "Do not check the built image against the recipe")
	buildCmd.Flags().BoolVar(&(cfg.RemoteBaseCheck), "remote-check", false, "Check the base image provides Python 3 by inspecting it in its registry")
	buildCmd.Flags().StringVar(&(cfg.MetricsFile), "metrics-file", "", "Write build metrics in the Prometheus text format to this file")
	buildCmd.Flags().DurationVar(&(cfg.BuildTimeout), "build-timeout", 0, "Abort the build after this duration, zero means no timeout")
	buildCmd.Flags().StringVar(&(cfg.Builder), "builder", constants.EngineBuilder,
		fmt.Sprintf("Specify how the image is built, one of %q or an external tool %q", constants.EngineBuilder, []string{constants.DockerBuilder, constants.PodmanBuilder, constants.BuildahBuilder}))
	buildCmd.Flags().StringVar(&(cfg.Command), "command", "", "Override the default command when the image is run with --run")

	return buildCmd
}

func newCmdRun(cfg *api.Config) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <tag>",
		Short: "Run a built image",
		Long: "Start a container from an image built by py2i, streaming its output into the log. " +
			"The command exits with the exit code of the container.",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg.Tag = args[0]

			ctx, stop := interrupt.Context(c.Context())
			defer stop()

			client, err := cmdutil.NewDocker(ctx, cfg)
			if err != nil {
				return err
			}
			return run.New(client).Run(ctx, cfg)
		},
	}
	runCmd.Flags().StringVar(&(cfg.Command), "command", "", "Override the default command of the image")
	runCmd.Flags().Var(cmdutil.NewMemoryValue(&cfg.MemoryLimit), "memory-limit", "Limit the memory of the container, e.g. 512m")
	return runCmd
}

func newCmdCreate() *cobra.Command {
	port := create.DefaultPort
	createCmd := &cobra.Command{
		Use:   "create <name> <destination>",
		Short: "Bootstrap a new Python application",
		Long: "Bootstrap a new application named <name> inside the destination directory, laid out " +
			"the way the build expects it. Existing files are kept.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := create.New(args[0], args[1])
			b.Port = port
			for _, add := range []func() error{b.AddManifest, b.AddApplication, b.AddDockerIgnore} {
				if err := add(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	createCmd.Flags().IntVar(&port, "port", port, "Specify the default port of the generated server")
	return createCmd
}

func newCmdGenBashCompletion(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "genbashcompletion",
		Short: "Generate Bash completion for the py2i command",
		Long:  "Generate Bash completion for the py2i command into standard output",
		Run: func(cmd *cobra.Command, args []string) {
			root.GenBashCompletion(os.Stdout)
		},
	}
}

func writeMetrics(cfg *api.Config, result *api.Result, duration time.Duration) {
	if result == nil {
		result = &api.Result{}
	}
	recorder := metrics.New()
	recorder.ObserveBuild(cfg.ResolvedBuilder(), result, duration)
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warningf("Unable to write metrics to %q: %v", cfg.MetricsFile, err)
	}
}

// setupLog makes --loglevel reflect in klog's -v flag
func setupLog(flags *pflag.FlagSet) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	level := &logLevel{fs: fs}
	flags.Var(level, "loglevel", "Set the level of log output (0-5)")
	fs.Set("logtostderr", "true")
}

type logLevel struct {
	fs    *flag.FlagSet
	value int
}

func (l *logLevel) String() string { return strconv.Itoa(l.value) }

func (l *logLevel) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid log level %q", v)
	}
	l.value = n
	return l.fs.Set("v", v)
}

func (l *logLevel) Type() string { return "int" }

// exitCode reports err and returns the process exit code: the exit code of
// the container for a failed run, the error code of a py2i error, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce s2ierr.ContainerError
	if errors.As(err, &ce) {
		log.V(1).Infof("%s (exit code %d)", ce.Message, ce.ExitCode)
		return ce.ExitCode
	}
	var e s2ierr.Error
	if errors.As(err, &e) {
		log.Errorf("An error occurred: %v", e)
		if len(e.Suggestion) > 0 {
			log.Errorf("Suggested solution: %v", e.Suggestion)
		}
		if e.Details != nil {
			log.V(1).Infof("Details: %v", e.Details)
		}
		log.Error("If the problem persists run the build again with --loglevel=3 and attach the log to a bug report")
		return e.ErrorCode
	}
	log.Errorf("An error occurred: %v", err)
	return 1
}

func newCmdRoot(cfg *api.Config) *cobra.Command {
	py2iCmd := &cobra.Command{
		Use: "py2i",
		Long: "py2i builds repeatable container images for Python 3 web applications.\n\n" +
			"It installs the dependencies listed in requirements.txt into a python:3 image, copies the\n" +
			"application on top and starts it with python3 ./start.py.",
		SilenceErrors: true,
		// Usage is only printed for command line mistakes, not failed builds.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cfg.DockerConfig = docker.GetDefaultDockerConfig()
	py2iCmd.PersistentFlags().StringVarP(&(cfg.DockerConfig.Endpoint), "url", "U", cfg.DockerConfig.Endpoint, "Set the url of the docker socket to use")
	py2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.CertFile), "cert", cfg.DockerConfig.CertFile, "Set the path of the docker TLS certificate file")
	py2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.KeyFile), "key", cfg.DockerConfig.KeyFile, "Set the path of the docker TLS key file")
	py2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.CAFile), "ca", cfg.DockerConfig.CAFile, "Set the path of the docker TLS ca file")
	py2iCmd.PersistentFlags().BoolVar(&(cfg.DockerConfig.UseTLS), "tls", cfg.DockerConfig.UseTLS, "Use TLS to connect to docker; implied by --tlsverify")
	py2iCmd.PersistentFlags().BoolVar(&(cfg.DockerConfig.TLSVerify), "tlsverify", cfg.DockerConfig.TLSVerify, "Use TLS to connect to docker and verify the remote")
	setupLog(py2iCmd.PersistentFlags())

	inspector := remote.New()
	py2iCmd.AddCommand(newCmdVersion())
	py2iCmd.AddCommand(newCmdBuild(cfg))
	py2iCmd.AddCommand(newCmdRun(cfg))
	py2iCmd.AddCommand(newCmdCreate())
	py2iCmd.AddCommand(cmd.NewCmdGenerate(cfg, inspector))
	py2iCmd.AddCommand(cmd.NewCmdCheck(cfg, inspector, os.Stdout))
	py2iCmd.AddCommand(cmd.NewCmdVerify(cfg, os.Stdout))
	py2iCmd.AddCommand(cmd.NewCmdInspect(cfg, cmdutil.NewDocker, os.Stdout))
	py2iCmd.AddCommand(cmd.NewCmdExport(cfg, os.Stdout))
	py2iCmd.AddCommand(newCmdGenBashCompletion(py2iCmd))
	return py2iCmd
}

func main() {
	err := newCmdRoot(&api.Config{}).Execute()
	os.Exit(exitCode(err))
}
