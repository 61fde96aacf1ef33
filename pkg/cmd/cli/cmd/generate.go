package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/validation"
	"github.com/openshift/py2i/pkg/build"
	cmdutil "github.com/openshift/py2i/pkg/cmd"
	"github.com/openshift/py2i/pkg/docker"
	"github.com/openshift/py2i/pkg/remote"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// adjustConfigWithImageInfo checks the base image in its registry when
// requested, the Dockerfile is only written for a Python 3 base.
func adjustConfigWithImageInfo(ctx context.Context, cfg *api.Config, inspector remote.Inspector, baseImage string) error {
	if !cfg.RemoteBaseCheck {
		return nil
	}
	info, err := inspector.InspectBaseImage(ctx, baseImage, cfg.PullAuthentication)
	if err != nil {
		return err
	}
	return remote.CheckPython3(info)
}

// NewCmdGenerate implements the py2i cli generate command.
func NewCmdGenerate(cfg *api.Config, inspector remote.Inspector) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate <context> <output file>",
		Short: "Generate the Dockerfile of a build context without building it.",
		Long: "Render the recipe of the build context into a Dockerfile that can be used to " +
			"produce the image by any tool supporting the format.",
		Example: `
# Generate the Dockerfile of the application in the current directory:
$ py2i generate . Dockerfile.gen
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return cmd.Help()
			}
			cfg.ContextDir = args[0]
			if errs := validation.ValidateContext(cfg); len(errs) > 0 {
				return validation.NewValidationError(errs)
			}

			r, err := build.LoadRecipe(cfg)
			if err != nil {
				return err
			}
			cmdutil.LoadPullAuthentication(cfg, r.BaseImage)
			if err := adjustConfigWithImageInfo(cmd.Context(), cfg, inspector, r.BaseImage); err != nil {
				return err
			}

			_, err = build.GenerateDockerfile(cfg, args[1])
			return err
		},
	}

	cmdutil.AddRecipeFlags(generateCmd, cfg)
	generateCmd.Flags().BoolVar(&(cfg.RemoteBaseCheck), "remote-check", false,
		"Check the base image provides Python 3 by inspecting it in its registry")
	generateCmd.Flags().StringVar(&(cfg.DockerCfgPath), "dockercfg-path", docker.DefaultDockerCfgPath(),
		"Specify the path to the Docker configuration file")
	return generateCmd
}
