package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/validation"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/buildcontext"
	cmdutil "github.com/openshift/py2i/pkg/cmd"
	"github.com/openshift/py2i/pkg/docker"
	"github.com/openshift/py2i/pkg/remote"
)

// NewCmdCheck implements the py2i cli check command.
func NewCmdCheck(cfg *api.Config, inspector remote.Inspector, out io.Writer) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check <context>",
		Short: "Check a build context provides everything its recipe copies",
		Long: "Run the preflight checks of a build without contacting the Docker daemon: every " +
			"path the recipe copies must exist and the requirements manifest must be installable " +
			"from the manifest alone.",
		Example: `
# Check the application in the current directory:
$ py2i check .
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Help()
			}
			cfg.ContextDir = args[0]
			if errs := validation.ValidateContext(cfg); len(errs) > 0 {
				return validation.NewValidationError(errs)
			}
			if cfg.RemoteBaseCheck {
				r, err := build.LoadRecipe(cfg)
				if err != nil {
					return err
				}
				cmdutil.LoadPullAuthentication(cfg, r.BaseImage)
			}

			result := &api.Result{}
			r, err := build.Preflight(cmd.Context(), cfg, inspector, result)
			for _, message := range result.Messages {
				fmt.Fprintf(out, "MISSING %s\n", message)
			}
			if err != nil {
				return err
			}

			for _, step := range r.Steps() {
				fmt.Fprintf(out, "%d/%d %s\n", step.Index, len(r.Steps()), step)
			}
			if reqs, err := buildcontext.ReadRequirements(cfg.ContextDir, r); err == nil {
				log.V(1).Infof("%s lists %s", r.Manifest, strings.Join(reqs.Names(), ", "))
			}
			fmt.Fprintf(out, "Build context %s satisfies the recipe\n", cfg.ContextDir)
			return nil
		},
	}
	cmdutil.AddRecipeFlags(checkCmd, cfg)
	checkCmd.Flags().BoolVar(&(cfg.RemoteBaseCheck), "remote-check", false,
		"Check the base image provides Python 3 by inspecting it in its registry")
	checkCmd.Flags().StringVar(&(cfg.DockerCfgPath), "dockercfg-path", docker.DefaultDockerCfgPath(),
		"Specify the path to the Docker configuration file")
	return checkCmd
}
