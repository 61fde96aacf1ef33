package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/api/validation"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/buildcontext"
	cmdutil "github.com/openshift/py2i/pkg/cmd"
	s2ierr "github.com/openshift/py2i/pkg/errors"
)

// NewCmdExport implements the py2i cli export command.
func NewCmdExport(cfg *api.Config, out io.Writer) *cobra.Command {
	compress := false
	exportCmd := &cobra.Command{
		Use:   "export <context> <output file>",
		Short: "Export the build context archive sent to the daemon",
		Long: "Write the tar archive py2i would send to the Docker daemon: the paths the recipe " +
			"copies, without the .dockerignore exclusions, and the rendered Dockerfile as " +
			constants.GeneratedDockerfile + ". Use \"-\" to write to standard output.",
		Example: `
# Build the exported context with the docker CLI:
$ py2i export . - | docker build -f Dockerfile.py2i -t myapp -
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return cmd.Help()
			}
			cfg.ContextDir = args[0]
			if errs := validation.ValidateContext(cfg); len(errs) > 0 {
				return validation.NewValidationError(errs)
			}

			result := &api.Result{}
			r, err := build.Preflight(cmd.Context(), cfg, nil, result)
			if err != nil {
				return err
			}

			var w io.Writer = out
			if args[1] != "-" {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := buildcontext.Export(cfg.ContextDir, r, constants.GeneratedDockerfile, w, compress)
			if err != nil {
				return s2ierr.NewBuildContextError(cfg.ContextDir, err)
			}
			if args[1] != "-" {
				fmt.Fprintf(out, "Exported %s of build context to %s\n", units.HumanSize(float64(n)), args[1])
			}
			return nil
		},
	}
	cmdutil.AddRecipeFlags(exportCmd, cfg)
	exportCmd.Flags().BoolVarP(&compress, "compress", "z", false, "Compress the archive with xz")
	return exportCmd
}
