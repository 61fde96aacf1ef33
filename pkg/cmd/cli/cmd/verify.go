package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/build"
	cmdutil "github.com/openshift/py2i/pkg/cmd"
	s2ierr "github.com/openshift/py2i/pkg/errors"
)

// NewCmdVerify implements the py2i cli verify command.
func NewCmdVerify(cfg *api.Config, out io.Writer) *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify <dockerfile>",
		Short: "Verify a Dockerfile follows the recipe",
		Long: "Parse a Dockerfile and report every place it departs from the build and launch " +
			"contract of the recipe: step order, working directory, dependency install, copied " +
			"paths and default command.",
		Example: `
# Verify a hand written Dockerfile against the recipe of the current directory:
$ py2i verify Dockerfile
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Help()
			}
			r, err := build.LoadRecipe(cfg)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			problems, err := r.Verify(f)
			if err != nil {
				return s2ierr.NewDockerfileCreateError(args[0], err)
			}
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			if len(problems) > 0 {
				return s2ierr.NewImageVerifyError(args[0], problems)
			}
			fmt.Fprintf(out, "%s follows the recipe\n", args[0])
			return nil
		},
	}
	cmdutil.AddRecipeFlags(verifyCmd, cfg)
	verifyCmd.Flags().StringVar(&(cfg.ContextDir), "context", ".",
		"Specify the build context holding the recipe file")
	return verifyCmd
}
