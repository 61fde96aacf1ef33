package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
)

// DockerFactory connects to the configured Docker daemon.
type DockerFactory func(ctx context.Context, cfg *api.Config) (docker.Docker, error)

// NewCmdInspect implements the py2i cli inspect command.
func NewCmdInspect(cfg *api.Config, newDocker DockerFactory, out io.Writer) *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect <tag>",
		Short: "Show the launch contract of a built image",
		Long: "Inspect an image in the local Docker daemon, show its default command, working " +
			"directory and py2i labels, and check them against the recipe it was built from.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Help()
			}
			cfg.Tag = args[0]
			client, err := newDocker(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			name := docker.GetImageName(cfg.Tag)
			image, err := client.InspectImage(cmd.Context(), name)
			if err != nil {
				return s2ierr.NewInspectImageError(name, err)
			}
			if err := describeImage(out, name, image); err != nil {
				return err
			}
			if len(cfg.ContextDir) == 0 {
				return nil
			}

			r, err := build.LoadRecipe(cfg)
			if err != nil {
				return err
			}
			if problems := build.VerifyImage(r, image); len(problems) > 0 {
				return s2ierr.NewImageVerifyError(name, problems)
			}
			fmt.Fprintf(out, "%s follows the recipe of %s\n", name, cfg.ContextDir)
			return nil
		},
	}
	inspectCmd.Flags().StringVar(&(cfg.ContextDir), "context", "",
		"Check the image against the recipe of this build context")
	inspectCmd.Flags().StringVar(&(cfg.Maintainer), "maintainer", "",
		"Specify the expected maintainer label")
	return inspectCmd
}

func describeImage(out io.Writer, name string, image *api.Image) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintf(w, "Image:\t%s\n", name)
	fmt.Fprintf(w, "ID:\t%s\n", image.ID)
	if !image.Created.IsZero() {
		fmt.Fprintf(w, "Created:\t%s\n", image.Created.Format("2006-01-02 15:04:05"))
	}
	if image.Size > 0 {
		fmt.Fprintf(w, "Size:\t%s\n", units.HumanSize(float64(image.Size)))
	}
	if config := image.Config; config != nil {
		fmt.Fprintf(w, "Command:\t%q\n", config.Cmd)
		if len(config.Entrypoint) > 0 {
			fmt.Fprintf(w, "Entrypoint:\t%q\n", config.Entrypoint)
		}
		fmt.Fprintf(w, "Working Directory:\t%s\n", config.WorkingDir)
		keys := make([]string, 0, len(config.Labels))
		for k := range config.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == constants.MaintainerLabel || strings.HasPrefix(k, constants.DefaultNamespace) {
				fmt.Fprintf(w, "Label:\t%s=%s\n", k, config.Labels[k])
			}
		}
	}
	return w.Flush()
}
