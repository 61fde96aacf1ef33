package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/docker"
	s2ierr "github.com/openshift/py2i/pkg/errors"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// AddCommonFlags adds the common flags for the build and run commands
func AddCommonFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().BoolVarP(&(cfg.Quiet), "quiet", "q", false,
		"Operate quietly. Suppress all non-error output.")
	c.Flags().VarP(&(cfg.PullPolicy), "pull-policy", "p",
		"Specify when to pull the base image (always, never or if-not-present)")
	c.Flags().StringVarP(&(cfg.DockerCfgPath), "dockercfg-path", "", docker.DefaultDockerCfgPath(),
		"Specify the path to the Docker configuration file")
	c.Flags().Var(NewMemoryValue(&(cfg.MemoryLimit)), "memory-limit",
		"Specify the memory limit of the build and run containers, for example 512m or 2g")
}

// AddRecipeFlags adds the flags overriding the recipe of the build context.
func AddRecipeFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().StringVarP(&(cfg.RecipeFile), "recipe", "f", "",
		fmt.Sprintf("Specify the recipe file (default: %s in the build context when present)", constants.RecipeFile))
	c.Flags().StringVar(&(cfg.BaseImage), "base-image", "",
		fmt.Sprintf("Override the Python 3 base image (default: %s)", constants.DefaultBaseImage))
	c.Flags().StringVar(&(cfg.Maintainer), "maintainer", "",
		"Specify the contact stored in the maintainer label")
}

// MemoryValue is a pflag.Value holding a size in bytes, parsed the way the
// docker CLI parses memory limits.
type MemoryValue struct {
	bytes *int64
}

// NewMemoryValue returns a flag value writing into bytes.
func NewMemoryValue(bytes *int64) *MemoryValue {
	return &MemoryValue{bytes: bytes}
}

// String implements the String() function of pflags.Value.
func (m *MemoryValue) String() string {
	if m.bytes == nil || *m.bytes == 0 {
		return ""
	}
	return units.BytesSize(float64(*m.bytes))
}

// Set implements the Set() function of pflags.Value. Plain numbers are bytes.
func (m *MemoryValue) Set(v string) error {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*m.bytes = n
		return nil
	}
	n, err := units.RAMInBytes(v)
	if err != nil {
		return err
	}
	*m.bytes = n
	return nil
}

// Type implements the Type() function of pflags.Value.
func (m *MemoryValue) Type() string {
	return "bytes"
}

// LoadPullAuthentication reads the Docker configuration file and extracts
// the credentials of the registry hosting image.
func LoadPullAuthentication(cfg *api.Config, image string) {
	r, err := os.Open(cfg.DockerCfgPath)
	if err != nil {
		log.V(3).Infof("No Docker configuration file at %q: %v", cfg.DockerCfgPath, err)
		return
	}
	defer r.Close()
	auths := docker.LoadImageRegistryAuth(r)
	cfg.PullAuthentication = docker.GetImageRegistryAuth(auths, image)
}

// NewDocker connects to the configured daemon and checks it is reachable.
func NewDocker(ctx context.Context, cfg *api.Config) (docker.Docker, error) {
	client, err := docker.NewFromConfig(cfg)
	if err != nil {
		return nil, s2ierr.NewDockerConnectionError(cfg.DockerConfig.Endpoint, err)
	}
	if err := client.CheckReachable(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
