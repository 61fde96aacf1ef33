// Package util holds helpers shared by the py2i commands: build argument
// files, output image labels and log redaction.
package util

import (
	"fmt"

	"github.com/openshift/py2i/pkg/api"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// SafeForLoggingContainerConfig returns a string version of the image
// configuration with sensitive information (proxy environment variables
// containing credentials, secret looking values) redacted.
func SafeForLoggingContainerConfig(config *api.ContainerConfig) string {
	if config == nil {
		return "<nil>"
	}
	newConfig := *config
	newConfig.Env = SafeForLoggingEnv(config.Env)
	return fmt.Sprintf("%+v", newConfig)
}
