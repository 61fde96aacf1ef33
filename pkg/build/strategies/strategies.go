package strategies

import (
	"fmt"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/build"
	"github.com/openshift/py2i/pkg/build/strategies/engine"
	"github.com/openshift/py2i/pkg/build/strategies/external"
	"github.com/openshift/py2i/pkg/docker"
	"github.com/openshift/py2i/pkg/remote"
)

// GetStrategy decides what build strategy will be used for the py2i build.
// The engine strategy talks to the daemon through client, the external
// strategies shell out and never use it.
func GetStrategy(config *api.Config, client docker.Docker, inspector remote.Inspector) (build.Builder, error) {
	builder := config.ResolvedBuilder()
	switch {
	case builder == constants.EngineBuilder:
		if client == nil {
			return nil, fmt.Errorf("the %s builder needs a Docker client", builder)
		}
		return engine.New(client, inspector), nil
	case external.ValidBuilderName(builder):
		return external.New(config, inspector), nil
	}
	return nil, fmt.Errorf("unknown builder %q, valid builders are %s and %v", builder, constants.EngineBuilder, external.GetBuilders())
}
