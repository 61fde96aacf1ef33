package build

import (
	"context"

	"github.com/openshift/py2i/pkg/api"
)

// Builder is the interface that provides basic methods all implementation
// should have.
// Build method executes the build based on Config and returns the Result.
type Builder interface {
	Build(ctx context.Context, config *api.Config) (*api.Result, error)
}

// ImageInspector provides the image configuration a built image is verified
// against.
type ImageInspector interface {
	InspectImage(ctx context.Context, name string) (*api.Image, error)
}
