package status

import (
	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/errors"
)

const (
	// ReasonRecipeInvalid is the reason associated with a recipe that fails
	// validation.
	ReasonRecipeInvalid        api.StepFailureReason  = "RecipeInvalid"
	ReasonMessageRecipeInvalid api.StepFailureMessage = "The recipe is invalid"

	// ReasonContextCheckFailed is the reason associated with a build context
	// lacking a path the recipe copies.
	ReasonContextCheckFailed        api.StepFailureReason  = "ContextCheckFailed"
	ReasonMessageContextCheckFailed api.StepFailureMessage = "The build context does not provide every path the recipe copies"

	// ReasonRemoteInspectFailed is the reason associated with failing to
	// inspect the base image in its registry.
	ReasonRemoteInspectFailed        api.StepFailureReason  = "RemoteInspectFailed"
	ReasonMessageRemoteInspectFailed api.StepFailureMessage = "Failed to inspect the base image in its registry"

	// ReasonPullBaseImageFailed is the reason associated with failing to pull
	// the base image.
	ReasonPullBaseImageFailed        api.StepFailureReason  = "PullBaseImageFailed"
	ReasonMessagePullBaseImageFailed api.StepFailureMessage = "Failed to pull base image"

	// ReasonDockerfileCreateFailed is the reason associated with failing to create a
	// Dockerfile for a build.
	ReasonDockerfileCreateFailed        api.StepFailureReason  = "DockerFileCreationFailed"
	ReasonMessageDockerfileCreateFailed api.StepFailureMessage = "Failed to create Dockerfile"

	// ReasonTarSourceFailed is the failure reason associated with a failure to
	// tar the build context.
	ReasonTarSourceFailed        api.StepFailureReason  = "TarSourceFailed"
	ReasonMessageTarSourceFailed api.StepFailureMessage = "Failed to tar source files"

	// ReasonDockerImageBuildFailed is the reasons associated with a failed
	// Docker image build.
	ReasonDockerImageBuildFailed        api.StepFailureReason  = "DockerImageBuildFailed"
	ReasonMessageDockerImageBuildFailed api.StepFailureMessage = "Docker image build failed"

	// ReasonExternalBuildFailed is the reason associated with a failing
	// external builder command.
	ReasonExternalBuildFailed        api.StepFailureReason  = "ExternalBuildFailed"
	ReasonMessageExternalBuildFailed api.StepFailureMessage = "External builder command failed"

	// ReasonImageVerifyFailed is the reason associated with a built image that
	// does not match the recipe.
	ReasonImageVerifyFailed        api.StepFailureReason  = "ImageVerifyFailed"
	ReasonMessageImageVerifyFailed api.StepFailureMessage = "Built image does not match the recipe"

	// ReasonGenericPy2iBuildFailed is the reason associated with a broad range of
	// failure.
	ReasonGenericPy2iBuildFailed        api.StepFailureReason  = "GenericPy2iBuildFailed"
	ReasonMessageGenericPy2iBuildFailed api.StepFailureMessage = "Generic py2i build failure - check py2i logs for details"
)

// NewFailureReason initializes a new failure reason that contains both the
// reason and a message to be displayed
func NewFailureReason(reason api.StepFailureReason, message api.StepFailureMessage) api.FailureReason {
	return api.FailureReason{
		Reason:  reason,
		Message: message,
	}
}

// ReasonForError maps a py2i error to the failure reason recorded on the
// build result.
func ReasonForError(err error) api.FailureReason {
	e, ok := err.(errors.Error)
	if !ok {
		return NewFailureReason(ReasonGenericPy2iBuildFailed, ReasonMessageGenericPy2iBuildFailed)
	}
	switch e.ErrorCode {
	case errors.RecipeError:
		return NewFailureReason(ReasonRecipeInvalid, ReasonMessageRecipeInvalid)
	case errors.BuildContextError:
		return NewFailureReason(ReasonContextCheckFailed, ReasonMessageContextCheckFailed)
	case errors.RemoteInspectError:
		return NewFailureReason(ReasonRemoteInspectFailed, ReasonMessageRemoteInspectFailed)
	case errors.PullImageError, errors.InspectImageError:
		return NewFailureReason(ReasonPullBaseImageFailed, ReasonMessagePullBaseImageFailed)
	case errors.DockerfileCreateError:
		return NewFailureReason(ReasonDockerfileCreateFailed, ReasonMessageDockerfileCreateFailed)
	case errors.BuildError:
		return NewFailureReason(ReasonDockerImageBuildFailed, ReasonMessageDockerImageBuildFailed)
	case errors.ExternalCommandError:
		return NewFailureReason(ReasonExternalBuildFailed, ReasonMessageExternalBuildFailed)
	case errors.ImageVerifyError:
		return NewFailureReason(ReasonImageVerifyFailed, ReasonMessageImageVerifyFailed)
	}
	return NewFailureReason(ReasonGenericPy2iBuildFailed, ReasonMessageGenericPy2iBuildFailed)
}
