package validation

import (
	"fmt"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/hashicorp/go-multierror"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/recipe"
)

// ValidateConfig returns a list of error from validation.
func ValidateConfig(config *api.Config) []Error {
	allErrs := ValidateContext(config)
	if len(config.Tag) == 0 {
		allErrs = append(allErrs, NewFieldRequired("tag"))
	} else if _, err := reference.ParseNormalizedNamed(config.Tag); err != nil {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("tag", err.Error()))
	}
	switch config.ResolvedBuilder() {
	case constants.EngineBuilder:
		if config.DockerConfig == nil || len(config.DockerConfig.Endpoint) == 0 {
			allErrs = append(allErrs, NewFieldRequired("url"))
		}
	case constants.DockerBuilder, constants.PodmanBuilder, constants.BuildahBuilder:
	default:
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("builder",
			fmt.Sprintf("must be one of %s, %s, %s or %s", constants.EngineBuilder, constants.DockerBuilder, constants.PodmanBuilder, constants.BuildahBuilder)))
	}
	if len(config.PullPolicy) > 0 && api.IsInvalidPullPolicy(config.PullPolicy) {
		allErrs = append(allErrs, NewFieldInvalidValue("pullPolicy"))
	}
	if config.MemoryLimit < 0 {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("memoryLimit", "must not be negative"))
	}
	if config.BuildTimeout < 0 {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("buildTimeout", "must not be negative"))
	}
	for k := range config.Labels {
		if len(strings.TrimSpace(k)) == 0 {
			allErrs = append(allErrs, NewFieldInvalidValueWithReason("labels", "label names must not be empty"))
			break
		}
	}
	return allErrs
}

// ValidateContext validates the settings needed to render the recipe of a
// build context: the context itself, the recipe and its overrides.
func ValidateContext(config *api.Config) []Error {
	allErrs := []Error{}
	if len(config.ContextDir) == 0 {
		allErrs = append(allErrs, NewFieldRequired("contextDir"))
		return allErrs
	}
	if len(config.BaseImage) > 0 {
		if _, err := reference.ParseNormalizedNamed(config.BaseImage); err != nil {
			allErrs = append(allErrs, NewFieldInvalidValueWithReason("baseImage", err.Error()))
		}
	}
	if strings.ContainsAny(config.Maintainer, "\r\n") {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("maintainer", "must be a single line"))
	}

	r, _, err := recipe.ForContext(config.ContextDir, config.RecipeFile)
	if err != nil {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("recipeFile", err.Error()))
		return allErrs
	}
	r.Override(config.BaseImage, config.Maintainer)
	if err := r.Validate(); err != nil {
		if merr, ok := err.(*multierror.Error); ok {
			for _, e := range merr.Errors {
				allErrs = append(allErrs, NewFieldInvalidValueWithReason("recipe", e.Error()))
			}
		} else {
			allErrs = append(allErrs, NewFieldInvalidValueWithReason("recipe", err.Error()))
		}
	}
	return allErrs
}
