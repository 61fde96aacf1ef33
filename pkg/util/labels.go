package util

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/opencontainers/go-digest"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	"github.com/openshift/py2i/pkg/recipe"
)

const (
	// MetadataFilename is the name of the config file defining additional labels to set on the output image.
	MetadataFilename = "image_metadata.json"
)

// ImageMetadata is the content of the image metadata file.
type ImageMetadata struct {
	Labels []map[string]string `mapstructure:"labels"`
}

// GenerateOutputImageLabels generates the labels applied to the built image
// from the py2i Config, the recipe and the digest of the build context. The
// maintainer label is set by the recipe itself and is not repeated here.
func GenerateOutputImageLabels(config *api.Config, r *recipe.Recipe, contextDigest digest.Digest) map[string]string {
	labels := map[string]string{}
	namespace := constants.DefaultNamespace

	labels = GenerateLabelsFromConfig(labels, config, namespace)
	addBuildLabel(labels, "image", r.BaseImage, namespace)
	if d, err := r.Digest(); err == nil {
		labels[constants.RecipeLabel] = d.String()
	}
	if len(contextDigest) > 0 {
		labels[constants.ContextDigestLabel] = contextDigest.String()
	}

	metadata, err := ProcessImageMetadataFile(filepath.Join(config.ContextDir, constants.SourceConfig))
	if err == nil {
		for _, l := range metadata.Labels {
			for k, v := range l {
				labels[k] = v
			}
		}
	} else if !os.IsNotExist(err) {
		log.Warningf("Ignoring %s: %v", MetadataFilename, err)
	}

	for k, v := range config.Labels {
		labels[k] = v
	}
	return labels
}

// GenerateLabelsFromConfig generate the labels based on build py2i Config
func GenerateLabelsFromConfig(labels map[string]string, config *api.Config, namespace string) map[string]string {
	if len(config.Description) > 0 {
		labels[constants.KubernetesDescriptionLabel] = config.Description
	}

	if len(config.DisplayName) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.DisplayName
	} else if len(config.Tag) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.Tag
	}
	return labels
}

// addBuildLabel adds a new "*.build.*" label into map when the
// value of this label is not empty
func addBuildLabel(to map[string]string, key, value, namespace string) {
	if len(value) == 0 {
		return
	}
	to[namespace+"build."+key] = value
}

// ProcessImageMetadataFile reads the image metadata file in the given
// directory. Label values that are not strings are rejected.
func ProcessImageMetadataFile(path string) (*ImageMetadata, error) {
	filePath := filepath.Join(path, MetadataFilename)
	str, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	log.V(3).Infof("new Labels File contents : \n%s\n", str)

	var data map[string]interface{}
	if err := jsoniter.Unmarshal(str, &data); err != nil {
		return nil, fmt.Errorf("JSON Unmarshal Error with '%s' file : %v", MetadataFilename, err)
	}
	metadata := &ImageMetadata{}
	if err := mapstructure.Decode(data, metadata); err != nil {
		return nil, fmt.Errorf("invalid '%s' file : %v", MetadataFilename, err)
	}
	return metadata, nil
}
