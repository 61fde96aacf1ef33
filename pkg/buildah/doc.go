// Package buildah drives the external image tools (buildah, podman and the
// docker CLI) through "os/exec" calls. The external build strategy uses it to
// inspect and remove the images those tools produce.
package buildah
