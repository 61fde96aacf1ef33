// Package run supports running images produced by py2i. It is used by the
// run command and by the --run=true option of the build command.
package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/docker"
	"github.com/openshift/py2i/pkg/errors"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

// A DockerRunner allows running a Docker image as a new container, streaming
// stdout and stderr with log.
type DockerRunner struct {
	ContainerClient docker.Docker
}

// New creates a DockerRunner for executing the methods associated with running
// the produced image in a docker container for verification purposes.
func New(client docker.Docker) *DockerRunner {
	return &DockerRunner{ContainerClient: client}
}

// Command returns the command overriding the default command of the image,
// nil when none is configured.
func Command(config *api.Config) ([]string, error) {
	if len(config.Command) == 0 {
		return nil, nil
	}
	args, err := shellwords.Parse(config.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %v", config.Command, err)
	}
	return args, nil
}

// Run invokes the Docker API to run the image defined in config as a new
// container. The container's stdout and stderr will be logged. Canceling the
// context stops waiting and removes the container.
func (b *DockerRunner) Run(ctx context.Context, config *api.Config) error {
	log.V(4).Infof("Attempting to run image %s \n", config.Tag)

	command, err := Command(config)
	if err != nil {
		return err
	}

	outReader, outWriter := io.Pipe()
	errReader, errWriter := io.Pipe()

	opts := docker.RunContainerOptions{
		Image:   config.Tag,
		Command: command,
		Memory:  config.MemoryLimit,
		Stdout:  outWriter,
		Stderr:  errWriter,
		OnStart: func(id string) {
			log.V(2).Infof("Container %s of %s started", id, config.Tag)
		},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		StreamContainerIO(errReader, log.Error)
	}()
	go func() {
		defer wg.Done()
		StreamContainerIO(outReader, log.Info)
	}()

	err = b.ContainerClient.RunContainer(ctx, opts)
	outWriter.Close()
	errWriter.Close()
	wg.Wait()

	// If we get a ContainerError, the original message reports the
	// container name. The container is temporary and its name is
	// meaningless, therefore we make the error message more helpful by
	// replacing the container name with the image tag.
	if e, ok := err.(errors.ContainerError); ok {
		return errors.NewContainerError(config.Tag, e.ExitCode, e.Output)
	}
	return err
}

// StreamContainerIO takes data from the Reader and redirects it to the log
// function, one line at a time. The reader is drained even when a line cannot
// be read so the container output never blocks.
func StreamContainerIO(r io.Reader, logFn func(...interface{})) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logFn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.V(2).Infof("Unable to read container output: %v", err)
		io.Copy(ioutil.Discard, r)
	}
}
