// Package recipe models the image build recipe of a Python application: a
// linear list of steps that starts from a Python 3 runtime, establishes the
// working directory, installs the dependencies listed in the requirements
// manifest, copies the application payload and sets the default command.
//
// A Recipe renders itself into a Dockerfile and can verify an existing
// Dockerfile against the same contract.
package recipe
