package buildah

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Execute runs args[0] with the remaining arguments and returns what it wrote
// to stdout. A failed command returns its stdout too, with stderr folded into
// the error. Verbose logs the outcome at level 0 on failure.
func Execute(ctx context.Context, args []string, stdin io.Reader, verbose bool) ([]byte, error) {
	log.V(3).Infof("Running %q", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if verbose {
			log.Infof("%s failed: %v\nstdout: %s\nstderr: %s", args[0], err, stdout.Bytes(), stderr.Bytes())
		}
		if msg := trimOutput(stderr.Bytes()); len(msg) > 0 {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	log.V(5).Infof("%s succeeded\nstdout: %s\nstderr: %s", args[0], stdout.Bytes(), stderr.Bytes())
	return stdout.Bytes(), nil
}

// trimOutput drops trailing whitespace from command output.
func trimOutput(out []byte) string {
	return strings.TrimRight(string(out), " \t\r\n")
}
