package api

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// PrintObj returns a human readable description of the build configuration.
func (c *Config) PrintObj() string {
	out, err := tabbedString(func(out io.Writer) error {
		fmt.Fprintf(out, "Build Context:\t%s\n", c.ContextDir)
		fmt.Fprintf(out, "Output Image Tag:\t%s\n", c.Tag)
		if len(c.RecipeFile) > 0 {
			fmt.Fprintf(out, "Recipe File:\t%s\n", c.RecipeFile)
		}
		if len(c.BaseImage) > 0 {
			fmt.Fprintf(out, "Base Image:\t%s\n", c.BaseImage)
		}
		if len(c.Maintainer) > 0 {
			fmt.Fprintf(out, "Maintainer:\t%s\n", c.Maintainer)
		}
		fmt.Fprintf(out, "Builder:\t%s\n", c.ResolvedBuilder())
		if len(c.AsDockerfile) > 0 {
			fmt.Fprintf(out, "Dockerfile:\t%s\n", c.AsDockerfile)
		}
		printEnv(out, c.Environment)
		if len(c.EnvironmentFile) > 0 {
			fmt.Fprintf(out, "Environment File:\t%s\n", c.EnvironmentFile)
		}
		printLabels(out, c.Labels)
		fmt.Fprintf(out, "Pull Policy:\t%s\n", c.PullPolicy.String())
		fmt.Fprintf(out, "Layer Cache:\t%s\n", printBool(c.UseCache))
		fmt.Fprintf(out, "Quiet:\t%s\n", printBool(c.Quiet))
		fmt.Fprintf(out, "Verify Image:\t%s\n", printBool(!c.SkipVerify))
		if c.MemoryLimit > 0 {
			fmt.Fprintf(out, "Memory Limit:\t%d\n", c.MemoryLimit)
		}
		if c.BuildTimeout > 0 {
			fmt.Fprintf(out, "Build Timeout:\t%s\n", c.BuildTimeout)
		}
		if c.DockerConfig != nil {
			fmt.Fprintf(out, "Docker Endpoint:\t%s\n", c.DockerConfig.Endpoint)
		}

		if _, err := os.Stat(c.DockerCfgPath); err == nil && len(c.DockerCfgPath) > 0 {
			fmt.Fprintf(out, "Docker Pull Config:\t%s\n", c.DockerCfgPath)
			fmt.Fprintf(out, "Docker Pull User:\t%s\n", c.PullAuthentication.Username)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error: %v", err)
	}
	return out
}

func printEnv(out io.Writer, env EnvironmentList) {
	if len(env) == 0 {
		return
	}
	result := []string{}
	for _, e := range env {
		if strings.HasSuffix(strings.ToLower(e.Name), "password") || strings.HasSuffix(strings.ToLower(e.Name), "token") {
			result = append(result, fmt.Sprintf("%s=<redacted>", e.Name))
			continue
		}
		result = append(result, fmt.Sprintf("%s=%s", e.Name, e.Value))
	}
	fmt.Fprintf(out, "Environment:\t%s\n", strings.Join(result, ","))
}

func printLabels(out io.Writer, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	result := []string{}
	for k, v := range labels {
		result = append(result, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(result)
	fmt.Fprintf(out, "Labels:\t%s\n", strings.Join(result, ","))
}

func printBool(b bool) string {
	if b {
		return "\033[1menabled\033[0m"
	}
	return "disabled"
}

func tabbedString(f func(io.Writer) error) (string, error) {
	out := new(tabwriter.Writer)
	buf := &bytes.Buffer{}
	out.Init(buf, 0, 8, 1, '\t', 0)

	err := f(out)
	if err != nil {
		return "", err
	}

	out.Flush()
	str := string(buf.String())
	return str, nil
}
