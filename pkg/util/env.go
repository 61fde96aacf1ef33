package util

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/openshift/py2i/pkg/api"
)

var (
	proxyRegex  = regexp.MustCompile("(?i).*proxy.*")
	secretRegex = regexp.MustCompile("(?i).*(password|passwd|secret|token|api_?key).*")
)

// ReadEnvironmentFile reads the content for a file that contains a list of
// environment variables and values. The key-pairs are separated by a new line
// character. The file can also have comments (both '#' and '//' are supported).
func ReadEnvironmentFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := map[string]string{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		// Allow for comments in environment file
		if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//") {
			continue
		}
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 || len(strings.TrimSpace(parts[0])) == 0 {
			continue
		}
		result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return result, scanner.Err()
}

// MergeEnvironmentFile appends the variables of the configured environment
// file to the build arguments. Variables given on the command line win over
// the file.
func MergeEnvironmentFile(cfg *api.Config) error {
	if len(cfg.EnvironmentFile) == 0 {
		return nil
	}
	values, err := ReadEnvironmentFile(cfg.EnvironmentFile)
	if err != nil {
		return err
	}
	defined := map[string]bool{}
	for _, e := range cfg.Environment {
		defined[e.Name] = true
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if defined[name] {
			log.V(3).Infof("Build argument %s from %s is overridden on the command line", name, cfg.EnvironmentFile)
			continue
		}
		cfg.Environment = append(cfg.Environment, api.EnvironmentSpec{Name: name, Value: values[name]})
	}
	return nil
}

// StripProxyCredentials attempts to strip sensitive information from proxy
// environment variables.
func StripProxyCredentials(env []string) []string {
	// case insensitively match all key=value variables containing the word "proxy"
	// in the key and which appear to contain a user:password@host pattern.  We'll
	// keep everything before the = sign, and after the @.
	newEnv := make([]string, len(env))
	copy(newEnv, env)
	for i, entry := range newEnv {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || !proxyRegex.MatchString(parts[0]) {
			continue
		}
		if at := strings.LastIndex(parts[1], "@"); at >= 0 {
			newEnv[i] = parts[0] + "=" + parts[1][at+1:]
		}
	}
	return newEnv
}

// SafeForLoggingEnv returns the NAME=VALUE list with proxy credentials
// stripped and secret looking values redacted.
func SafeForLoggingEnv(env []string) []string {
	out := StripProxyCredentials(env)
	for i, entry := range out {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) == 2 && secretRegex.MatchString(parts[0]) {
			out[i] = parts[0] + "=********"
		}
	}
	return out
}
