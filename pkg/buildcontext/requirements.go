package buildcontext

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openshift/py2i/pkg/recipe"
)

// Requirement is a package listed in the manifest.
type Requirement struct {
	Name string
	Spec string
	Line int
}

// Reference is a manifest line pointing at another file or a local path.
// Only the manifest is present when the install step runs, so references
// cannot be resolved.
type Reference struct {
	Option string
	Target string
	Line   int
}

// Requirements is the parsed dependency manifest.
type Requirements struct {
	Manifest   string
	Packages   []Requirement
	References []Reference
}

var nameRegexp = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*(.*)$`)

// ReadRequirements parses the manifest of the recipe.
func ReadRequirements(contextDir string, r *recipe.Recipe) (*Requirements, error) {
	f, err := os.Open(filepath.Join(contextDir, filepath.FromSlash(r.Manifest)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reqs := &Requirements{Manifest: r.Manifest}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	var continued string
	for scanner.Scan() {
		lineNo++
		line := continued + scanner.Text()
		continued = ""
		if strings.HasSuffix(line, "\\") {
			continued = strings.TrimSuffix(line, "\\")
			continue
		}
		line = stripComment(line)
		if len(line) == 0 {
			continue
		}
		if strings.HasPrefix(line, "-") {
			if ref, ok := parseOption(line, lineNo); ok {
				reqs.References = append(reqs.References, ref)
			}
			continue
		}
		if isLocalPath(line) {
			reqs.References = append(reqs.References, Reference{Target: line, Line: lineNo})
			continue
		}
		m := nameRegexp.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%s:%d: cannot parse requirement %q", r.Manifest, lineNo, line)
		}
		reqs.Packages = append(reqs.Packages, Requirement{Name: m[1], Spec: strings.TrimSpace(m[3]), Line: lineNo})
	}
	return reqs, scanner.Err()
}

// Unresolvable returns an error for every reference the install step cannot
// resolve because only the manifest has been copied at that point.
func (r *Requirements) Unresolvable() []error {
	var out []error
	for _, ref := range r.References {
		if len(ref.Option) > 0 {
			out = append(out, fmt.Errorf("%s:%d: %s %s refers to a file that is not copied before the install step", r.Manifest, ref.Line, ref.Option, ref.Target))
			continue
		}
		out = append(out, fmt.Errorf("%s:%d: local path %s is not available when the dependencies are installed", r.Manifest, ref.Line, ref.Target))
	}
	return out
}

// Names returns the package names in manifest order.
func (r *Requirements) Names() []string {
	names := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		names = append(names, p.Name)
	}
	return names
}

func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "\t#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// parseOption keeps only the options that point at other files. Index and
// hash options are handled by pip itself.
func parseOption(line string, lineNo int) (Reference, bool) {
	fields := strings.Fields(line)
	option, target := fields[0], ""
	if i := strings.Index(option, "="); i >= 0 {
		option, target = option[:i], option[i+1:]
	} else if len(fields) > 1 {
		target = fields[1]
	}
	switch option {
	case "-r", "--requirement", "-c", "--constraint":
		return Reference{Option: option, Target: target, Line: lineNo}, true
	case "-e", "--editable":
		if isLocalPath(target) {
			return Reference{Option: option, Target: target, Line: lineNo}, true
		}
	}
	return Reference{}, false
}

func isLocalPath(s string) bool {
	return s == "." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "file:")
}
