package recipe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// Instructions that declare runtime surface the recipe never has.
var undeclared = map[string]string{
	"expose":      "ports",
	"volume":      "volumes",
	"healthcheck": "health checks",
	"env":         "environment variables",
	"entrypoint":  "an entrypoint",
}

// ParsedInstruction is one instruction of a parsed Dockerfile.
type ParsedInstruction struct {
	Line  int
	Name  string
	Args  []string
	JSON  bool
	Flags []string
}

// ParseDockerfile parses a Dockerfile into its top level instructions.
func ParseDockerfile(r io.Reader) ([]ParsedInstruction, error) {
	result, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}
	var out []ParsedInstruction
	for _, node := range result.AST.Children {
		inst := ParsedInstruction{
			Line:  node.StartLine,
			Name:  strings.ToLower(node.Value),
			JSON:  node.Attributes["json"],
			Flags: node.Flags,
		}
		for n := node.Next; n != nil; n = n.Next {
			inst.Args = append(inst.Args, n.Value)
		}
		out = append(out, inst)
	}
	return out, nil
}

// Verify checks a Dockerfile against the recipe and returns every violation
// of the build and launch contract. An error is returned only when the
// Dockerfile cannot be parsed.
func (r *Recipe) Verify(dockerfile io.Reader) ([]string, error) {
	instructions, err := ParseDockerfile(dockerfile)
	if err != nil {
		return nil, err
	}

	var problems []string
	problem := func(line int, format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf("line %d: ", line)+fmt.Sprintf(format, args...))
	}

	var (
		froms         int
		workdirLine   int
		manifestLine  int
		installLine   int
		lastCmd       *ParsedInstruction
		maintainer    string
		copied        = map[string]int{}
		firstCopyLine int
	)

	for i := range instructions {
		inst := instructions[i]
		switch inst.Name {
		case "arg":
		case "from":
			froms++
			if froms > 1 {
				problem(inst.Line, "multi-stage builds are not part of the recipe")
				continue
			}
			if len(inst.Args) == 0 || inst.Args[0] != r.BaseImage {
				problem(inst.Line, "base image must be %q, got %q", r.BaseImage, strings.Join(inst.Args, " "))
			}
		case "label":
			for k, v := range labelPairs(inst.Args) {
				if k == "maintainer" {
					maintainer = v
				}
			}
		case "workdir":
			if len(inst.Args) == 1 && inst.Args[0] == r.WorkDir && workdirLine == 0 {
				workdirLine = inst.Line
			} else if workdirLine != 0 {
				problem(inst.Line, "working directory changes after it was established")
			} else {
				problem(inst.Line, "working directory must be %q, got %q", r.WorkDir, strings.Join(inst.Args, " "))
			}
		case "copy", "add":
			if firstCopyLine == 0 {
				firstCopyLine = inst.Line
			}
			if len(inst.Args) < 2 {
				problem(inst.Line, "%s needs a source and a destination", strings.ToUpper(inst.Name))
				continue
			}
			for _, src := range inst.Args[:len(inst.Args)-1] {
				copied[normalize(src)] = inst.Line
				if normalize(src) == normalize(r.Manifest) && manifestLine == 0 {
					manifestLine = inst.Line
				}
			}
		case "run":
			if installLine == 0 && installs(inst.Args, r.Manifest) {
				installLine = inst.Line
				if !strings.Contains(strings.Join(inst.Args, " "), "--no-cache-dir") {
					problem(inst.Line, "dependency install must not keep the package cache (--no-cache-dir)")
				}
			}
		case "cmd":
			lastCmd = &instructions[i]
		default:
			if what, ok := undeclared[inst.Name]; ok {
				problem(inst.Line, "the recipe declares no %s", what)
			}
		}
	}

	if froms == 0 {
		problems = append(problems, "no FROM instruction")
	}
	if workdirLine == 0 {
		problems = append(problems, fmt.Sprintf("working directory %q is never established", r.WorkDir))
	} else if firstCopyLine != 0 && firstCopyLine < workdirLine {
		problem(firstCopyLine, "files are copied before the working directory is established")
	}
	if manifestLine == 0 {
		problems = append(problems, fmt.Sprintf("manifest %q is never copied", r.Manifest))
	}
	if installLine == 0 {
		problems = append(problems, fmt.Sprintf("dependencies from %q are never installed", r.Manifest))
	} else if manifestLine != 0 && installLine < manifestLine {
		problem(installLine, "dependencies are installed before the manifest is copied")
	}
	for _, p := range r.Payload {
		if _, ok := copied[normalize(p)]; !ok {
			problems = append(problems, fmt.Sprintf("payload %q is never copied", p))
		}
	}
	if maintainer != r.Maintainer {
		problems = append(problems, fmt.Sprintf("maintainer label must be %q, got %q", r.Maintainer, maintainer))
	}
	switch {
	case lastCmd == nil:
		problems = append(problems, "no default command")
	case !lastCmd.JSON:
		problem(lastCmd.Line, "default command must use the exec form %s", Step{Instruction: Cmd, Args: r.Command})
	case !equal(lastCmd.Args, r.Command):
		problem(lastCmd.Line, "default command must be %q, got %q", r.Command, lastCmd.Args)
	}
	return problems, nil
}

// labelPairs folds LABEL arguments into a map. The parser emits key, value
// and separator nodes for every pair.
func labelPairs(args []string) map[string]string {
	out := map[string]string{}
	for i := 0; i+1 < len(args); {
		k, v := args[i], args[i+1]
		if unquoted, err := strconv.Unquote(v); err == nil {
			v = unquoted
		}
		out[k] = v
		if i+2 < len(args) && args[i+2] == "=" {
			i += 3
		} else {
			i += 2
		}
	}
	return out
}

// installs reports whether a RUN instruction installs the manifest with pip.
func installs(args []string, manifest string) bool {
	cmd := strings.Join(args, " ")
	if !strings.Contains(cmd, "pip") || !strings.Contains(cmd, "install") {
		return false
	}
	fields := strings.Fields(cmd)
	for i := 0; i+1 < len(fields); i++ {
		if (fields[i] == "-r" || fields[i] == "--requirement") && normalize(fields[i+1]) == normalize(manifest) {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(p, "/")
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
