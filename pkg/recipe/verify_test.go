package recipe

import (
	"bytes"
	"strings"
	"testing"
)

func TestVerifyRenderedDockerfile(t *testing.T) {
	for _, r := range []*Recipe{Default(), withMaintainer()} {
		var buf bytes.Buffer
		if err := r.Render(&buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		problems, err := r.Verify(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(problems) != 0 {
			t.Errorf("rendered Dockerfile does not verify: %v", problems)
		}
	}
}

func TestVerifyHandwrittenDockerfile(t *testing.T) {
	const original = `FROM python:3
LABEL maintainer="Platform Team <platform@example.com>"
WORKDIR /application
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY server ./server
COPY config/__init__.py ./config/
COPY start.py ./
CMD [ "python3", "./start.py" ]
`
	problems, err := withMaintainer().Verify(strings.NewReader(original))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
}

func TestVerifyProblems(t *testing.T) {
	tests := []struct {
		name       string
		dockerfile string
		expected   []string
	}{
		{
			name: "shell form command",
			dockerfile: `FROM python:3
WORKDIR /application
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY server/ ./server/
COPY config/__init__.py ./config/__init__.py
COPY start.py ./
CMD python3 ./start.py
`,
			expected: []string{"exec form"},
		},
		{
			name: "cache kept and install before copy",
			dockerfile: `FROM python:3
WORKDIR /application
RUN pip install -r requirements.txt
COPY requirements.txt ./
COPY server/ ./server/
COPY config/__init__.py ./config/__init__.py
COPY start.py ./
CMD ["python3", "./start.py"]
`,
			expected: []string{"--no-cache-dir", "installed before the manifest is copied"},
		},
		{
			name: "missing payload and extra surface",
			dockerfile: `FROM python:3.11
WORKDIR /application
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY start.py ./
EXPOSE 8080
CMD ["python3", "./start.py"]
`,
			expected: []string{`base image must be "python:3"`, `payload "server/" is never copied`, `payload "config/__init__.py" is never copied`, "declares no ports"},
		},
		{
			name: "copy before workdir",
			dockerfile: `FROM python:3
COPY requirements.txt ./
WORKDIR /application
RUN pip install --no-cache-dir -r requirements.txt
COPY server/ ./server/
COPY config/__init__.py ./config/__init__.py
COPY start.py ./
CMD ["python3", "start.py"]
`,
			expected: []string{"copied before the working directory", "default command must be"},
		},
		{
			name: "missing maintainer",
			dockerfile: `FROM python:3
WORKDIR /application
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY server/ ./server/
COPY config/__init__.py ./config/__init__.py
COPY start.py ./
CMD ["python3", "./start.py"]
`,
			expected: []string{`maintainer label must be "Application Maintainers <maintainers@localhost>", got ""`},
		},
		{
			name:       "empty",
			dockerfile: "# nothing\n",
			expected:   []string{"no FROM", "never established", "no default command"},
		},
	}
	for _, tc := range tests {
		problems, err := Default().Verify(strings.NewReader(tc.dockerfile))
		if err != nil && tc.name != "empty" {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if err != nil {
			continue
		}
		joined := strings.Join(problems, "\n")
		for _, want := range tc.expected {
			if !strings.Contains(joined, want) {
				t.Errorf("%s: expected a problem mentioning %q, got:\n%s", tc.name, want, joined)
			}
		}
	}
}

func TestLabelPairs(t *testing.T) {
	pairs := labelPairs([]string{"maintainer", `"a b"`, "=", "version", "1", "="})
	if pairs["maintainer"] != "a b" || pairs["version"] != "1" {
		t.Errorf("unexpected pairs %#v", pairs)
	}
	legacy := labelPairs([]string{"maintainer", "someone", ""})
	if legacy["maintainer"] != "someone" {
		t.Errorf("unexpected legacy pairs %#v", legacy)
	}
}
