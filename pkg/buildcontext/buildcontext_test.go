package buildcontext

import (
	"archive/tar"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/openshift/py2i/pkg/recipe"
)

// createContext lays out the reference application in a temporary directory.
func createContext(t *testing.T, files map[string]string) string {
	dir, err := ioutil.TempDir("", "py2i-context-")
	if err != nil {
		t.Fatalf("unable to create temp dir: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("unable to create %s: %v", filepath.Dir(path), err)
		}
		if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("unable to write %s: %v", path, err)
		}
	}
	return dir
}

func referenceApplication() map[string]string {
	return map[string]string{
		"requirements.txt":            "flask==2.3.2\nbcrypt\nmarshmallow>=3 # schemas\n",
		"server/routing.py":           "import bcrypt\n",
		"server/database/managers.py": "class UserManager: pass\n",
		"config/__init__.py":          "",
		"start.py":                    "print('started')\n",
		"scripts/sync_data.py":        "import requests\n",
	}
}

func TestCheckValidContext(t *testing.T) {
	dir := createContext(t, referenceApplication())
	defer os.RemoveAll(dir)

	if err := Check(dir, recipe.Default()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckMissingServer(t *testing.T) {
	files := referenceApplication()
	delete(files, "server/routing.py")
	delete(files, "server/database/managers.py")
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	r := recipe.Default()
	r.Maintainer = "ops@example.com"
	err := Check(dir, r)
	if err == nil {
		t.Fatalf("expected the check to fail")
	}
	missing := MissingPaths(err)
	if len(missing) != 1 {
		t.Fatalf("expected one missing path, got %v", err)
	}
	if missing[0].Path != "server/" || missing[0].Step.Index != 6 || missing[0].Total != 9 {
		t.Errorf("unexpected missing path %+v", missing[0])
	}
	if !strings.Contains(missing[0].Error(), "step 6/9 (COPY server/ ./server/)") {
		t.Errorf("unexpected message %q", missing[0].Error())
	}
}

func TestCheckReportsEverything(t *testing.T) {
	files := referenceApplication()
	delete(files, "requirements.txt")
	delete(files, "start.py")
	files["config"] = "not a package"
	delete(files, "config/__init__.py")
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	missing := MissingPaths(Check(dir, recipe.Default()))
	var paths []string
	for _, m := range missing {
		paths = append(paths, m.Path)
	}
	sort.Strings(paths)
	expected := []string{"config/__init__.py", "requirements.txt", "start.py"}
	if strings.Join(paths, ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v missing, got %v", expected, paths)
	}
}

func TestCheckWrongKind(t *testing.T) {
	files := referenceApplication()
	delete(files, "server/routing.py")
	delete(files, "server/database/managers.py")
	files["server"] = "a file"
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	missing := MissingPaths(Check(dir, recipe.Default()))
	if len(missing) != 1 || missing[0].Reason != "must be a directory" {
		t.Errorf("unexpected result %+v", missing)
	}
}

func TestCheckIgnoredPath(t *testing.T) {
	files := referenceApplication()
	files[".dockerignore"] = "start.py\n"
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	missing := MissingPaths(Check(dir, recipe.Default()))
	if len(missing) != 1 || missing[0].Path != "start.py" || !strings.Contains(missing[0].Reason, ".dockerignore") {
		t.Errorf("unexpected result %+v", missing)
	}
}

func TestCheckUnresolvableManifest(t *testing.T) {
	files := referenceApplication()
	files["requirements.txt"] = "-r base.txt\n-e .\nflask\n"
	files["base.txt"] = "bcrypt\n"
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	err := Check(dir, recipe.Default())
	if err == nil {
		t.Fatalf("expected unresolvable references to fail the check")
	}
	for _, want := range []string{"-r base.txt", "-e ."} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestReadRequirements(t *testing.T) {
	files := referenceApplication()
	files["requirements.txt"] = `# runtime
Flask[async]==2.3.2
bcrypt ; python_version >= "3.8"
flask-jwt-extended \
    >=4.0
--index-url https://pypi.example.com/simple
sqlalchemy>=1.4,<2  # orm

requests
`
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	reqs, err := ReadRequirements(dir, recipe.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"Flask", "bcrypt", "flask-jwt-extended", "sqlalchemy", "requests"}
	if strings.Join(reqs.Names(), ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v, got %v", expected, reqs.Names())
	}
	if len(reqs.References) != 0 {
		t.Errorf("expected no references, got %+v", reqs.References)
	}
	if reqs.Packages[3].Spec != ">=1.4,<2" {
		t.Errorf("unexpected spec %q", reqs.Packages[3].Spec)
	}
}

func readArchive(t *testing.T, r io.Reader) map[string]string {
	out := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unable to read archive: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, _ := ioutil.ReadAll(tr)
		out[hdr.Name] = string(data)
	}
	return out
}

func TestArchive(t *testing.T) {
	files := referenceApplication()
	files[".dockerignore"] = "**/*.pyc\n"
	files["server/routing.pyc"] = "compiled"
	dir := createContext(t, files)
	defer os.RemoveAll(dir)

	stream, err := Archive(dir, recipe.Default(), "Dockerfile.py2i")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()
	entries := readArchive(t, stream)

	for _, want := range []string{"requirements.txt", "server/routing.py", "server/database/managers.py", "config/__init__.py", "start.py", "Dockerfile.py2i"} {
		if _, ok := entries[want]; !ok {
			t.Errorf("expected %s in the archive, got %v", want, entries)
		}
	}
	for _, unwanted := range []string{"scripts/sync_data.py", "server/routing.pyc"} {
		if _, ok := entries[unwanted]; ok {
			t.Errorf("did not expect %s in the archive", unwanted)
		}
	}
	if !strings.Contains(entries["Dockerfile.py2i"], "WORKDIR /application") {
		t.Errorf("unexpected Dockerfile:\n%s", entries["Dockerfile.py2i"])
	}
}

func TestDigest(t *testing.T) {
	dir := createContext(t, referenceApplication())
	defer os.RemoveAll(dir)

	r := recipe.Default()
	first, err := Digest(dir, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := Digest(dir, r)
	if first != second {
		t.Errorf("digest is not stable: %s != %s", first, second)
	}

	ioutil.WriteFile(filepath.Join(dir, "scripts", "sync_data.py"), []byte("changed"), 0644)
	if unrelated, _ := Digest(dir, r); unrelated != first {
		t.Errorf("files outside the recipe must not change the digest")
	}

	ioutil.WriteFile(filepath.Join(dir, "start.py"), []byte("print('changed')\n"), 0644)
	if changed, _ := Digest(dir, r); changed == first {
		t.Errorf("expected the digest to change with start.py")
	}
}

func TestExportCompressed(t *testing.T) {
	dir := createContext(t, referenceApplication())
	defer os.RemoveAll(dir)

	var buf bytes.Buffer
	if _, err := Export(dir, recipe.Default(), "Dockerfile", &buf, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xr, err := xz.NewReader(&buf)
	if err != nil {
		t.Fatalf("archive is not xz compressed: %v", err)
	}
	entries := readArchive(t, xr)
	if _, ok := entries["Dockerfile"]; !ok {
		t.Errorf("expected the Dockerfile in the export, got %v", entries)
	}
	if entries["start.py"] != "print('started')\n" {
		t.Errorf("unexpected start.py content %q", entries["start.py"])
	}
}
