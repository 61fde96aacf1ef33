package buildcontext

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/pkg/archive"
	"github.com/opencontainers/go-digest"
	"github.com/ulikunitz/xz"

	"github.com/openshift/py2i/pkg/ignore"
	"github.com/openshift/py2i/pkg/recipe"
)

// Archive returns a tar stream holding the paths the recipe copies and the
// rendered Dockerfile stored as dockerfileName. Paths excluded by
// .dockerignore are left out, exactly as the daemon would.
func Archive(contextDir string, r *recipe.Recipe, dockerfileName string) (io.ReadCloser, error) {
	matcher, err := ignore.NewMatcher(contextDir)
	if err != nil {
		return nil, err
	}

	var dockerfile bytes.Buffer
	if err := r.Render(&dockerfile); err != nil {
		return nil, err
	}

	includes := make([]string, 0, len(r.Paths()))
	for _, p := range r.Paths() {
		includes = append(includes, filepath.FromSlash(strings.TrimSuffix(p, "/")))
	}

	log.V(3).Infof("Archiving %v from %s", includes, contextDir)
	stream, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		Compression:     archive.Uncompressed,
		IncludeFiles:    includes,
		ExcludePatterns: matcher.Patterns(),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return archive.ReplaceFileTarWrapper(stream, map[string]archive.TarModifierFunc{
		dockerfileName: func(_ string, _ *tar.Header, _ io.Reader) (*tar.Header, []byte, error) {
			header := &tar.Header{
				Name:       dockerfileName,
				Mode:       0600,
				ModTime:    now,
				Typeflag:   tar.TypeReg,
				AccessTime: now,
				ChangeTime: now,
			}
			return header, dockerfile.Bytes(), nil
		},
	}), nil
}

// Files lists the regular files the recipe copies, as sorted slash separated
// context relative paths, without the ignored ones.
func Files(contextDir string, r *recipe.Recipe) ([]string, error) {
	matcher, err := ignore.NewMatcher(contextDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range r.Paths() {
		root := filepath.Join(contextDir, filepath.FromSlash(strings.TrimSuffix(p, "/")))
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(contextDir, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if matcher.Match(rel) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.Mode().IsRegular() {
				files = append(files, rel)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// Digest computes a digest over the names and contents of the files the
// recipe copies. It changes whenever the image content would.
func Digest(contextDir string, r *recipe.Recipe) (digest.Digest, error) {
	files, err := Files(contextDir, r)
	if err != nil {
		return "", err
	}
	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, f := range files {
		fd, err := os.Open(filepath.Join(contextDir, filepath.FromSlash(f)))
		if err != nil {
			return "", err
		}
		content := digest.Canonical.Digester()
		_, err = io.Copy(content.Hash(), fd)
		fd.Close()
		if err != nil {
			return "", err
		}
		io.WriteString(h, f)
		h.Write([]byte{0})
		io.WriteString(h, content.Digest().String())
		h.Write([]byte{'\n'})
	}
	return digester.Digest(), nil
}

// Export writes the build context archive to w, xz compressed when compress
// is set. The Docker daemon accepts both forms as a build context.
func Export(contextDir string, r *recipe.Recipe, dockerfileName string, w io.Writer, compress bool) (int64, error) {
	stream, err := Archive(contextDir, r, dockerfileName)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	if !compress {
		return io.Copy(w, stream)
	}
	xw, err := xz.NewWriter(w)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(xw, stream)
	if err != nil {
		xw.Close()
		return n, err
	}
	return n, xw.Close()
}
