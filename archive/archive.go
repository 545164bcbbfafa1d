// Package archive builds zip and tar.gz archives of local directories
// for upload to Zenodo. Entries are stored under the directory's base
// name, so an archive of "testdata/mydir" unpacks into "mydir/".
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	raven "github.com/getsentry/raven-go"

	"github.com/man74cio/zenodopy/util"
)

// Zip writes a zip archive of sourceDir to w. It returns the number of
// archive bytes written and their MD5 hash. Hidden directories are
// skipped.
func Zip(w io.Writer, sourceDir string) (int64, []byte, error) {
	var size int64
	hw := util.NewMD5Writer(&countWriter{w: w, count: &size})
	z := zip.NewWriter(hw)
	base := filepath.Base(filepath.Clean(sourceDir))

	err := walkFiles(sourceDir, func(path, rel string, info os.FileInfo) error {
		header := zip.FileHeader{
			Name:     base + "/" + rel,
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		}
		out, err := z.CreateHeader(&header)
		if err != nil {
			return err
		}
		return copyFile(out, path)
	})
	if err != nil {
		z.Close()
		return size, nil, err
	}
	err = z.Close()
	md5, _ := hw.CheckMD5(nil)
	return size, md5, err
}

// TarGz writes a gzipped tar archive of sourceDir to w, in the same
// layout as Zip. Directory entries are included.
func TarGz(w io.Writer, sourceDir string) (int64, []byte, error) {
	var size int64
	hw := util.NewMD5Writer(&countWriter{w: w, count: &size})
	gz := gzip.NewWriter(hw)
	tw := tar.NewWriter(gz)
	base := filepath.Base(filepath.Clean(sourceDir))

	err := walkAll(sourceDir, func(path, rel string, info os.FileInfo) error {
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = base + "/" + rel
		if rel == "" {
			header.Name = base
		}
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFile(tw, path)
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return size, nil, err
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		return size, nil, err
	}
	err = gz.Close()
	md5, _ := hw.CheckMD5(nil)
	return size, md5, err
}

// CreateZip archives sourceDir into a new zip file at path and returns
// its size. A partial archive is removed on failure.
func CreateZip(path, sourceDir string) (int64, error) {
	return createArchive(path, sourceDir, Zip)
}

// CreateTarGz archives sourceDir into a new tar.gz file at path and
// returns its size. A partial archive is removed on failure.
func CreateTarGz(path, sourceDir string) (int64, error) {
	return createArchive(path, sourceDir, TarGz)
}

func createArchive(path, sourceDir string, build func(io.Writer, string) (int64, []byte, error)) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		log.Println("archive:", path, err)
		raven.CaptureError(err, map[string]string{"Archive": path})
		return 0, err
	}
	size, _, err := build(out, sourceDir)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		log.Println("archive:", path, err)
		raven.CaptureError(err, map[string]string{"Archive": path, "Source": sourceDir})
		os.Remove(path)
		return 0, err
	}
	return size, nil
}

// walkFiles calls fn for every regular file below sourceDir, passing
// the file's path, its slash-separated relative name, and its info.
// Hidden directories are skipped.
func walkFiles(sourceDir string, fn func(path, rel string, info os.FileInfo) error) error {
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != sourceDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
}

// walkAll is walkFiles including directory entries. The root itself is
// passed with an empty relative name.
func walkAll(sourceDir string, fn func(path, rel string, info os.FileInfo) error) error {
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != sourceDir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
}

func copyFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	in.Close()
	return err
}

// countWriter is an io.Writer that counts the number of bytes written to it.
type countWriter struct {
	w     io.Writer
	count *int64
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	*w.count += int64(n)
	return n, err
}
