package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/man74cio/zenodopy/util"
)

// setupSource builds a directory tree to archive. The ".hidden"
// directory must not appear in archives.
func setupSource(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "mydir")
	var files = []struct {
		name    string
		content string
	}{
		{"readme.txt", "hello there"},
		{"data/numbers.csv", "1,2,3\n"},
		{".hidden/secret", "do not pack"},
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestZipRoundtrip(t *testing.T) {
	source := setupSource(t)
	var buf bytes.Buffer
	size, md5, err := Zip(&buf, source)
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(buf.Len()) {
		t.Errorf("Received size %d, expected %d", size, buf.Len())
	}
	hw := util.NewMD5Writer(io.Discard)
	hw.Write(buf.Bytes())
	if _, ok := hw.CheckMD5(md5); !ok {
		t.Errorf("MD5 of archive does not match the reported one")
	}

	z, err := zip.NewReader(bytes.NewReader(buf.Bytes()), size)
	if err != nil {
		t.Fatal(err)
	}
	contents := make(map[string]string)
	for _, f := range z.File {
		in, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(in)
		in.Close()
		if err != nil {
			t.Fatal(err)
		}
		contents[f.Name] = string(data)
	}
	if len(contents) != 2 {
		t.Errorf("Received entries %v, expected 2 of them", contents)
	}
	if contents["mydir/readme.txt"] != "hello there" {
		t.Errorf("Read %q, expected %q", contents["mydir/readme.txt"], "hello there")
	}
	if contents["mydir/data/numbers.csv"] != "1,2,3\n" {
		t.Errorf("Read %q, expected %q", contents["mydir/data/numbers.csv"], "1,2,3\n")
	}
}

func TestTarGzRoundtrip(t *testing.T) {
	source := setupSource(t)
	var buf bytes.Buffer
	size, _, err := TarGz(&buf, source)
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(buf.Len()) {
		t.Errorf("Received size %d, expected %d", size, buf.Len())
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)
	contents := make(map[string]string)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		contents[header.Name] = string(data)
	}
	if contents["mydir/readme.txt"] != "hello there" {
		t.Errorf("Read %q, expected %q", contents["mydir/readme.txt"], "hello there")
	}
	if _, ok := contents["mydir/data/"]; !ok {
		t.Errorf("Directory entry mydir/data/ is missing, have %v", contents)
	}
	if _, ok := contents["mydir/.hidden/secret"]; ok {
		t.Errorf("Hidden directory was packed")
	}
}

func TestCreateZip(t *testing.T) {
	source := setupSource(t)
	path := filepath.Join(t.TempDir(), "mydir.zip")
	size, err := CreateZip(path, source)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != size {
		t.Errorf("Received size %d, expected %d", size, info.Size())
	}
}

func TestCreateZipBadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	_, err := CreateZip(path, filepath.Join(t.TempDir(), "no-such-dir"))
	if err == nil {
		t.Fatalf("Received no error, expected one")
	}
	if _, serr := os.Stat(path); serr == nil {
		t.Errorf("Partial archive %s was left behind", path)
	}
}
