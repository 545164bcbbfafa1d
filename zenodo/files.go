package zenodo

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/man74cio/zenodopy/archive"
	"github.com/man74cio/zenodopy/util"
)

// ListFiles returns the files of the associated deposition, in the order
// the server reports them.
func (c *Client) ListFiles() ([]DepositionFile, error) {
	if c.depositionID == 0 {
		return nil, ErrNotAssociated
	}
	dep, err := c.GetDeposition(c.depositionID)
	if err != nil {
		return nil, err
	}
	return dep.Files, nil
}

// FileIDs maps the associated deposition's filenames to their
// server-assigned file ids. The ids are only valid for the current
// revision.
func (c *Client) FileIDs() (map[string]string, error) {
	files, err := c.ListFiles()
	if err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for _, f := range files {
		result[f.Filename] = f.ID
	}
	return result, nil
}

// DepositionFiles lists the files of the given deposition through the
// file collection endpoint.
func (c *Client) DepositionFiles(id int) ([]DepositionFile, error) {
	var files []DepositionFile
	err := c.doGetJSON(c.depositionURL(id)+"/files", &files)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// UploadFile stores the file at path into the associated deposition's
// bucket. The name on Zenodo defaults to the local base name. When
// publish is set and the upload succeeded, the deposition is published
// in the same call.
func (c *Client) UploadFile(path, filename string, publish bool) error {
	if c.depositionID == 0 {
		return ErrNotAssociated
	}
	if c.bucket == "" {
		return ErrNoBucket
	}
	if filename == "" {
		filename = filepath.Base(path)
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	err = c.uploadToBucket(c.bucket, filename, in)
	in.Close()
	if err != nil {
		return err
	}
	if publish {
		_, err = c.Publish()
		return errors.Wrap(err, "publish")
	}
	return nil
}

// uploadToBucket PUTs the contents of r to {bucket}/{filename}.
func (c *Client) uploadToBucket(bucket, filename string, r io.Reader) error {
	req, err := http.NewRequest("PUT", bucket+"/"+filename, r)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 201:
		return nil
	}
	return statusErr(resp)
}

// DeleteFile removes the named file from the associated deposition's
// bucket.
func (c *Client) DeleteFile(filename string) error {
	if c.depositionID == 0 {
		return ErrNotAssociated
	}
	if c.bucket == "" {
		return ErrNoBucket
	}
	req, err := http.NewRequest("DELETE", c.bucket+"/"+filename, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 204:
		return nil
	}
	return statusErr(resp)
}

// deleteDepositionFile removes one file by its revision-scoped id.
func (c *Client) deleteDepositionFile(id int, fileID string) error {
	return c.doJSON("DELETE", c.depositionURL(id)+"/files/"+fileID, nil, nil, 204)
}

// addFileMultipart POSTs a new file into the deposition's file
// collection.
func (c *Client) addFileMultipart(id int, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, in); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest("POST", c.depositionURL(id)+"/files", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 201:
		return nil
	}
	return statusErr(resp)
}

// DownloadFile fetches the named file from the associated deposition's
// bucket. It is written to dstPath, which must be an existing directory,
// or to the working directory when dstPath is empty. When the deposition
// reports an MD5 for the file the downloaded bytes are verified against
// it, and a corrupt download is removed and reported as
// ErrChecksumMismatch.
func (c *Client) DownloadFile(filename, dstPath string) error {
	if c.depositionID == 0 {
		return ErrNotAssociated
	}
	if c.bucket == "" {
		return ErrNoBucket
	}
	if !ValidateURL(c.bucket) {
		return fmt.Errorf("%s/%s is not a valid URL", c.bucket, filename)
	}
	target := filename
	if dstPath != "" {
		info, err := os.Stat(dstPath)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%s does not exist", dstPath)
		}
		target = filepath.Join(dstPath, filename)
	}
	goal := c.knownMD5(filename)

	req, err := http.NewRequest("GET", c.bucket+"/"+filename, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return statusErr(resp)
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	hw := util.NewMD5Writer(out)
	_, err = io.Copy(hw, resp.Body)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if _, ok := hw.CheckMD5(goal); !ok {
		os.Remove(target)
		return ErrChecksumMismatch
	}
	return nil
}

// knownMD5 returns the deposition's MD5 for filename, if the server
// reports one. Best effort; lookup failures just skip verification.
func (c *Client) knownMD5(filename string) []byte {
	files, err := c.ListFiles()
	if err != nil {
		return nil
	}
	for _, f := range files {
		if f.Filename == filename {
			return util.ParseMD5(f.Checksum)
		}
	}
	return nil
}

// UpdateFile replaces one file of the associated deposition with the
// contents of path. If the deposition is published this opens a new
// draft version first, retargets the session at the draft, and bumps the
// trailing component of the metadata version string. When publish is set
// the draft is published; otherwise the unpublished draft is returned
// and stays associated. A failed step aborts the remaining ones; the
// error names the step, and completed steps are not rolled back.
func (c *Client) UpdateFile(path, filename string, publish bool) (*Deposition, error) {
	if c.depositionID == 0 {
		return nil, ErrNotAssociated
	}
	if filename == "" {
		filename = filepath.Base(path)
	}

	published, err := c.IsPublished()
	if err != nil {
		return nil, errors.Wrap(err, "check publication state")
	}
	draftID := c.depositionID
	if published {
		draft, err := c.NewVersion()
		if err != nil {
			return nil, errors.Wrap(err, "new version")
		}
		draftID = draft.ID
	}

	files, err := c.DepositionFiles(draftID)
	if err != nil {
		return nil, errors.Wrap(err, "list files")
	}
	for _, f := range files {
		if f.Filename != filename {
			continue
		}
		if err := c.deleteDepositionFile(draftID, f.ID); err != nil {
			return nil, errors.Wrap(err, "delete old file")
		}
	}

	if err := c.addFileMultipart(draftID, path, filename); err != nil {
		return nil, errors.Wrap(err, "upload file")
	}

	if published {
		meta, err := c.GetMetadata(draftID)
		if err != nil {
			return nil, errors.Wrap(err, "fetch metadata")
		}
		version, _ := meta["version"].(string)
		if version == "" {
			version = "1.0.0"
		}
		meta["version"] = bumpVersion(version)
		if _, err := c.putMetadata(draftID, meta); err != nil {
			return nil, errors.Wrap(err, "update metadata")
		}
	}

	if publish {
		dep, err := c.Publish()
		return dep, errors.Wrap(err, "publish")
	}
	return c.GetDeposition(draftID)
}

// bumpVersion increments the trailing numeric component of a dotted
// version string. A non-numeric tail is left unchanged.
func bumpVersion(version string) string {
	parts := strings.Split(version, ".")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return version
	}
	parts[len(parts)-1] = strconv.Itoa(n + 1)
	return strings.Join(parts, ".")
}

// UploadZip bundles sourceDir into a zip archive, uploads it, and
// removes the local archive. The outputFile defaults to the directory's
// base name plus ".zip"; any other extension is rejected, as is an
// outputFile that already exists. Cleanup is unconditional once the
// archive was built.
func (c *Client) UploadZip(sourceDir, outputFile string, publish bool) error {
	return c.uploadArchive(sourceDir, outputFile, ".zip", publish)
}

// UploadTar is UploadZip for ".tar.gz" archives.
func (c *Client) UploadTar(sourceDir, outputFile string, publish bool) error {
	return c.uploadArchive(sourceDir, outputFile, ".tar.gz", publish)
}

func (c *Client) uploadArchive(sourceDir, outputFile, ext string, publish bool) error {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s does not exist", sourceDir)
	}
	if outputFile == "" {
		outputFile = filepath.Base(filepath.Clean(sourceDir)) + ext
	} else {
		switch suffixes(outputFile) {
		case ext:
		case "":
			outputFile += ext
		default:
			return fmt.Errorf("extension of %s must be %s", outputFile, ext)
		}
	}
	if _, err := os.Stat(outputFile); err == nil {
		return fmt.Errorf("%s already exists, please change the name", outputFile)
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if ext == ".zip" {
		_, err = archive.CreateZip(outputFile, sourceDir)
	} else {
		_, err = archive.CreateTarGz(outputFile, sourceDir)
	}
	if err != nil {
		return err
	}

	uploadErr := c.UploadFile(outputFile, "", publish)
	rmErr := os.Remove(outputFile)
	if uploadErr != nil {
		return uploadErr
	}
	return rmErr
}

// suffixes returns the full extension chain of the path's base name,
// e.g. ".tar.gz" for "data.tar.gz" and "" for "data".
func suffixes(path string) string {
	base := filepath.Base(path)
	i := strings.Index(base, ".")
	if i < 0 {
		return ""
	}
	return base[i:]
}

// Update opens a new draft version of the associated deposition and
// uploads source into it: plain files go through UploadFile, directories
// are archived first. The archive kind follows outputFile's extension,
// defaulting to zip.
func (c *Client) Update(source, outputFile string, publish bool) error {
	if _, err := c.NewVersion(); err != nil {
		return errors.Wrap(err, "new version")
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%s does not exist", source)
	}
	if !info.IsDir() {
		return c.UploadFile(source, "", publish)
	}
	ext := strings.ToLower(suffixes(outputFile))
	switch {
	case outputFile == "", strings.Contains(ext, ".zip"):
		return c.UploadZip(source, outputFile, publish)
	case strings.Contains(ext, ".tar.gz"):
		return c.UploadTar(source, outputFile, publish)
	}
	return fmt.Errorf("cannot tell the archive type from %s, use .zip or .tar.gz", outputFile)
}
