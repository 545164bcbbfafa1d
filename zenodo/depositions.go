package zenodo

import (
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// GetDeposition returns the deposition with the given id.
func (c *Client) GetDeposition(id int) (*Deposition, error) {
	var dep Deposition
	err := c.doGetJSON(c.depositionURL(id), &dep)
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// CreateProject creates a new deposition and fills in its initial
// metadata. The title is required; uploadType defaults to "other" and
// description to a placeholder. On success the client becomes associated
// with the new deposition. On failure the session is left untouched,
// though a failed metadata step can leave the newly created deposition
// behind on the server.
func (c *Client) CreateProject(title, uploadType, description string) (*Deposition, error) {
	if uploadType == "" {
		log.Printf("zenodo: upload type not set, defaulting to %q, possible choices are %v",
			"other", UploadTypes())
		uploadType = "other"
	}
	var dep Deposition
	err := c.doJSON("POST", c.HostURL+"/deposit/depositions", struct{}{}, &dep, 200, 201)
	if err != nil {
		return nil, errors.Wrap(err, "create deposition")
	}
	updated, err := c.ChangeMetadata(dep.ID, title, uploadType, description, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create metadata")
	}
	dep.Metadata = updated.Metadata
	dep.Title = title
	c.associate(&dep)
	c.title = title
	return &dep, nil
}

// SetProject associates the client with the deposition id. The session
// adopts the deposition's title, bucket, and concept id. On failure the
// session is unchanged.
func (c *Client) SetProject(id int) error {
	dep, err := c.GetDeposition(id)
	if err != nil {
		return err
	}
	c.associate(dep)
	return nil
}

// UnsetProject clears the associated deposition. No request is made.
func (c *Client) UnsetProject() {
	c.depositionID = 0
	c.conceptID = ""
	c.title = ""
	c.bucket = ""
}

// DeleteProject deletes the deposition with the given id, or the
// associated one if id is 0. Only unpublished depositions can be
// deleted; the server refuses otherwise. Deleting the associated
// deposition clears the session.
func (c *Client) DeleteProject(id int) error {
	id, err := c.resolveID(id)
	if err != nil {
		return err
	}
	err = c.doJSON("DELETE", c.depositionURL(id), nil, nil, 204)
	if err != nil {
		return err
	}
	if id == c.depositionID {
		c.UnsetProject()
	}
	return nil
}

// ListOptions selects and orders the depositions returned by
// Depositions. The zero value lists everything in the server's default
// order.
type ListOptions struct {
	Query       string // the q search parameter, e.g. "conceptrecid:123"
	Sort        string // e.g. "mostrecent" or "version"
	Size        int    // page size
	AllVersions bool
}

// Depositions lists the account's depositions, one page's worth.
func (c *Client) Depositions(opts ListOptions) ([]*Deposition, error) {
	v := url.Values{}
	if opts.Query != "" {
		v.Set("q", opts.Query)
	}
	if opts.Sort != "" {
		v.Set("sort", opts.Sort)
	}
	if opts.Size > 0 {
		v.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.AllVersions {
		v.Set("all_versions", "true")
	}
	rawurl := c.HostURL + "/deposit/depositions"
	if len(v) > 0 {
		rawurl += "?" + v.Encode()
	}
	deps, _, err := c.depositionsPage(rawurl)
	return deps, err
}

// AllDepositions lists every deposition of the account, following
// pagination links and keeping only the most recent version of each
// concept. The result has one entry per logical record regardless of how
// many versions it has.
func (c *Client) AllDepositions() ([]*Deposition, error) {
	v := url.Values{}
	v.Set("size", "1000")
	v.Set("sort", "mostrecent")
	v.Set("all_versions", "true")
	rawurl := c.HostURL + "/deposit/depositions?" + v.Encode()

	var all []*Deposition
	seen := make(map[string]bool)
	for rawurl != "" {
		deps, next, err := c.depositionsPage(rawurl)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if seen[dep.ConceptRecID] {
				continue
			}
			seen[dep.ConceptRecID] = true
			all = append(all, dep)
		}
		rawurl = next
	}
	return all, nil
}

// depositionsPage fetches one page of the depositions collection and
// returns the URL of the next page, if any.
func (c *Client) depositionsPage(rawurl string) ([]*Deposition, string, error) {
	req, err := http.NewRequest("GET", rawurl, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, "", statusErr(resp)
	}
	var deps []*Deposition
	if err := decodeJSON(resp.Body, &deps); err != nil {
		return nil, "", err
	}
	return deps, nextLink(resp.Header.Get("Link")), nil
}
