package zenodo

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	productionDOI = regexp.MustCompile(`^10\.5281/zenodo\.\d+$`)
	sandboxDOI    = regexp.MustCompile(`^10\.5072/zenodo\.\d+$`)
)

func (c *Client) doiPattern() *regexp.Regexp {
	if c.Sandbox {
		return sandboxDOI
	}
	return productionDOI
}

// IsDOI reports whether s is a Zenodo DOI for the client's target
// server. Sandbox and production prefixes are distinct.
func (c *Client) IsDOI(s string) bool {
	return c.doiPattern().MatchString(s)
}

// RecordIDFromDOI extracts the numeric record id from a Zenodo DOI.
func (c *Client) RecordIDFromDOI(doi string) (int, error) {
	if !c.IsDOI(doi) {
		return 0, fmt.Errorf("%s does not match %s", doi, c.doiPattern())
	}
	i := strings.LastIndex(doi, ".")
	return strconv.Atoi(doi[i+1:])
}

// URLsFromDOI returns the download URLs of every file in the record the
// DOI resolves to.
func (c *Client) URLsFromDOI(doi string) ([]string, error) {
	id, err := c.RecordIDFromDOI(doi)
	if err != nil {
		return nil, err
	}
	obj, err := c.doJasonGet("/records/" + strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	files, err := obj.GetObjectArray("files")
	if err != nil {
		return nil, ErrBadResponse
	}
	var urls []string
	for _, f := range files {
		u, err := f.GetString("links", "self")
		if err != nil {
			return nil, ErrBadResponse
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// GetRecord fetches a published record.
func (c *Client) GetRecord(id int) (*Record, error) {
	var rec Record
	err := c.doGetJSON(c.HostURL+"/records/"+strconv.Itoa(id), &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DepositionIDsByConcept returns the deposition ids sharing the given
// concept id, oldest version first. With all false only the latest
// published version is returned.
func (c *Client) DepositionIDsByConcept(conceptID string, all bool) ([]int, error) {
	v := url.Values{}
	v.Set("q", "conceptrecid:"+conceptID)
	v.Set("size", "100")
	v.Set("sort", "version")
	if all {
		v.Set("all_versions", "true")
	}
	obj, err := c.doJasonGet("/records?" + v.Encode())
	if err != nil {
		return nil, err
	}
	hits, err := obj.GetObjectArray("hits", "hits")
	if err != nil {
		return nil, ErrBadResponse
	}
	var ids []int
	for _, hit := range hits {
		id, err := hit.GetInt64("id")
		if err != nil {
			return nil, ErrBadResponse
		}
		ids = append(ids, int(id))
	}
	return ids, nil
}

// LastDepositionID returns the most recent published deposition id for
// the given concept id.
func (c *Client) LastDepositionID(conceptID string) (int, error) {
	ids, err := c.DepositionIDsByConcept(conceptID, false)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	return ids[0], nil
}

// SearchCommunities returns the communities matching the query, or all
// of them when the query is empty.
func (c *Client) SearchCommunities(query string) ([]Community, error) {
	path := "/communities"
	if query != "" {
		v := url.Values{}
		v.Set("q", query)
		path += "?" + v.Encode()
	}
	obj, err := c.doJasonGet(path)
	if err != nil {
		return nil, err
	}
	hits, err := obj.GetObjectArray("hits", "hits")
	if err != nil {
		return nil, ErrBadResponse
	}
	var communities []Community
	for _, hit := range hits {
		id, err := hit.GetString("id")
		if err != nil {
			return nil, ErrBadResponse
		}
		title, err := hit.GetString("title")
		if err != nil {
			title = ""
		}
		communities = append(communities, Community{ID: id, Title: title})
	}
	return communities, nil
}
