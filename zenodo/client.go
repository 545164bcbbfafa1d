// Package zenodo provides a client for the Zenodo research data
// repository's REST API. It can create, inspect, update, publish, and
// delete depositions, manage their metadata, and move files in and out
// of a deposition's bucket storage.
//
// A Client keeps an optional "associated" deposition. Operations that
// take a deposition id of 0 apply to the associated one. Construct a
// Client with New, or directly when pointing at a nonstandard host:
//
//	c := &zenodo.Client{HostURL: "https://sandbox.zenodo.org/api", Sandbox: true, Token: tok}
//	err := c.SetProject(12345)
package zenodo

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
)

// The two Zenodo installations.
const (
	ProductionAPI = "https://zenodo.org/api"
	SandboxAPI    = "https://sandbox.zenodo.org/api"
)

// A Client represents a connection to one Zenodo installation. The zero
// value is not usable; at least HostURL must be set. It can be shared
// between multiple goroutines so long as no goroutine changes the
// associated deposition.
type Client struct {
	// HostURL is the base URL of the Zenodo API, without a trailing
	// slash, e.g. "https://zenodo.org/api".
	HostURL string

	// Sandbox selects the sandbox DOI pattern and the sandbox key in
	// token files.
	Sandbox bool

	// Token is the bearer credential added to every request. It may be
	// empty, in which case requests are unauthenticated and the deposit
	// API will refuse them.
	Token string

	// HTTPClient is used for all requests when set. Otherwise a shared
	// client with a long timeout is used.
	HTTPClient *http.Client

	// the associated deposition. depositionID == 0 means none.
	depositionID int
	conceptID    string
	title        string
	bucket       string
}

// New returns a Client for either the production or the sandbox Zenodo
// installation. If token is empty, it is resolved through a
// FileTokenSource reading the default token file.
func New(sandbox bool, token string) *Client {
	if token == "" {
		return NewWithTokenSource(sandbox, &FileTokenSource{})
	}
	return NewWithTokenSource(sandbox, StaticToken(token))
}

// NewWithTokenSource is like New but resolves the credential through ts.
// A resolution failure is logged and leaves the client unauthenticated.
func NewWithTokenSource(sandbox bool, ts TokenSource) *Client {
	c := &Client{HostURL: ProductionAPI, Sandbox: sandbox}
	if sandbox {
		c.HostURL = SandboxAPI
	}
	token, err := ts.Token(sandbox)
	if err != nil {
		log.Println("zenodo: no token:", err)
	}
	c.Token = token
	return c
}

// DepositionID returns the id of the associated deposition, or 0.
func (c *Client) DepositionID() int { return c.depositionID }

// ConceptID returns the concept id of the associated deposition, or "".
func (c *Client) ConceptID() string { return c.conceptID }

// Title returns the title of the associated deposition, or "".
func (c *Client) Title() string { return c.title }

// Bucket returns the file storage URL of the associated deposition, or "".
func (c *Client) Bucket() string { return c.bucket }

// Associated reports whether a deposition is currently associated.
func (c *Client) Associated() bool { return c.depositionID != 0 }

// associate points the session at dep.
func (c *Client) associate(dep *Deposition) {
	c.depositionID = dep.ID
	c.conceptID = dep.ConceptRecID
	c.title = dep.Title
	c.bucket = dep.Links.Bucket
}

// resolveID maps the 0 placeholder to the associated deposition.
func (c *Client) resolveID(id int) (int, error) {
	if id == 0 {
		id = c.depositionID
	}
	if id == 0 {
		return 0, ErrNotAssociated
	}
	return id, nil
}

func (c *Client) depositionURL(id int) string {
	return c.HostURL + "/deposit/depositions/" + strconv.Itoa(id)
}

var defaultClient = &http.Client{
	Timeout: 10 * time.Minute, // arbitrary
}

// do performs an http request, adding the bearer token. The timeout on
// the default client is just there so we don't hang indefinitely should
// the server never close the connection.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Add("Authorization", "Bearer "+c.Token)
	}
	client := c.HTTPClient
	if client == nil {
		client = defaultClient
	}
	return client.Do(req)
}

// doJasonGet requests path, relative to HostURL, and parses the response
// body for loosely shaped payloads.
func (c *Client) doJasonGet(path string) (*jason.Object, error) {
	req, err := http.NewRequest("GET", c.HostURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, statusErr(resp)
	}
	return jason.NewObjectFromReader(resp.Body)
}

// doGetJSON requests rawurl and decodes a 200 response into out.
func (c *Client) doGetJSON(rawurl string, out interface{}) error {
	return c.doJSON("GET", rawurl, nil, out, 200)
}

// doJSON sends a request with an optional JSON body and decodes the
// response into out when out is non-nil. The response status must be one
// of expect.
func (c *Client) doJSON(method, rawurl string, body interface{}, out interface{}, expect ...int) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, rawurl, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	for _, code := range expect {
		if resp.StatusCode != code {
			continue
		}
		if out == nil {
			return nil
		}
		return decodeJSON(resp.Body, out)
	}
	return statusErr(resp)
}

// decodeJSON decodes a response body, mapping parse failures to
// ErrBadResponse so callers can tell them from status errors.
func decodeJSON(r io.Reader, out interface{}) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		log.Println("zenodo: decoding response:", err)
		return ErrBadResponse
	}
	return nil
}

// nextLink extracts the rel="next" target from a Link header, or returns
// "" if there is none.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		pieces := strings.Split(part, ";")
		if len(pieces) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(pieces[0]), "<>")
		for _, param := range pieces[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

// idFromURL returns the trailing path element of rawurl as an integer,
// or 0 if it is not a number.
func idFromURL(rawurl string) int {
	i := strings.LastIndex(rawurl, "/")
	n, err := strconv.Atoi(rawurl[i+1:])
	if err != nil {
		return 0
	}
	return n
}
