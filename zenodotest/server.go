// Package zenodotest provides an in-memory fake of the Zenodo REST API
// for use in tests. It implements the subset of the API this module
// talks to: the deposition collection with its actions, bucket file
// storage, and the public record and community searches. Wrap a Server's
// Handler in an httptest.Server and point a client at it.
package zenodotest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
)

// DOIs are minted with the sandbox prefix.
const doiPrefix = "10.5072/zenodo."

// A Server holds the state behind the fake API. Configure the public
// fields before serving requests. The zero value works; NewServer is a
// convenience for the common case.
type Server struct {
	// Token is the bearer token required on the deposit routes. Empty
	// means no authentication.
	Token string

	// MaxPage caps the page size of deposition lists, forcing clients
	// that ask for large pages to follow Link headers.
	MaxPage int

	m           sync.Mutex
	nextID      int
	nextFileID  int
	depositions map[int]*deposition
	buckets     map[string]map[string][]byte
	communities []community
}

type deposition struct {
	id        int
	conceptID int
	bucket    string
	doi       string
	submitted bool
	editing   bool
	retired   bool
	metadata  map[string]interface{}
	files     []*depositionFile
}

type depositionFile struct {
	id       string
	name     string
	checksum string // frozen by TamperFile, otherwise computed
}

type community struct {
	id    string
	title string
}

// NewServer returns an empty Server requiring the given token.
func NewServer(token string) *Server {
	return &Server{
		Token:       token,
		nextID:      100,
		nextFileID:  1,
		depositions: make(map[int]*deposition),
		buckets:     make(map[string]map[string][]byte),
	}
}

// Handler returns the route table as an http.Handler.
func (s *Server) Handler() http.Handler {
	var routes = []struct {
		method  string
		route   string
		open    bool // true means no token is needed
		handler httprouter.Handle
	}{
		{"GET", "/api/deposit/depositions", false, s.listDepositions},
		{"POST", "/api/deposit/depositions", false, s.createDeposition},
		{"GET", "/api/deposit/depositions/:id", false, s.getDeposition},
		{"PUT", "/api/deposit/depositions/:id", false, s.putDeposition},
		{"DELETE", "/api/deposit/depositions/:id", false, s.deleteDeposition},
		{"GET", "/api/deposit/depositions/:id/files", false, s.listFiles},
		{"POST", "/api/deposit/depositions/:id/files", false, s.addFile},
		{"DELETE", "/api/deposit/depositions/:id/files/:fileid", false, s.deleteFile},
		{"POST", "/api/deposit/depositions/:id/actions/:action", false, s.depositionAction},
		{"GET", "/api/files/:bucket/:filename", true, s.getBucketFile},
		{"PUT", "/api/files/:bucket/:filename", false, s.putBucketFile},
		{"DELETE", "/api/files/:bucket/:filename", false, s.deleteBucketFile},

		// the public, read-only routes
		{"GET", "/api/records", true, s.listRecords},
		{"GET", "/api/records/:id", true, s.getRecord},
		{"GET", "/api/communities", true, s.listCommunities},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			logWrapper(s.authWrapper(route.handler, route.open)))
	}
	return r
}

// authWrapper returns a Handler which first verifies the bearer token,
// unless the route is open or no token is configured.
func (s *Server) authWrapper(handler httprouter.Handle, open bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !open && s.Token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.Token {
				w.WriteHeader(401)
				fmt.Fprintln(w, "Forbidden")
				return
			}
		}
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same thing,
// after first logging the request URL.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.URL)
		handler(w, r, ps)
	}
}

//
// Deposition routes
//

func (s *Server) createDeposition(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	var body struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	d := s.newDeposition()
	if body.Metadata != nil {
		d.metadata = body.Metadata
	}
	writeJSON(w, 201, s.renderDeposition(r, d))
}

func (s *Server) getDeposition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	writeJSON(w, 200, s.renderDeposition(r, d))
}

func (s *Server) putDeposition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	if d.submitted && !d.editing {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	var body struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Metadata == nil {
		errorJSON(w, 400, "Bad metadata")
		return
	}
	d.metadata = body.Metadata
	writeJSON(w, 200, s.renderDeposition(r, d))
}

func (s *Server) deleteDeposition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	if d.submitted {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	delete(s.depositions, d.id)
	delete(s.buckets, d.bucket)
	w.WriteHeader(204)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	writeJSON(w, 200, s.renderFiles(r, d))
}

func (s *Server) addFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	if d.submitted {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		errorJSON(w, 400, "Bad multipart body")
		return
	}
	in, header, err := r.FormFile("file")
	if err != nil {
		errorJSON(w, 400, "Missing file part")
		return
	}
	data, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		errorJSON(w, 500, err.Error())
		return
	}
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	f := s.storeFile(d, name, data)
	writeJSON(w, 201, s.renderFile(r, d, f))
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	if d.submitted {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	fileid := ps.ByName("fileid")
	for i, f := range d.files {
		if f.id != fileid {
			continue
		}
		d.files = append(d.files[:i], d.files[i+1:]...)
		delete(s.buckets[d.bucket], f.name)
		w.WriteHeader(204)
		return
	}
	errorJSON(w, 404, "File not found")
}

func (s *Server) depositionAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil {
		errorJSON(w, 404, "Deposition not found")
		return
	}
	switch ps.ByName("action") {
	case "publish":
		if d.submitted {
			errorJSON(w, 400, "Deposition is already published")
			return
		}
		s.publish(d)
		writeJSON(w, 202, s.renderDeposition(r, d))
	case "newversion":
		if !d.submitted {
			errorJSON(w, 400, "Deposition is not published")
			return
		}
		if s.draftOf(d.conceptID) == nil {
			s.cloneAsDraft(d)
		}
		// the response is the original deposition, whose links now
		// carry latest_draft
		writeJSON(w, 201, s.renderDeposition(r, d))
	case "edit":
		if !d.submitted {
			errorJSON(w, 400, "Deposition is not published")
			return
		}
		d.editing = true
		writeJSON(w, 201, s.renderDeposition(r, d))
	case "retire":
		d.retired = true
		writeJSON(w, 201, s.renderDeposition(r, d))
	default:
		errorJSON(w, 404, "Unknown action")
	}
}

//
// Bucket routes
//

func (s *Server) getBucketFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	files := s.buckets[ps.ByName("bucket")]
	data, ok := files[ps.ByName("filename")]
	if !ok {
		errorJSON(w, 404, "File not found")
		return
	}
	w.Write(data)
}

func (s *Server) putBucketFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	bucket := ps.ByName("bucket")
	name := ps.ByName("filename")
	if s.buckets[bucket] == nil {
		errorJSON(w, 404, "Bucket not found")
		return
	}
	owner := s.bucketOwner(bucket)
	if owner != nil && owner.submitted {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		errorJSON(w, 500, err.Error())
		return
	}
	if owner != nil {
		s.storeFile(owner, name, data)
	} else {
		s.buckets[bucket][name] = data
	}
	writeJSON(w, 201, map[string]interface{}{
		"key":      name,
		"size":     len(data),
		"checksum": "md5:" + md5hex(data),
		"links": map[string]interface{}{
			"self": base(r) + "/api/files/" + bucket + "/" + name,
		},
	})
}

func (s *Server) deleteBucketFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	bucket := ps.ByName("bucket")
	name := ps.ByName("filename")
	files := s.buckets[bucket]
	if _, ok := files[name]; !ok {
		errorJSON(w, 404, "File not found")
		return
	}
	owner := s.bucketOwner(bucket)
	if owner != nil && owner.submitted {
		errorJSON(w, 403, "Deposition is published")
		return
	}
	delete(files, name)
	if owner != nil {
		for i, f := range owner.files {
			if f.name == name {
				owner.files = append(owner.files[:i], owner.files[i+1:]...)
				break
			}
		}
	}
	w.WriteHeader(204)
}

//
// Public routes
//

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.find(ps)
	if d == nil || !d.submitted {
		errorJSON(w, 404, "Record not found")
		return
	}
	writeJSON(w, 200, s.renderRecord(r, d))
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	q := r.URL.Query()
	concept := 0
	if query := q.Get("q"); strings.HasPrefix(query, "conceptrecid:") {
		concept, _ = strconv.Atoi(strings.TrimPrefix(query, "conceptrecid:"))
	}
	var deps []*deposition
	for _, d := range s.depositions {
		if !d.submitted {
			continue
		}
		if concept != 0 && d.conceptID != concept {
			continue
		}
		deps = append(deps, d)
	}
	if q.Get("all_versions") != "true" {
		deps = latestPerConcept(deps)
	}
	sortByID(deps, q.Get("sort") == "mostrecent")
	if size := atoiDefault(q.Get("size"), 10); len(deps) > size {
		deps = deps[:size]
	}
	hits := []interface{}{}
	for _, d := range deps {
		hits = append(hits, s.renderRecord(r, d))
	}
	writeJSON(w, 200, map[string]interface{}{
		"hits": map[string]interface{}{"hits": hits},
	})
}

func (s *Server) listCommunities(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	query := strings.ToLower(r.URL.Query().Get("q"))
	hits := []interface{}{}
	for _, c := range s.communities {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.id), query) &&
			!strings.Contains(strings.ToLower(c.title), query) {
			continue
		}
		hits = append(hits, map[string]interface{}{
			"id":    c.id,
			"title": c.title,
		})
	}
	writeJSON(w, 200, map[string]interface{}{
		"hits": map[string]interface{}{"hits": hits},
	})
}

func (s *Server) listDepositions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	q := r.URL.Query()
	var deps []*deposition
	for _, d := range s.depositions {
		if query := q.Get("q"); query != "" {
			title, _ := d.metadata["title"].(string)
			if !strings.Contains(strings.ToLower(title), strings.ToLower(query)) {
				continue
			}
		}
		deps = append(deps, d)
	}
	if q.Get("all_versions") != "true" {
		deps = latestPerConcept(deps)
	}
	sortByID(deps, q.Get("sort") == "mostrecent")

	size := atoiDefault(q.Get("size"), 10)
	if s.MaxPage > 0 && size > s.MaxPage {
		size = s.MaxPage
	}
	page := atoiDefault(q.Get("page"), 1)
	start := (page - 1) * size
	if start > len(deps) {
		start = len(deps)
	}
	end := start + size
	if end > len(deps) {
		end = len(deps)
	}
	if end < len(deps) {
		w.Header().Set("Link", nextPageLink(r, page+1))
	}
	result := []interface{}{}
	for _, d := range deps[start:end] {
		result = append(result, s.renderDeposition(r, d))
	}
	writeJSON(w, 200, result)
}

//
// Seeding helpers for tests
//

// Seed creates a deposition with the given title and files and returns
// its id.
func (s *Server) Seed(title string, published bool, files map[string][]byte) int {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.newDeposition()
	d.metadata["title"] = title
	for name, data := range files {
		s.storeFile(d, name, data)
	}
	if published {
		s.publish(d)
	}
	return d.id
}

// SeedNewVersion opens a new version of the given deposition and
// returns the new id. With published set the new version is published
// right away.
func (s *Server) SeedNewVersion(id int, published bool) int {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.depositions[id]
	if d == nil {
		return 0
	}
	draft := s.draftOf(d.conceptID)
	if draft == nil {
		draft = s.cloneAsDraft(d)
	}
	if published {
		s.publish(draft)
	}
	return draft.id
}

// AddCommunity registers a community for the search endpoint.
func (s *Server) AddCommunity(id, title string) {
	s.m.Lock()
	defer s.m.Unlock()
	s.communities = append(s.communities, community{id: id, title: title})
}

// TamperFile replaces the stored bytes of a deposition file while
// keeping the previously reported checksum, simulating a corrupted
// download.
func (s *Server) TamperFile(id int, name string, data []byte) {
	s.m.Lock()
	defer s.m.Unlock()
	d := s.depositions[id]
	if d == nil {
		return
	}
	for _, f := range d.files {
		if f.name == name {
			f.checksum = md5hex(s.buckets[d.bucket][name])
			s.buckets[d.bucket][name] = data
			return
		}
	}
}

//
// Internal state handling. The server mutex must be held.
//

func (s *Server) newDeposition() *deposition {
	d := &deposition{
		id:        s.nextID + 1,
		conceptID: s.nextID,
		bucket:    fmt.Sprintf("bkt-%d", s.nextID+1),
		metadata:  make(map[string]interface{}),
	}
	s.nextID += 2
	s.depositions[d.id] = d
	s.buckets[d.bucket] = make(map[string][]byte)
	return d
}

func (s *Server) cloneAsDraft(d *deposition) *deposition {
	draft := &deposition{
		id:        s.nextID,
		conceptID: d.conceptID,
		bucket:    fmt.Sprintf("bkt-%d", s.nextID),
		metadata:  make(map[string]interface{}),
	}
	s.nextID++
	for k, v := range d.metadata {
		draft.metadata[k] = v
	}
	s.depositions[draft.id] = draft
	s.buckets[draft.bucket] = make(map[string][]byte)
	for _, f := range d.files {
		s.buckets[draft.bucket][f.name] = s.buckets[d.bucket][f.name]
		draft.files = append(draft.files, &depositionFile{id: s.fileID(), name: f.name})
	}
	return draft
}

func (s *Server) publish(d *deposition) {
	d.submitted = true
	d.editing = false
	d.doi = doiPrefix + strconv.Itoa(d.id)
}

func (s *Server) storeFile(d *deposition, name string, data []byte) *depositionFile {
	s.buckets[d.bucket][name] = data
	for _, f := range d.files {
		if f.name == name {
			f.checksum = ""
			return f
		}
	}
	f := &depositionFile{id: s.fileID(), name: name}
	d.files = append(d.files, f)
	return f
}

func (s *Server) fileID() string {
	id := fmt.Sprintf("file-%d", s.nextFileID)
	s.nextFileID++
	return id
}

func (s *Server) find(ps httprouter.Params) *deposition {
	id, err := strconv.Atoi(ps.ByName("id"))
	if err != nil {
		return nil
	}
	return s.depositions[id]
}

func (s *Server) bucketOwner(bucket string) *deposition {
	for _, d := range s.depositions {
		if d.bucket == bucket {
			return d
		}
	}
	return nil
}

func (s *Server) draftOf(conceptID int) *deposition {
	for _, d := range s.depositions {
		if d.conceptID == conceptID && !d.submitted {
			return d
		}
	}
	return nil
}

func (s *Server) latestPublished(conceptID int) int {
	latest := 0
	for _, d := range s.depositions {
		if d.conceptID == conceptID && d.submitted && d.id > latest {
			latest = d.id
		}
	}
	return latest
}

func latestPerConcept(deps []*deposition) []*deposition {
	best := make(map[int]*deposition)
	for _, d := range deps {
		if b := best[d.conceptID]; b == nil || d.id > b.id {
			best[d.conceptID] = d
		}
	}
	var out []*deposition
	for _, d := range best {
		out = append(out, d)
	}
	return out
}

func sortByID(deps []*deposition, mostRecentFirst bool) {
	sort.Slice(deps, func(i, j int) bool {
		if mostRecentFirst {
			return deps[i].id > deps[j].id
		}
		return deps[i].id < deps[j].id
	})
}

//
// Rendering. The server mutex must be held.
//

func (s *Server) renderDeposition(r *http.Request, d *deposition) map[string]interface{} {
	self := base(r) + "/api/deposit/depositions/" + strconv.Itoa(d.id)
	links := map[string]interface{}{
		"self":       self,
		"files":      self + "/files",
		"bucket":     base(r) + "/api/files/" + d.bucket,
		"html":       base(r) + "/deposit/" + strconv.Itoa(d.id),
		"discard":    self + "/actions/discard",
		"edit":       self + "/actions/edit",
		"newversion": self + "/actions/newversion",
	}
	if !d.submitted {
		links["publish"] = self + "/actions/publish"
	}
	if latest := s.latestPublished(d.conceptID); latest != 0 {
		links["latest"] = base(r) + "/api/records/" + strconv.Itoa(latest)
	}
	if draft := s.draftOf(d.conceptID); draft != nil && draft.id != d.id {
		links["latest_draft"] = base(r) + "/api/deposit/depositions/" + strconv.Itoa(draft.id)
	}
	title, _ := d.metadata["title"].(string)
	return map[string]interface{}{
		"id":           d.id,
		"conceptrecid": strconv.Itoa(d.conceptID),
		"doi":          d.doi,
		"title":        title,
		"state":        d.state(),
		"submitted":    d.submitted,
		"metadata":     d.metadata,
		"links":        links,
		"files":        s.renderFiles(r, d),
	}
}

func (d *deposition) state() string {
	switch {
	case d.retired:
		return "retired"
	case d.submitted && d.editing:
		return "inprogress"
	case d.submitted:
		return "done"
	}
	return "unsubmitted"
}

func (s *Server) renderFiles(r *http.Request, d *deposition) []interface{} {
	files := []interface{}{}
	for _, f := range d.files {
		files = append(files, s.renderFile(r, d, f))
	}
	return files
}

func (s *Server) renderFile(r *http.Request, d *deposition, f *depositionFile) map[string]interface{} {
	data := s.buckets[d.bucket][f.name]
	checksum := f.checksum
	if checksum == "" {
		checksum = md5hex(data)
	}
	return map[string]interface{}{
		"id":       f.id,
		"filename": f.name,
		"filesize": len(data),
		"checksum": checksum,
		"links": map[string]interface{}{
			"download": base(r) + "/api/files/" + d.bucket + "/" + f.name,
			"self":     base(r) + "/api/deposit/depositions/" + strconv.Itoa(d.id) + "/files/" + f.id,
		},
	}
}

func (s *Server) renderRecord(r *http.Request, d *deposition) map[string]interface{} {
	self := base(r) + "/api/records/" + strconv.Itoa(d.id)
	links := map[string]interface{}{"self": self}
	if latest := s.latestPublished(d.conceptID); latest != 0 {
		links["latest"] = base(r) + "/api/records/" + strconv.Itoa(latest)
		links["latest_html"] = base(r) + "/record/" + strconv.Itoa(latest)
	}
	files := []interface{}{}
	for _, f := range d.files {
		data := s.buckets[d.bucket][f.name]
		files = append(files, map[string]interface{}{
			"key":      f.name,
			"checksum": "md5:" + md5hex(data),
			"links": map[string]interface{}{
				"self": base(r) + "/api/files/" + d.bucket + "/" + f.name,
			},
		})
	}
	title, _ := d.metadata["title"].(string)
	return map[string]interface{}{
		"id":           d.id,
		"conceptrecid": strconv.Itoa(d.conceptID),
		"doi":          d.doi,
		"title":        title,
		"metadata":     d.metadata,
		"links":        links,
		"files":        files,
	}
}

//
// Small helpers
//

func base(r *http.Request) string {
	return "http://" + r.Host
}

func nextPageLink(r *http.Request, page int) string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("<%s%s?%s>; rel=\"next\"", base(r), r.URL.Path, q.Encode())
}

func writeJSON(w http.ResponseWriter, status int, val interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(val)
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"message": message,
		"status":  status,
	})
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
