package zenodo

import (
	"strconv"
	"strings"
	"testing"
)

func TestIsDOI(t *testing.T) {
	var table = []struct {
		sandbox bool
		doi     string
		output  bool
	}{
		{true, "10.5072/zenodo.1", true},
		{true, "10.5072/zenodo.4321", true},
		{true, "10.5281/zenodo.4321", false},
		{true, "10.5072/zenodo.", false},
		{true, "x10.5072/zenodo.5", false},
		{true, "10.5072/zenodo.5x", false},
		{false, "10.5281/zenodo.4321", true},
		{false, "10.5072/zenodo.4321", false},
		{false, "", false},
	}
	for _, tab := range table {
		c := &Client{Sandbox: tab.sandbox}
		out := c.IsDOI(tab.doi)
		if out != tab.output {
			t.Errorf("Received %v for %q (sandbox %v), expected %v",
				out, tab.doi, tab.sandbox, tab.output)
		}
	}
}

func TestRecordIDFromDOI(t *testing.T) {
	c := &Client{Sandbox: true}
	id, err := c.RecordIDFromDOI("10.5072/zenodo.4321")
	if err != nil {
		t.Fatal(err)
	}
	if id != 4321 {
		t.Errorf("Received %d, expected 4321", id)
	}

	_, err = c.RecordIDFromDOI("10.5281/zenodo.4321")
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("Received %v, expected a pattern error", err)
	}
}

func TestURLsFromDOI(t *testing.T) {
	c, z, _ := newTestClient(t)
	id := z.Seed("With Files", true, map[string][]byte{
		"a.txt": []byte("aa"),
		"b.csv": []byte("bb"),
	})
	doi := "10.5072/zenodo." + strconv.Itoa(id)

	urls, err := c.URLsFromDOI(doi)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 {
		t.Fatalf("Received %d urls, expected 2", len(urls))
	}
	found := make(map[string]bool)
	for _, u := range urls {
		if !strings.Contains(u, "/api/files/") {
			t.Errorf("URL %q does not point into a bucket", u)
		}
		found[u[strings.LastIndex(u, "/")+1:]] = true
	}
	if !found["a.txt"] || !found["b.csv"] {
		t.Errorf("Received %v, expected urls for a.txt and b.csv", urls)
	}
}

func TestGetRecord(t *testing.T) {
	c, z, _ := newTestClient(t)
	id := z.Seed("Public Data", true, map[string][]byte{"a.txt": []byte("aa")})

	rec, err := c.GetRecord(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != id || rec.Title != "Public Data" {
		t.Errorf("Received %d %q, expected %d Public Data", rec.ID, rec.Title, id)
	}
	if rec.DOI != "10.5072/zenodo."+strconv.Itoa(id) {
		t.Errorf("Received DOI %q, expected one for record %d", rec.DOI, id)
	}
	if len(rec.Files) != 1 || rec.Files[0].Key != "a.txt" {
		t.Errorf("Received %v, expected just a.txt", rec.Files)
	}
	if !strings.HasPrefix(rec.Files[0].Checksum, "md5:") {
		t.Errorf("Received checksum %q, expected an md5: prefix", rec.Files[0].Checksum)
	}

	// drafts are not records
	draft := z.Seed("Hidden Draft", false, nil)
	_, err = c.GetRecord(draft)
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}
}

func TestDepositionIDsByConcept(t *testing.T) {
	c, z, _ := newTestClient(t)
	id1 := z.Seed("Chain", true, nil)
	id2 := z.SeedNewVersion(id1, true)
	id3 := z.SeedNewVersion(id2, true)

	dep, err := c.GetDeposition(id1)
	if err != nil {
		t.Fatal(err)
	}
	concept := dep.ConceptRecID

	ids, err := c.DepositionIDsByConcept(concept, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != id1 || ids[1] != id2 || ids[2] != id3 {
		t.Errorf("Received %v, expected [%d %d %d]", ids, id1, id2, id3)
	}

	ids, err = c.DepositionIDsByConcept(concept, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id3 {
		t.Errorf("Received %v, expected just the latest %d", ids, id3)
	}
}

func TestLastDepositionID(t *testing.T) {
	c, z, _ := newTestClient(t)
	id1 := z.Seed("Chain", true, nil)
	id2 := z.SeedNewVersion(id1, true)

	dep, err := c.GetDeposition(id1)
	if err != nil {
		t.Fatal(err)
	}

	last, err := c.LastDepositionID(dep.ConceptRecID)
	if err != nil {
		t.Fatal(err)
	}
	if last != id2 {
		t.Errorf("Received %d, expected %d", last, id2)
	}

	_, err = c.LastDepositionID("999999")
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}
}

func TestSearchCommunities(t *testing.T) {
	c, z, _ := newTestClient(t)
	z.AddCommunity("open-physics", "Open Physics Papers")
	z.AddCommunity("biology", "Biology Commons")

	all, err := c.SearchCommunities("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("Received %d communities, expected 2", len(all))
	}

	hits, err := c.SearchCommunities("papers")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "open-physics" {
		t.Fatalf("Received %v, expected open-physics", hits)
	}
	if hits[0].Title != "Open Physics Papers" {
		t.Errorf("Received title %q, expected Open Physics Papers", hits[0].Title)
	}

	none, err := c.SearchCommunities("zzz")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Received %v, expected no matches", none)
	}
}
