package zenodo

import (
	"strconv"
	"testing"

	"github.com/man74cio/zenodopy/zenodotest"
)

func TestPublish(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("To Publish", "", ""); err != nil {
		t.Fatal(err)
	}
	dep, err := c.Publish()
	if err != nil {
		t.Fatal(err)
	}
	if !dep.Submitted {
		t.Errorf("Deposition %d is not marked submitted", dep.ID)
	}
	if dep.DOI != "10.5072/zenodo."+strconv.Itoa(dep.ID) {
		t.Errorf("Received DOI %q, expected one for deposition %d", dep.DOI, dep.ID)
	}
	published, err := c.IsPublished()
	if err != nil {
		t.Fatal(err)
	}
	if !published {
		t.Errorf("IsPublished is false after publishing")
	}

	// publishing again is a no-op, not an error
	again, err := c.Publish()
	if err != nil {
		t.Fatalf("Received %v, expected the second publish to be a no-op", err)
	}
	if again.ID != dep.ID {
		t.Errorf("Received deposition %d, expected %d", again.ID, dep.ID)
	}
}

func TestPublishNoAssociation(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.Publish()
	if err != ErrNotAssociated {
		t.Errorf("Received %v, expected %v", err, ErrNotAssociated)
	}
}

func TestIsPublishedError(t *testing.T) {
	c, _, es := newTestClient(t)
	if _, err := c.CreateProject("Flaky", "", ""); err != nil {
		t.Fatal(err)
	}
	es.Reset([]zenodotest.Play{{When: 0, Status: 500}})

	_, err := c.IsPublished()
	serr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Received %v, expected a StatusError", err)
	}
	if serr.Code != 500 {
		t.Errorf("Received status %d, expected 500", serr.Code)
	}
}

func TestNewVersion(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Versions", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.UploadFile(writeTestFile(t, t.TempDir(), "data.txt", "v1"), "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	origID := c.DepositionID()
	orig, err := c.GetDeposition(origID)
	if err != nil {
		t.Fatal(err)
	}

	draft, err := c.NewVersion()
	if err != nil {
		t.Fatal(err)
	}
	if draft.ID == origID {
		t.Fatalf("Received the published deposition %d, expected a new draft", draft.ID)
	}
	if draft.Submitted {
		t.Errorf("Draft %d is marked submitted", draft.ID)
	}
	if draft.ConceptRecID != orig.ConceptRecID {
		t.Errorf("Received concept %s, expected %s", draft.ConceptRecID, orig.ConceptRecID)
	}
	if c.DepositionID() != draft.ID {
		t.Errorf("Session has deposition %d, expected the draft %d", c.DepositionID(), draft.ID)
	}

	// the draft carries the same files under fresh ids
	origFiles, err := c.DepositionFiles(origID)
	if err != nil {
		t.Fatal(err)
	}
	draftFiles, err := c.DepositionFiles(draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(origFiles) != 1 || len(draftFiles) != 1 {
		t.Fatalf("Received %d and %d files, expected 1 and 1", len(origFiles), len(draftFiles))
	}
	if origFiles[0].Filename != draftFiles[0].Filename {
		t.Errorf("Received name %s, expected %s", draftFiles[0].Filename, origFiles[0].Filename)
	}
	if origFiles[0].ID == draftFiles[0].ID {
		t.Errorf("Draft file reuses id %s", draftFiles[0].ID)
	}

	// asking the published version again returns the same draft
	if err := c.SetProject(origID); err != nil {
		t.Fatal(err)
	}
	second, err := c.NewVersion()
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != draft.ID {
		t.Errorf("Received draft %d, expected the existing draft %d", second.ID, draft.ID)
	}
}

func TestNewVersionUnpublished(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Unpublished", "", ""); err != nil {
		t.Fatal(err)
	}
	_, err := c.NewVersion()
	serr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Received %v, expected a StatusError", err)
	}
	if serr.Code != 400 {
		t.Errorf("Received status %d, expected 400", serr.Code)
	}
}

func TestEdit(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Locked", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(); err != nil {
		t.Fatal(err)
	}

	_, err := c.SetMetadata(0, map[string]interface{}{"title": "Unlocked"})
	if err != ErrNotAuthorized {
		t.Fatalf("Received %v, expected %v while published", err, ErrNotAuthorized)
	}

	if err := c.Edit(0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetMetadata(0, map[string]interface{}{"title": "Unlocked"}); err != nil {
		t.Fatal(err)
	}
	meta, err := c.GetMetadata(0)
	if err != nil {
		t.Fatal(err)
	}
	if meta["title"] != "Unlocked" {
		t.Errorf("Received title %v, expected Unlocked", meta["title"])
	}
}

func TestEditUnpublished(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Already Editable", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Edit(0); err != nil {
		t.Errorf("Received %v, expected editing a draft to be a no-op", err)
	}
}

func TestRetire(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Old Work", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	if err := c.Retire(0); err != nil {
		t.Fatal(err)
	}
	dep, err := c.GetDeposition(c.DepositionID())
	if err != nil {
		t.Fatal(err)
	}
	if dep.State != "retired" {
		t.Errorf("Received state %q, expected retired", dep.State)
	}
}

func TestLatestRecordID(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Latest", "", ""); err != nil {
		t.Fatal(err)
	}
	origID := c.DepositionID()

	// nothing published yet
	latest, err := c.LatestRecordID(0)
	if err != nil {
		t.Fatal(err)
	}
	if latest != 0 {
		t.Errorf("Received record %d, expected 0 before publishing", latest)
	}

	if _, err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	latest, err = c.LatestRecordID(0)
	if err != nil {
		t.Fatal(err)
	}
	if latest != origID {
		t.Errorf("Received record %d, expected %d", latest, origID)
	}

	draft, err := c.NewVersion()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	latest, err = c.LatestRecordID(origID)
	if err != nil {
		t.Fatal(err)
	}
	if latest != draft.ID {
		t.Errorf("Received record %d, expected the new version %d", latest, draft.ID)
	}
}

func TestConceptIDFromDeposition(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Concept", "", ""); err != nil {
		t.Fatal(err)
	}
	dep, err := c.GetDeposition(c.DepositionID())
	if err != nil {
		t.Fatal(err)
	}
	concept, err := c.ConceptIDFromDeposition(0)
	if err != nil {
		t.Fatal(err)
	}
	if concept == "" || concept != dep.ConceptRecID {
		t.Errorf("Received concept %q, expected %q", concept, dep.ConceptRecID)
	}
}
