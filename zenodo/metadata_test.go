package zenodo

import (
	"strings"
	"testing"
)

func TestUploadTypes(t *testing.T) {
	types := UploadTypes()
	if len(types) != 10 {
		t.Errorf("Received %d upload types, expected 10", len(types))
	}
	seen := make(map[string]bool)
	for _, typ := range types {
		if typ != strings.ToLower(typ) {
			t.Errorf("Received %q, expected lower case", typ)
		}
		seen[typ] = true
	}
	if !seen["dataset"] || !seen["other"] {
		t.Errorf("Received %v, expected dataset and other to be present", types)
	}
}

func TestMergeMetadata(t *testing.T) {
	current := map[string]interface{}{
		"title": "kept",
		"custom": map[string]interface{}{
			"a": "old-a",
			"b": "old-b",
		},
	}
	updates := map[string]interface{}{
		"custom": map[string]interface{}{
			"b": "new-b",
			"c": "new-c",
		},
		"version": "1.0.0",
	}

	merged := mergeMetadata(current, updates)
	if merged["title"] != "kept" {
		t.Errorf("Received title %v, expected it to be preserved", merged["title"])
	}
	if merged["version"] != "1.0.0" {
		t.Errorf("Received version %v, expected 1.0.0", merged["version"])
	}
	custom := merged["custom"].(map[string]interface{})
	if custom["a"] != "old-a" || custom["b"] != "new-b" || custom["c"] != "new-c" {
		t.Errorf("Received %v, expected a one level merge with updates winning", custom)
	}
}

func TestSetMetadata(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Merge Target", "", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SetMetadata(0, map[string]interface{}{"version": "2.1.0"}); err != nil {
		t.Fatal(err)
	}

	meta, err := c.GetMetadata(0)
	if err != nil {
		t.Fatal(err)
	}
	if meta["version"] != "2.1.0" {
		t.Errorf("Received version %v, expected 2.1.0", meta["version"])
	}
	if meta["title"] != "Merge Target" {
		t.Errorf("Received title %v, expected the existing title to survive", meta["title"])
	}
	if meta["upload_type"] != "other" {
		t.Errorf("Received upload_type %v, expected the existing value to survive", meta["upload_type"])
	}
}

func TestChangeMetadata(t *testing.T) {
	c, _, _ := newTestClient(t)
	if _, err := c.CreateProject("Replace Target", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetMetadata(0, map[string]interface{}{"version": "3.0.0"}); err != nil {
		t.Fatal(err)
	}

	// a full replace drops fields not named
	if _, err := c.ChangeMetadata(0, "New Title", "dataset", "fresh description", nil); err != nil {
		t.Fatal(err)
	}

	meta, err := c.GetMetadata(0)
	if err != nil {
		t.Fatal(err)
	}
	if meta["title"] != "New Title" {
		t.Errorf("Received title %v, expected %q", meta["title"], "New Title")
	}
	if meta["upload_type"] != "dataset" {
		t.Errorf("Received upload_type %v, expected dataset", meta["upload_type"])
	}
	if _, ok := meta["version"]; ok {
		t.Errorf("Received version %v, expected the replace to drop it", meta["version"])
	}
}

func TestGetMetadataUnassociated(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.GetMetadata(0)
	if err != ErrNotAssociated {
		t.Errorf("Received %v, expected %v", err, ErrNotAssociated)
	}
}
