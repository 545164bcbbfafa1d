package zenodo

// A Deposition is a Zenodo record, possibly an unpublished draft,
// identified by a numeric id. All versions of one logical record share a
// concept id. Only the fields this client reads are decoded; Metadata is
// kept as a free-form map since Zenodo accepts arbitrary extra fields
// there.
type Deposition struct {
	ID           int                    `json:"id"`
	ConceptRecID string                 `json:"conceptrecid"`
	DOI          string                 `json:"doi"`
	Title        string                 `json:"title"`
	State        string                 `json:"state"`
	Submitted    bool                   `json:"submitted"`
	Metadata     map[string]interface{} `json:"metadata"`
	Links        DepositionLinks        `json:"links"`
	Files        []DepositionFile       `json:"files"`
}

// DepositionLinks holds the server-assigned URLs of a deposition. Which
// links are present depends on the deposition's state; for example only
// drafts carry a publish link, and latest_draft appears once a new
// version has been opened.
type DepositionLinks struct {
	Bucket      string `json:"bucket"`
	Discard     string `json:"discard"`
	Edit        string `json:"edit"`
	Files       string `json:"files"`
	HTML        string `json:"html"`
	Latest      string `json:"latest"`
	LatestDraft string `json:"latest_draft"`
	NewVersion  string `json:"newversion"`
	Publish     string `json:"publish"`
	Self        string `json:"self"`
}

// A DepositionFile describes one file of a deposition revision. The id
// is scoped to that revision; a new draft version assigns new ids.
type DepositionFile struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Filesize int64     `json:"filesize"`
	Checksum string    `json:"checksum"`
	Links    FileLinks `json:"links"`
}

type FileLinks struct {
	Download string `json:"download"`
	Self     string `json:"self"`
}

// A Record is the published, public view of a deposition, readable
// without authentication.
type Record struct {
	ID           int                    `json:"id"`
	ConceptRecID string                 `json:"conceptrecid"`
	DOI          string                 `json:"doi"`
	Title        string                 `json:"title"`
	Metadata     map[string]interface{} `json:"metadata"`
	Links        RecordLinks            `json:"links"`
	Files        []RecordFile           `json:"files"`
}

type RecordLinks struct {
	Latest     string `json:"latest"`
	LatestHTML string `json:"latest_html"`
	Self       string `json:"self"`
}

type RecordFile struct {
	Key      string    `json:"key"`
	Checksum string    `json:"checksum"`
	Links    FileLinks `json:"links"`
}

// A Community is a curated collection of records on Zenodo.
type Community struct {
	ID    string
	Title string
}
