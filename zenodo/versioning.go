package zenodo

import "log"

// IsPublished reports whether the associated deposition has been
// published.
func (c *Client) IsPublished() (bool, error) {
	return c.IsPublishedID(0)
}

// IsPublishedID reports whether the given deposition has been published.
func (c *Client) IsPublishedID(id int) (bool, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return false, err
	}
	dep, err := c.GetDeposition(id)
	if err != nil {
		return false, err
	}
	return dep.Submitted, nil
}

// Publish submits the associated deposition for publication. Publishing
// is permanent; published files cannot be removed or altered, only
// superseded by a new version. Publishing an already-published
// deposition is a no-op.
func (c *Client) Publish() (*Deposition, error) {
	if c.depositionID == 0 {
		return nil, ErrNotAssociated
	}
	dep, err := c.GetDeposition(c.depositionID)
	if err != nil {
		return nil, err
	}
	if dep.Submitted {
		log.Printf("zenodo: deposition %d is already published", dep.ID)
		return dep, nil
	}
	if dep.Links.Publish == "" {
		return nil, ErrNotPublishable
	}
	var result Deposition
	err = c.doJSON("POST", dep.Links.Publish, nil, &result, 200, 201, 202)
	if err != nil {
		return nil, err
	}
	c.associate(&result)
	return &result, nil
}

// NewVersion opens a draft for the next version of the associated
// deposition, which must be published. The draft copies the previous
// version's metadata and files into a new bucket. The session is
// retargeted at the draft.
func (c *Client) NewVersion() (*Deposition, error) {
	if c.depositionID == 0 {
		return nil, ErrNotAssociated
	}
	var original Deposition
	err := c.doJSON("POST", c.depositionURL(c.depositionID)+"/actions/newversion", nil, &original, 200, 201)
	if err != nil {
		return nil, err
	}
	draftID := idFromURL(original.Links.LatestDraft)
	if draftID == 0 {
		return nil, ErrBadResponse
	}
	draft, err := c.GetDeposition(draftID)
	if err != nil {
		return nil, err
	}
	c.associate(draft)
	return draft, nil
}

// Edit unlocks the metadata of a published deposition for changes.
// Unpublished depositions are already editable, so the call is a no-op
// for them.
func (c *Client) Edit(id int) error {
	id, err := c.resolveID(id)
	if err != nil {
		return err
	}
	published, err := c.IsPublishedID(id)
	if err != nil {
		return err
	}
	if !published {
		return nil
	}
	return c.doJSON("POST", c.depositionURL(id)+"/actions/edit", nil, nil, 200, 201)
}

// Retire marks the given deposition as no longer maintained. The record
// itself stays available.
func (c *Client) Retire(id int) error {
	id, err := c.resolveID(id)
	if err != nil {
		return err
	}
	return c.doJSON("POST", c.depositionURL(id)+"/actions/retire", nil, nil, 200, 201)
}

// LatestRecordID returns the record id of the latest published version
// of the given deposition, or 0 when no version has been published yet.
func (c *Client) LatestRecordID(id int) (int, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return 0, err
	}
	dep, err := c.GetDeposition(id)
	if err != nil {
		return 0, err
	}
	if dep.Links.Latest == "" {
		return 0, nil
	}
	latest := idFromURL(dep.Links.Latest)
	if latest == 0 {
		return 0, ErrBadResponse
	}
	return latest, nil
}

// ConceptIDFromDeposition returns the concept id shared by every
// version of the given deposition.
func (c *Client) ConceptIDFromDeposition(id int) (string, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return "", err
	}
	dep, err := c.GetDeposition(id)
	if err != nil {
		return "", err
	}
	return dep.ConceptRecID, nil
}
