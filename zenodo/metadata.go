package zenodo

import "strconv"

// UploadTypes returns the upload_type values the deposit API accepts.
func UploadTypes() []string {
	return []string{
		"publication",
		"poster",
		"presentation",
		"dataset",
		"image",
		"video",
		"software",
		"lesson",
		"physicalobject",
		"other",
	}
}

// GetMetadata returns the metadata object of the deposition with the
// given id, or of the associated one if id is 0. A deposition without
// metadata yields an empty map.
func (c *Client) GetMetadata(id int) (map[string]interface{}, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	v, err := c.doJasonGet("/deposit/depositions/" + strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{})
	obj, err := v.GetObject("metadata")
	if err != nil {
		return result, nil
	}
	m := obj.Map()
	for key, val := range m {
		result[key] = val.Interface()
	}
	return result, nil
}

// ChangeMetadata overwrites the whole metadata object of a deposition.
// Unset arguments get placeholder defaults, so this is a full replace:
// any field not named here and not in extra is gone afterwards. Use
// SetMetadata to merge instead.
func (c *Client) ChangeMetadata(id int, title, uploadType, description string, extra map[string]interface{}) (*Deposition, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	if uploadType == "" {
		uploadType = "other"
	}
	if description == "" {
		description = "description goes here"
	}
	meta := map[string]interface{}{
		"title":       title,
		"upload_type": uploadType,
		"description": description,
		"creators":    []map[string]string{{"name": "creator goes here"}},
	}
	for key, val := range extra {
		meta[key] = val
	}
	return c.putMetadata(id, meta)
}

// SetMetadata merges updates into the deposition's current metadata and
// writes the result back. Map-valued fields present on both sides are
// merged one level deep, with updates winning per key; everything else
// is overwritten. Fields not named in updates are preserved.
func (c *Client) SetMetadata(id int, updates map[string]interface{}) (*Deposition, error) {
	id, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	current, err := c.GetMetadata(id)
	if err != nil {
		return nil, err
	}
	return c.putMetadata(id, mergeMetadata(current, updates))
}

// mergeMetadata folds updates into current and returns current.
func mergeMetadata(current, updates map[string]interface{}) map[string]interface{} {
	for key, val := range updates {
		newObj, newOK := val.(map[string]interface{})
		curObj, curOK := current[key].(map[string]interface{})
		if newOK && curOK {
			for k, v := range newObj {
				curObj[k] = v
			}
			continue
		}
		current[key] = val
	}
	return current
}

// putMetadata PUTs the {"metadata": ...} envelope and returns the
// resulting deposition.
func (c *Client) putMetadata(id int, meta map[string]interface{}) (*Deposition, error) {
	body := map[string]interface{}{"metadata": meta}
	var dep Deposition
	err := c.doJSON("PUT", c.depositionURL(id), body, &dep, 200)
	if err != nil {
		return nil, err
	}
	return &dep, nil
}
