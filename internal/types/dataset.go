package types

import (
	"io"
	"strings"
)

// SourceMode says where a build's dataset comes from
type SourceMode string

// Dataset source modes
const (
	SourceUpload SourceMode = "upload"
	SourceSelect SourceMode = "select"
)

// DatasetRef identifies the dataset that extraction and training must use
type DatasetRef struct {
	ID         int        `json:"id"`
	SourceMode SourceMode `json:"source_mode"`
}

// DatasetSelection is the user's dataset choice before it is resolved.
// File is only read during an upload and is never serialized.
type DatasetSelection struct {
	Mode        SourceMode `json:"mode"`
	DatasetID   string     `json:"dataset_id,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	File        io.Reader  `json:"-"`
}

// HasFile reports whether an upload payload is attached
func (s DatasetSelection) HasFile() bool {
	return s.File != nil
}

// HasDatasetID reports whether a dataset was picked in select mode
func (s DatasetSelection) HasDatasetID() bool {
	return strings.TrimSpace(s.DatasetID) != ""
}

// Dataset is a backend dataset record
type Dataset struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Project     *int   `json:"project,omitempty"`
	UploadDate  string `json:"upload_date"`
	Rows        *int   `json:"rows,omitempty"`
	Columns     *int   `json:"columns,omitempty"`
	FileSize    int64  `json:"file_size"`
}

// DatasetPage is one page of the paginated dataset list
type DatasetPage struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []Dataset `json:"results"`
}

// DatasetInfo is the dataset profile returned alongside an extracted intent
type DatasetInfo struct {
	DatasetID *int     `json:"dataset_id,omitempty"`
	Shape     []int    `json:"shape,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}

// HasColumn reports whether the profile lists the column. An unknown schema
// (no columns) reports true so callers do not warn without evidence.
func (d *DatasetInfo) HasColumn(name string) bool {
	if d == nil || len(d.Columns) == 0 {
		return true
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}
