package core

import (
	"time"
)

// Collection names used in the document store.
const (
	CollectionDatasets = "datasets"
	CollectionRows     = "public_data"
)

// Bookkeeping fields written on every stored row and hidden from viewers.
const (
	FieldDatasetID  = "datasetId"
	FieldUploadedAt = "uploadedAt"
	FieldSourceFile = "sourceFile"
)

// Dataset metadata document fields.
const (
	fieldName        = "name"
	fieldColumns     = "columns"
	fieldRecordCount = "recordCount"
	fieldPublishedBy = "publishedBy"
)

// TimestampLayout is the fixed-width UTC layout used for timestamps inside
// documents. Lexicographic order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// bookkeepingFields are never shown in a table.
var bookkeepingFields = map[string]bool{
	FieldDatasetID:  true,
	FieldUploadedAt: true,
	FieldSourceFile: true,
}

// IsBookkeepingField reports whether name is a storage-only field.
func IsBookkeepingField(name string) bool {
	return bookkeepingFields[name]
}

// Role is the capability an authenticated actor holds.
type Role string

const (
	RolePublisher Role = "publisher"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePublisher || r == RoleViewer
}

// Actor is the authenticated identity performing an operation.
// The zero value means no one is signed in.
type Actor struct {
	ID   string
	Role Role
}

// Authenticated reports whether the actor carries an identity and a role.
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role.Valid()
}

// CanPublish reports whether the actor may upload and publish datasets.
func (a Actor) CanPublish() bool {
	return a.Authenticated() && a.Role == RolePublisher
}

// Dataset is the metadata for one published file.
type Dataset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Columns     []string  `json:"columns"`
	UploadedAt  time.Time `json:"uploadedAt"`
	RecordCount int       `json:"recordCount"`
	PublishedBy string    `json:"publishedBy,omitempty"`
}

// DatasetRows is the result of fetching a dataset's rows.
// Records are in store order, which is not guaranteed to be stable.
type DatasetRows struct {
	Dataset Dataset
	Columns []string
	Records []*Record
}

// ProgressFunc receives the confirmed number of committed rows after each chunk.
type ProgressFunc func(current, total int)

// Phase is a state of the publish workflow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseParsing    Phase = "parsing"
	PhasePreviewing Phase = "previewing"
	PhasePublishing Phase = "publishing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Progress is a snapshot of a publish in flight.
type Progress struct {
	Phase     Phase  `json:"phase"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	DatasetID string `json:"datasetId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Current * 100) / p.Total
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(TimestampLayout, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
