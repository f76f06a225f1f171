package datachangelog

import (
	"time"
)

// Operations recorded for a JSON column.
const (
	OperationInsert = "INSERT"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// ColumnChange is one write to a JSON column of one row
type ColumnChange struct {
	ID             string                 `json:"id"`
	Table          string                 `json:"table"`
	Column         string                 `json:"column"`
	Key            string                 `json:"key"`
	Operation      string                 `json:"operation"`      // INSERT, UPDATE, DELETE
	Representation string                 `json:"representation"` // native_json or text_encoded
	Changes        []FieldDiff            `json:"changes"`
	BeforeData     map[string]interface{} `json:"before_data,omitempty"`
	AfterData      map[string]interface{} `json:"after_data,omitempty"`
	ChangedBy      string                 `json:"changed_by,omitempty"`
	ChangeTime     time.Time              `json:"change_timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FieldDiff represents a change in a single top-level key of the stored document
type FieldDiff struct {
	FieldName string      `json:"field_name"`
	FieldType string      `json:"field_type"` // string, number, boolean, object, array, null
	Kind      string      `json:"kind"`       // added, modified, removed
	OldValue  interface{} `json:"old_value"`
	NewValue  interface{} `json:"new_value"`
	Sanitized bool        `json:"sanitized"` // Indicates if value was sanitized
}

// ChangeLogQuery represents query parameters for retrieving column changes
type ChangeLogQuery struct {
	Table     string
	Column    string
	Key       string
	Operation string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// ChangeLogQueryResult wraps query results with metadata
type ChangeLogQueryResult struct {
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Records []ColumnChange `json:"records"`
}
