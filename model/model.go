package model

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// FilterAll is the filter value that selects every record.
const FilterAll = "All"

// Measure is a numeric measurement as sent by the backend. The wire value may be
// a JSON number or a numeric-looking string, so the raw text is kept and only
// coerced when aggregating.
type Measure string

func (m *Measure) UnmarshalJSON(b []byte) error {
	var s string

	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = Measure(s)
		return nil
	}
	*m = Measure(b)
	return nil
}

// MarshalJSON writes a valid JSON number unquoted and anything else as a string.
func (m Measure) MarshalJSON() ([]byte, error) {
	raw := []byte(strings.TrimSpace(string(m)))
	if isJSONNumber(raw) {
		return raw, nil
	}
	return json.Marshal(string(m))
}

func isJSONNumber(b []byte) bool {
	if len(b) == 0 || (b[0] != '-' && (b[0] < '0' || b[0] > '9')) {
		return false
	}
	return json.Valid(b)
}

// Float coerces the measure to a number. Values that do not parse, and NaN or
// infinities, count as 0.
func (m Measure) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(m)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

type EquipmentRecord struct {
	Name        string  `json:"name" msgpack:"name"`
	Type        string  `json:"type" msgpack:"type"`
	Flowrate    Measure `json:"flowrate" msgpack:"flowrate"`
	Pressure    Measure `json:"pressure" msgpack:"pressure"`
	Temperature Measure `json:"temperature" msgpack:"temperature"`
}

type TypeCount struct {
	Type  string `json:"type" msgpack:"type"`
	Count int    `json:"count" msgpack:"count"`
}

// SummaryPayload is the server computed distribution. The totals and averages
// are the backend's own figures over the whole inventory.
type SummaryPayload struct {
	Total            int         `json:"total"`
	AvgFlowrate      float64     `json:"avg_flowrate"`
	AvgPressure      float64     `json:"avg_pressure"`
	AvgTemperature   float64     `json:"avg_temperature"`
	TypeDistribution []TypeCount `json:"type_distribution"`
}

type UploadHistoryEntry struct {
	ID           int64     `json:"id" msgpack:"id"`
	FileName     string    `json:"file_name" msgpack:"file_name"`
	TotalRecords int       `json:"total_records" msgpack:"total_records"`
	UploadedAt   time.Time `json:"uploaded_at" msgpack:"uploaded_at"`
}

// Snapshot is the equipment list, summary and history of one fetch cycle.
type Snapshot struct {
	CycleID   string
	FetchedAt time.Time
	Equipment []EquipmentRecord
	Summary   *SummaryPayload
	History   []UploadHistoryEntry
}

// Credential is the bearer token handed out by the login endpoint.
type Credential struct {
	Token string
}

func (c Credential) Empty() bool {
	return c.Token == ""
}

// Bearer returns the Authorization header value, or "" when no token is held.
func (c Credential) Bearer() string {
	if c.Empty() {
		return ""
	}
	return "Bearer " + c.Token
}

// StagedFile is a file selected for upload but not submitted yet.
type StagedFile struct {
	Name string
	Data []byte
}

// SyncEvent is published every time a fetch cycle is applied to the dashboard.
type SyncEvent struct {
	CycleID        string              `json:"cycle_id" msgpack:"cycle_id"`
	Trigger        string              `json:"trigger" msgpack:"trigger"`
	Timestamp      time.Time           `json:"timestamp" msgpack:"timestamp"`
	Total          int                 `json:"total" msgpack:"total"`
	AvgFlowrate    float64             `json:"avg_flowrate" msgpack:"avg_flowrate"`
	AvgPressure    float64             `json:"avg_pressure" msgpack:"avg_pressure"`
	AvgTemperature float64             `json:"avg_temperature" msgpack:"avg_temperature"`
	Labels         []string            `json:"labels" msgpack:"labels"`
	Counts         []int               `json:"counts" msgpack:"counts"`
	LatestUpload   *UploadHistoryEntry `json:"latest_upload,omitempty" msgpack:"latest_upload,omitempty"`
}

// IBackend reads the three resources that make up a dashboard snapshot.
type IBackend interface {
	Equipment(ctx context.Context) ([]EquipmentRecord, error)
	Summary(ctx context.Context) (*SummaryPayload, error)
	History(ctx context.Context) ([]UploadHistoryEntry, error)
}

// IUploader submits a staged file to the ingestion endpoint.
type IUploader interface {
	Upload(ctx context.Context, file StagedFile) error
}

// IPublisher forwards sync events to a downstream consumer.
type IPublisher interface {
	PublishSync(event SyncEvent) error
}
