package model

// Status is the lifecycle of the dashboard data.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Stats are the figures shown on the dashboard cards.
type Stats struct {
	Total          int     `json:"total"`
	AvgFlowrate    float64 `json:"avg_flowrate"`
	AvgPressure    float64 `json:"avg_pressure"`
	AvgTemperature float64 `json:"avg_temperature"`
}

// ChartSeries is the label/count series handed to the bar chart.
type ChartSeries struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// View is everything a presentation shell needs to render the dashboard.
type View struct {
	Status      Status               `json:"status"`
	Error       string               `json:"error,omitempty"`
	CycleID     string               `json:"cycle_id,omitempty"`
	Filter      string               `json:"filter"`
	TypeOptions []string             `json:"type_options"`
	Stats       Stats                `json:"stats"`
	ServerStats Stats                `json:"server_stats"`
	Rows        []EquipmentRecord    `json:"rows"`
	Chart       ChartSeries          `json:"chart"`
	History     []UploadHistoryEntry `json:"history"`
}
