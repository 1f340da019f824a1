package models

import "time"

// ExportFormatVersion is written into every export document
const ExportFormatVersion = "1.0.0"

// ExportData is the document produced by an export and consumed by an import
type ExportData struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Plans      []*Plan        `json:"plans"`
	Metadata   ExportMetadata `json:"metadata"`
}

// ExportMetadata describes the exported collection
type ExportMetadata struct {
	TotalPlans int             `json:"totalPlans"`
	DateRange  ExportDateRange `json:"dateRange"`
}

// ExportDateRange spans the earliest and latest plan start dates
type ExportDateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}
