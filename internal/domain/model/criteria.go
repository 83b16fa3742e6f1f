package model

import "time"

// FilterCriteria is the user's filter selection. Date bounds are inclusive.
type FilterCriteria struct {
	DateFrom   *time.Time `json:"dateFrom,omitempty"`
	DateTo     *time.Time `json:"dateTo,omitempty"`
	CompanyIDs []string   `json:"companyIds"`
	VesselID   string     `json:"vesselId,omitempty"`
	HullJobIDs []string   `json:"hullJobIds"`
}

// InfoCard is the summary shown next to the map.
type InfoCard struct {
	Paint                 string `json:"paint"`
	HullRoughness         string `json:"hullRoughness"`
	LogFactor             string `json:"logFactor"`
	LastUnderwaterService string `json:"lastUnderwaterService"`
}

// FilterResult is the filter engine output.
type FilterResult struct {
	Points      []DataPoint `json:"data"`
	InfoCard    InfoCard    `json:"infoCardData"`
	SFOCVisible bool        `json:"sfocVisible"`
}
