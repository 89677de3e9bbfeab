// Package domain holds the core catalog entities: indexed file records, the
// built index, vocabularies, and the grid geometry shared by all resampling
// code.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// ReasonCode classifies why a discovered file could not be fully indexed.
type ReasonCode string

const (
	ReasonNone            ReasonCode = ""
	ReasonUnparseablePath ReasonCode = "unparseable_path"
	ReasonUnknownVariable ReasonCode = "unknown_variable"
	ReasonUnknownModel    ReasonCode = "unknown_model"
	ReasonUnknownIceSheet ReasonCode = "unknown_ice_sheet"
	ReasonDuplicateKey    ReasonCode = "duplicate_key"
)

// RecordKey identifies a single data product within the dataset.
type RecordKey struct {
	IceSheet    string `json:"ice_sheet"`
	Institution string `json:"institution"`
	Model       string `json:"model"`
	Experiment  string `json:"experiment"`
	Variable    string `json:"variable"`
}

// String renders the key in path-like form, e.g. "AIS/AWI/PISM1/exp05/lithk".
func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.IceSheet, k.Institution, k.Model, k.Experiment, k.Variable)
}

// FileRecord is one indexed data file.
//
// A record is created for every object the scanner discovers, including ones
// whose paths could not be parsed: those carry Available=false and a Reason,
// so "present but not indexed" stays reportable.
type FileRecord struct {
	IceSheet    string `json:"ice_sheet"`
	Institution string `json:"institution"`
	Model       string `json:"model"`
	Experiment  string `json:"experiment"`
	Variable    string `json:"variable"`

	// Temporal coverage. Frequency is "yearly" for ISMIP6 projection output;
	// TimeRange is filled when the filename carries a YYYY-YYYY suffix.
	Frequency string `json:"frequency,omitempty"`
	TimeRange string `json:"time_range,omitempty"`

	URI       string `json:"uri"`
	SizeBytes int64  `json:"size_bytes"`

	// Audit trail for naming repairs.
	Corrected   bool     `json:"corrected"`
	Corrections []string `json:"corrections,omitempty"`

	Available bool       `json:"available"`
	Reason    ReasonCode `json:"reason,omitempty"`
}

// Key returns the identifying tuple for the record.
func (r FileRecord) Key() RecordKey {
	return RecordKey{
		IceSheet:    r.IceSheet,
		Institution: r.Institution,
		Model:       r.Model,
		Experiment:  r.Experiment,
		Variable:    r.Variable,
	}
}

// Index is the complete, immutable (per build) collection of FileRecords.
type Index struct {
	BuiltAt      time.Time    `json:"built_at"`
	SourceDigest string       `json:"source_digest"`
	Records      []FileRecord `json:"records"`
}

// SortRecords orders records deterministically so that two builds over the
// same object-store state serialize identically.
func SortRecords(records []FileRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].URI != records[j].URI {
			return records[i].URI < records[j].URI
		}
		return records[i].Key().String() < records[j].Key().String()
	})
}

// Available returns only the records that parsed cleanly and are expected to
// be readable.
func (ix *Index) Available() []FileRecord {
	out := make([]FileRecord, 0, len(ix.Records))
	for _, r := range ix.Records {
		if r.Available {
			out = append(out, r)
		}
	}
	return out
}
