package session

import (
	"time"

	"github.com/MrEthical07/goSession/device"
)

// Record is the stored state of one active credential. Timestamps are unix seconds.
type Record struct {
	SubjectID     string       `json:"subject_id"`
	CreatedAt     int64        `json:"created_at"`
	ExpiresAt     int64        `json:"expires_at"`
	DeviceType    device.Class `json:"device_type"`
	DeviceLabel   string       `json:"device_label,omitempty"`
	SourceAddress string       `json:"source_address,omitempty"`
}

// Expired reports whether the record's expiry has passed at now.
func (r Record) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// Created returns CreatedAt as a time.Time in UTC.
func (r Record) Created() time.Time {
	return time.Unix(r.CreatedAt, 0).UTC()
}

// Expires returns ExpiresAt as a time.Time in UTC.
func (r Record) Expires() time.Time {
	return time.Unix(r.ExpiresAt, 0).UTC()
}

// Metadata is the raw client information captured at issuance.
type Metadata struct {
	UserAgent     string
	DeviceHint    string
	SourceAddress string
}

// Session pairs a credential with its record for listings.
type Session struct {
	Credential string
	Record     Record
}
