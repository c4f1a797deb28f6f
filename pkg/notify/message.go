package notify

import (
	"encoding/json"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// ReportGeneratedMessage announces a freshly generated report.
type ReportGeneratedMessage struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Format    api.Format `json:"format"`
	ItemCount int        `json:"itemCount"`
	Sequence  int        `json:"sequence"`
	// Location is where the artifact was stored, empty when no sink is configured.
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportGeneratedMessage builds a message from a snapshot.
func NewReportGeneratedMessage(snap api.ReportSnapshot, location string, now time.Time) *ReportGeneratedMessage {
	return &ReportGeneratedMessage{
		ID:        snap.ID,
		Name:      snap.Name,
		Format:    snap.Format,
		ItemCount: snap.ItemCount,
		Sequence:  snap.Sequence,
		Location:  location,
		CreatedAt: snap.CreatedAt,
		Timestamp: now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportGeneratedMessageFromJSON decodes a message.
func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
