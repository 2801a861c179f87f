package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/storage/models"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// SnapshotSource is the slice of local state the exporter reads.
type SnapshotSource interface {
	GetPatternSnapshots(projectID string, since time.Time) ([]models.PatternSnapshot, error)
}

type Exporter struct {
	snapshots SnapshotSource
	learning  *learning.Store
}

func NewExporter(snapshots SnapshotSource, learningStore *learning.Store) *Exporter {
	return &Exporter{snapshots: snapshots, learning: learningStore}
}

type bundle struct {
	Snapshots  []models.PatternSnapshot `json:"snapshots"`
	Weights    []models.LearningWeight  `json:"weights"`
	ExportedAt time.Time                `json:"exportedAt"`
}

// ExportPatterns serializes all recorded pattern snapshots and the
// live learning weights for diagnostics and backup. Format errors are
// caught before any store access.
func (e *Exporter) ExportPatterns(ctx context.Context, format string) ([]byte, string, error) {
	switch format {
	case "json", "csv":
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	snapshots, err := e.snapshots.GetPatternSnapshots("", time.Time{})
	if err != nil {
		return nil, "", err
	}

	b := bundle{
		Snapshots:  snapshots,
		Weights:    e.learning.Snapshot(),
		ExportedAt: time.Now(),
	}

	if format == "json" {
		data, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to serialize export: %w", err)
		}
		return data, "application/json", nil
	}

	data, err := toCSV(b)
	if err != nil {
		return nil, "", err
	}
	return data, "text/csv", nil
}

func toCSV(b bundle) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"record", "project_id", "domain", "name", "value", "count", "timestamp"}}
	for _, s := range b.Snapshots {
		rows = append(rows, []string{
			"snapshot", s.ProjectID, s.Domain, s.Name,
			strconv.FormatFloat(s.Effectiveness, 'f', 4, 64),
			"",
			s.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, lw := range b.Weights {
		rows = append(rows, []string{
			"weight", "", "", lw.Type,
			strconv.FormatFloat(lw.Weight, 'f', 4, 64),
			strconv.Itoa(lw.Validations),
			lw.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to serialize export: %w", err)
	}
	return buf.Bytes(), nil
}
