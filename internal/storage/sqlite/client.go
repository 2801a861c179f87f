package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		overall_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_project ON assessments(project_id);
	CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);

	CREATE TABLE IF NOT EXISTS risk_predictions (
		project_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evolution_predictions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evolution_project ON evolution_predictions(project_id);

	CREATE TABLE IF NOT EXISTS validations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		accuracy REAL NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(subject_id, kind, fingerprint)
	);
	CREATE INDEX IF NOT EXISTS idx_validations_subject ON validations(subject_id);

	CREATE TABLE IF NOT EXISTS pattern_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		name TEXT NOT NULL,
		effectiveness REAL NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_project ON pattern_snapshots(project_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_recorded ON pattern_snapshots(recorded_at);

	CREATE TABLE IF NOT EXISTS learning_weights (
		type TEXT PRIMARY KEY,
		weight REAL NOT NULL,
		validations INTEGER NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		rec_type TEXT NOT NULL,
		effectiveness REAL NOT NULL,
		utility REAL NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_project ON feedback_log(project_id);

	CREATE TABLE IF NOT EXISTS recommendation_bundles (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		options_hash TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bundles_project ON recommendation_bundles(project_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertAssessment(assessment *models.RiskAssessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	query := `
		INSERT INTO assessments (id, project_id, overall_score, risk_level, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		assessment.ID,
		assessment.ProjectID,
		assessment.OverallScore,
		assessment.RiskLevel,
		string(payload),
		assessment.GeneratedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	logger.Debug("Assessment stored",
		zap.String("assessment_id", assessment.ID),
		zap.String("project_id", assessment.ProjectID),
	)
	return nil
}

func (c *Client) GetAssessmentHistory(projectID string, since time.Time) ([]models.RiskAssessment, error) {
	query := `
		SELECT payload FROM assessments
		WHERE project_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.Query(query, projectID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment history: %w", err)
	}
	defer rows.Close()

	var assessments []models.RiskAssessment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var a models.RiskAssessment
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			logger.Warn("Skipping unreadable assessment row", zap.Error(err))
			continue
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

func (c *Client) SaveRiskPrediction(projectID string, assessment *models.RiskAssessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	query := `
		INSERT INTO risk_predictions (project_id, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`

	_, err = c.db.Exec(query, projectID, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save risk prediction: %w", err)
	}

	return nil
}

func (c *Client) GetRiskPrediction(projectID string) (*models.RiskAssessment, error) {
	var payload string
	err := c.db.QueryRow(
		`SELECT payload FROM risk_predictions WHERE project_id = ?`, projectID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk prediction: %w", err)
	}

	var assessment models.RiskAssessment
	if err := json.Unmarshal([]byte(payload), &assessment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	return &assessment, nil
}

func (c *Client) SaveEvolutionPrediction(prediction *models.EvolutionPrediction) error {
	payload, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal evolution prediction: %w", err)
	}

	query := `
		INSERT INTO evolution_predictions (id, project_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			status = excluded.status
	`

	_, err = c.db.Exec(
		query,
		prediction.ID,
		prediction.ProjectID,
		string(payload),
		prediction.Status,
		prediction.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save evolution prediction: %w", err)
	}

	return nil
}

func (c *Client) GetEvolutionPrediction(predictionID string) (*models.EvolutionPrediction, error) {
	var payload string
	err := c.db.QueryRow(
		`SELECT payload FROM evolution_predictions WHERE id = ?`, predictionID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evolution prediction: %w", err)
	}

	var prediction models.EvolutionPrediction
	if err := json.Unmarshal([]byte(payload), &prediction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evolution prediction: %w", err)
	}

	return &prediction, nil
}

func (c *Client) InsertValidation(result *models.ValidationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal validation: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO validations (id, subject_id, kind, fingerprint, accuracy, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		result.ID,
		result.SubjectID,
		result.Kind,
		result.Fingerprint,
		result.Accuracy,
		string(payload),
		result.ValidatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert validation: %w", err)
	}

	return nil
}

func (c *Client) GetValidationByFingerprint(subjectID, kind, fingerprint string) (*models.ValidationResult, error) {
	var payload string
	err := c.db.QueryRow(
		`SELECT payload FROM validations WHERE subject_id = ? AND kind = ? AND fingerprint = ?`,
		subjectID, kind, fingerprint,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation: %w", err)
	}

	var result models.ValidationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation: %w", err)
	}

	return &result, nil
}

func (c *Client) InsertPatternSnapshot(snapshot *models.PatternSnapshot) error {
	query := `
		INSERT INTO pattern_snapshots (project_id, domain, name, effectiveness, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		snapshot.ProjectID,
		snapshot.Domain,
		snapshot.Name,
		snapshot.Effectiveness,
		snapshot.RecordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pattern snapshot: %w", err)
	}

	return nil
}

// GetPatternSnapshots returns snapshots for one project, or for all
// projects when projectID is empty.
func (c *Client) GetPatternSnapshots(projectID string, since time.Time) ([]models.PatternSnapshot, error) {
	query := `
		SELECT project_id, domain, name, effectiveness, recorded_at
		FROM pattern_snapshots
		WHERE (? = '' OR project_id = ?) AND recorded_at >= ?
		ORDER BY recorded_at ASC
	`

	rows, err := c.db.Query(query, projectID, projectID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.PatternSnapshot
	for rows.Next() {
		var s models.PatternSnapshot
		var recordedAt int64

		if err := rows.Scan(&s.ProjectID, &s.Domain, &s.Name, &s.Effectiveness, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.RecordedAt = time.Unix(recordedAt, 0)
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

func (c *Client) UpsertLearningWeight(weight *models.LearningWeight) error {
	query := `
		INSERT INTO learning_weights (type, weight, validations, correct, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			weight = excluded.weight,
			validations = excluded.validations,
			correct = excluded.correct,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		weight.Type,
		weight.Weight,
		weight.Validations,
		weight.Correct,
		weight.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert learning weight: %w", err)
	}

	return nil
}

func (c *Client) GetLearningWeights() ([]models.LearningWeight, error) {
	query := `SELECT type, weight, validations, correct, updated_at FROM learning_weights`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get learning weights: %w", err)
	}
	defer rows.Close()

	var weights []models.LearningWeight
	for rows.Next() {
		var w models.LearningWeight
		var updatedAt int64

		if err := rows.Scan(&w.Type, &w.Weight, &w.Validations, &w.Correct, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		w.UpdatedAt = time.Unix(updatedAt, 0)
		weights = append(weights, w)
	}

	return weights, rows.Err()
}

func (c *Client) InsertFeedback(projectID string, entry *models.FeedbackEntry) error {
	query := `
		INSERT INTO feedback_log (project_id, rec_type, effectiveness, utility, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		projectID,
		entry.RecommendationType,
		entry.Effectiveness,
		entry.Utility,
		entry.Comment,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("project_id", projectID),
		zap.String("rec_type", entry.RecommendationType),
	)
	return nil
}

func (c *Client) SaveRecommendationBundle(id, projectID, optionsHash string, bundle any) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	query := `
		INSERT INTO recommendation_bundles (id, project_id, options_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(query, id, projectID, optionsHash, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save recommendation bundle: %w", err)
	}

	return nil
}
