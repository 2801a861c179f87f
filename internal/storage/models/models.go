package models

import "time"

// ProjectContext is the normalized description of an engagement,
// produced by the context builder and read-only to the analyzers.
type ProjectContext struct {
	ProjectID     string
	ProjectType   string
	ClientType    string
	Industry      string
	Technologies  []string
	TeamSize      int
	TimelineWeeks int
	BudgetUSD     float64
	Complexity    float64
	Metrics       map[string]float64
	UpdatedAt     time.Time
}

type ProjectOutcome struct {
	SuccessScore      float64
	OnTime            bool
	OnBudget          bool
	DurationWeeks     int
	SatisfactionScore float64
}

type PhaseTransition struct {
	FromPhase    string
	ToPhase      string
	DurationDays float64
}

type HistoricalProject struct {
	ID              string
	Name            string
	Context         ProjectContext
	Outcome         ProjectOutcome
	Phases          []PhaseTransition
	Architecture    string
	EngagementModel string
	Factors         []string
	CompletedAt     time.Time
}

type WarningSignal struct {
	Signal    string
	Metric    string
	Threshold float64
}

type RiskRecord struct {
	ID                      string
	Type                    string
	Description             string
	Context                 ProjectContext
	BaseProbability         float64
	AverageImpact           float64
	Occurrences             int
	Triggers                []string
	PreventionActions       []string
	MitigationActions       []string
	EarlyWarnings           []WarningSignal
	MitigationEffort        float64
	MitigationEffectiveness float64
	RecordedAt              time.Time
}

type CategoryRisk struct {
	Type        string
	Description string
	Probability float64
	Impact      float64
	Confidence  float64
	Evidence    []string
}

type EarlyWarning struct {
	RiskType  string
	Signal    string
	Metric    string
	Threshold float64
	Priority  float64
}

type MitigationRecommendation struct {
	RiskType string
	Actions  []string
	Priority float64
}

type MonitoringRecommendation struct {
	RiskType      string
	Metrics       []string
	Cadence       string
	AlertChannels []string
}

type RiskAssessment struct {
	ID              string
	ProjectID       string
	Risks           []CategoryRisk
	CategoryScores  map[string]float64
	OverallScore    float64
	RiskLevel       string
	EarlyWarnings   []EarlyWarning
	Mitigations     []MitigationRecommendation
	Monitoring      []MonitoringRecommendation
	Degraded        bool
	DegradedReasons []string
	GeneratedAt     time.Time
}

type Recommendation struct {
	ID           string
	Type         string
	Category     string
	Title        string
	Description  string
	Confidence   float64
	Priority     string
	Effort       float64
	Impact       float64
	TimelineUnit string
	TimelineSpan int
	Dependencies []string
	Evidence     []string
}

// RecommendationOutcome aggregates how recommendations of one type
// performed on past engagements.
type RecommendationOutcome struct {
	Type        string
	Methodology string
	SuccessRate float64
	Count       int
	AvgImpact   float64
}

type MaturityTransition struct {
	FromLevel   string
	ToLevel     string
	Actions     []string
	SuccessRate float64
	Count       int
}

// PatternSnapshot is one time-indexed observation of a pattern's
// effectiveness, the raw material of evolution tracking.
type PatternSnapshot struct {
	ProjectID     string
	Domain        string
	Name          string
	Effectiveness float64
	RecordedAt    time.Time
}

type PatternEvolution struct {
	Name                 string
	Domain               string
	Trend                float64
	Stability            float64
	AverageEffectiveness float64
	LatestEffectiveness  float64
	Classification       string
	SampleCount          int
}

type EvolutionAnalysis struct {
	ProjectID   string
	Window      string
	Slices      int
	Patterns    []PatternEvolution
	GeneratedAt time.Time
}

type DomainPrediction struct {
	Domain     string
	Current    float64
	Projected  float64
	Trend      float64
	Confidence float64
}

type EvolutionPrediction struct {
	ID         string
	ProjectID  string
	Horizon    string
	Domains    map[string]DomainPrediction
	Confidence float64
	Status     string
	CreatedAt  time.Time
}

type CategoryValidation struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

type ValidationResult struct {
	ID          string
	SubjectID   string
	Kind        string
	PerCategory map[string]CategoryValidation
	Scores      map[string]float64
	Accuracy    float64
	Fingerprint string
	ValidatedAt time.Time
}

// ActualOutcome is the ground truth supplied when validating a risk
// prediction: which risk categories actually materialized.
type ActualOutcome struct {
	MaterializedRisks []string
	SuccessScore      float64
}

type FeedbackEntry struct {
	RecommendationType string
	Effectiveness      float64
	Utility            float64
	Comment            string
}

// OutcomeReport records whether an applied recommendation of a type
// worked out in practice. Submitted alongside feedback when the
// engagement has progressed far enough to know.
type OutcomeReport struct {
	RecommendationType string
	Successful         bool
}

type LearningWeight struct {
	Type        string
	Weight      float64
	Validations int
	Correct     int
	UpdatedAt   time.Time
}
