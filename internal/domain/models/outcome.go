package models

import "time"

// Stage names the pipeline step a failure is attributed to.
type Stage string

const (
	StagePrice    Stage = "Price"
	StageFeeds    Stage = "Feeds"
	StageModel    Stage = "Model"
	StageDelivery Stage = "Delivery"
)

const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"
)

type Failure struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// PipelineOutcome is Success when Failure is nil and Analysis is set, Failure otherwise.
// Snapshot and Headlines hold whatever was gathered before the run ended.
type PipelineOutcome struct {
	RunID         string          `json:"run_id"`
	Trigger       string          `json:"trigger"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Snapshot      MarketSnapshot  `json:"snapshot"`
	Headlines     []Headline      `json:"headlines"`
	Analysis      *AnalysisResult `json:"analysis,omitempty"`
	Failure       *Failure        `json:"failure,omitempty"`
	Delivered     bool            `json:"delivered"`
	DeliveryError string          `json:"delivery_error,omitempty"`
}

func (o *PipelineOutcome) Succeeded() bool {
	return o.Failure == nil && o.Analysis != nil
}

func (o *PipelineOutcome) Status() string {
	if o.Succeeded() {
		return StatusSuccess
	}
	return StatusFailure
}

func (o *PipelineOutcome) Fail(stage Stage, message string) {
	o.Analysis = nil
	o.Failure = &Failure{Stage: stage, Message: message}
}

func (o *PipelineOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// RunRecord is the flattened row kept in the run history.
type RunRecord struct {
	RunID       string      `json:"run_id"`
	Trigger     string      `json:"trigger"`
	Status      string      `json:"status"`
	Stage       Stage       `json:"stage,omitempty"`
	Message     string      `json:"message,omitempty"`
	Model       string      `json:"model,omitempty"`
	PriceSource PriceSource `json:"price_source"`
	Price       string      `json:"price"`
	Headlines   int         `json:"headlines"`
	Delivered   bool        `json:"delivered"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

func (o *PipelineOutcome) Record() RunRecord {
	r := RunRecord{
		RunID:       o.RunID,
		Trigger:     o.Trigger,
		Status:      o.Status(),
		PriceSource: o.Snapshot.Source,
		Price:       o.Snapshot.PriceLabel(),
		Headlines:   len(o.Headlines),
		Delivered:   o.Delivered,
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
	}
	if o.Analysis != nil {
		r.Model = o.Analysis.ModelUsed
	}
	if o.Failure != nil {
		r.Stage = o.Failure.Stage
		r.Message = o.Failure.Message
	}
	return r
}
