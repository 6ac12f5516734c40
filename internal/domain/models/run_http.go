package models

// Requests and responses for the trigger HTTP endpoints.

type RunRequest struct {
	Reason string `query:"reason" json:"reason" default:"manual" validate:"max=64"`
}

type RunsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type RunResponse struct {
	Status        string      `json:"status"`
	RunID         string      `json:"run_id"`
	Model         string      `json:"model,omitempty"`
	PriceSource   PriceSource `json:"price_source"`
	Price         string      `json:"price"`
	Headlines     int         `json:"headlines"`
	Delivered     bool        `json:"delivered"`
	DeliveryError string      `json:"delivery_error,omitempty"`
	Stage         Stage       `json:"stage,omitempty"`
	Message       string      `json:"message,omitempty"`
	DurationMs    int64       `json:"duration_ms"`
}

func NewRunResponse(o *PipelineOutcome) RunResponse {
	rec := o.Record()
	return RunResponse{
		Status:        rec.Status,
		RunID:         rec.RunID,
		Model:         rec.Model,
		PriceSource:   rec.PriceSource,
		Price:         rec.Price,
		Headlines:     rec.Headlines,
		Delivered:     rec.Delivered,
		DeliveryError: o.DeliveryError,
		Stage:         rec.Stage,
		Message:       rec.Message,
		DurationMs:    o.Duration().Milliseconds(),
	}
}
