package models

// Requests for the control-plane HTTP endpoints. Defined in domain for consistency and reuse.

type RunRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,required"`
	From    string   `json:"from" validate:"omitempty"`
	To      string   `json:"to" validate:"omitempty"`
}

type PollRequest struct {
	Handle string `query:"handle" json:"handle" validate:"required"`
}

type PortfolioRequest struct {
	Symbols  []string `json:"symbols" query:"symbols" validate:"required,min=1,dive,required"`
	BucketHr int      `json:"bucket_hours" query:"bucket_hours" default:"24" validate:"gte=1,lte=720"`
}
