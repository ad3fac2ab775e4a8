package httpgin

type ReserveRequest struct {
	HolderID string `json:"holder_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	// Numbers pins the exact tickets to hold; omit to auto-assign.
	Numbers []int `json:"numbers" binding:"omitempty,dive,gt=0"`
	// MaxPerHolder carries the competition's per-user cap when the catalog
	// front end knows it; 0 falls back to the deployment default.
	MaxPerHolder int `json:"max_per_holder" binding:"omitempty,gte=0"`
}

type ReserveResponse struct {
	Numbers       []int  `json:"numbers"`
	ReservedUntil string `json:"reserved_until"`
}

type ExtendResponse struct {
	ReservedUntil string `json:"reserved_until"`
}

type ContentionResponse struct {
	Numbers []int `json:"numbers"`
}

type PaymentConfirmedRequest struct {
	CompetitionID int64  `json:"competition_id" binding:"required"`
	HolderID      string `json:"holder_id" binding:"required"`
	Numbers       []int  `json:"numbers" binding:"required,min=1,dive,gt=0"`
	EntryID       string `json:"entry_id" binding:"required,uuid"`
}

type PaymentFailedRequest struct {
	CompetitionID int64  `json:"competition_id" binding:"required"`
	HolderID      string `json:"holder_id" binding:"required"`
	Numbers       []int  `json:"numbers" binding:"required,min=1,dive,gt=0"`
}

type InitPoolRequest struct {
	TotalTickets int `json:"total_tickets" binding:"required,gt=0"`
}

type InitPoolResponse struct {
	Created int64 `json:"created"`
}

type TicketView struct {
	Number   int    `json:"number"`
	Status   string `json:"status"`
	HolderID string `json:"holder_id,omitempty"`
}

type ErrorResponse struct {
	Error       string `json:"error"`
	Unavailable []int  `json:"unavailable,omitempty"`
}
