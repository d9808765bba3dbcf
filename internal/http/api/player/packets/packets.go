package packets

// REQUESTS FOR /api/player/*

type CompleteRequest struct {
	Sequence *uint64 `json:"sequence" binding:"required"`
}

// RESPONSES FOR /api/player/*

type CompleteResponse struct {
	Sequence uint64 `json:"sequence"`
	Queued   bool   `json:"queued"`
}

type DebugEvent struct {
	Enabled bool `json:"enabled"`
}
