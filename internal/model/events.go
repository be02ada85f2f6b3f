package model

// Event kinds emitted by the provisioning flow.
const (
	EventPositionCreated = "position_created"
	EventExcessRefunded  = "excess_refunded"
)

// Event is the envelope written to the notification sink.
type Event struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Timestamp string      `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PositionCreatedData is the payload of a position_created event.
type PositionCreatedData struct {
	Pool       string `json:"pool"`
	PositionID string `json:"position_id"`
	Recipient  string `json:"recipient"`
	Liquidity  string `json:"liquidity"`
	Amount0    string `json:"amount0"`
	Amount1    string `json:"amount1"`
	TickLower  int32  `json:"tick_lower"`
	TickUpper  int32  `json:"tick_upper"`
	WidthBps   uint32 `json:"width_bps"`
}

// ExcessRefundedData is the payload of an excess_refunded event.
type ExcessRefundedData struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}
