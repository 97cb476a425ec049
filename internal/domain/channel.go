package domain

type PowerState string

const (
	PowerStateOff PowerState = "off"
	PowerStateOn  PowerState = "on"
)

// Channel is one independently switchable relay output rented out for
// timed usage. PricePerUnit is the amount charged per billing unit
// (30 minutes by default), in currency minor units.
type Channel struct {
	ID           int        `json:"id"`
	State        PowerState `json:"state"`
	PricePerUnit int64      `json:"price_per_unit"`
}

// ChannelState is the read-model snapshot served to monitors and
// pushed to presentation clients when affordances change.
type ChannelState struct {
	ID           int        `json:"id"`
	State        PowerState `json:"state"`
	TimerActive  bool       `json:"timer_active"`
	PricePerUnit int64      `json:"price_per_unit"`
}
