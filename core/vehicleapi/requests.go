package vehicleapi

// Alert actions.
const (
	AlertFlash = "Flash"
	AlertHonk  = "Honk"
)

// Alert overrides.
const (
	OverrideDoorOpen   = "DoorOpen"
	OverrideIgnitionOn = "IgnitionOn"
)

// Charge override modes.
const (
	ChargeNow      = "CHARGE_NOW"
	CancelOverride = "CANCEL_OVERRIDE"
)

// Charging profile modes and rates.
const (
	ChargeModeDefaultImmediate  = "DEFAULT_IMMEDIATE"
	ChargeModeImmediate         = "IMMEDIATE"
	ChargeModeDepartureBased    = "DEPARTURE_BASED"
	ChargeModeRateBased         = "RATE_BASED"
	ChargeModePHEVAfterMidnight = "PHEV_AFTER_MIDNIGHT"

	RateOffPeak = "OFFPEAK"
	RateMidPeak = "MIDPEAK"
	RatePeak    = "PEAK"
)

// DiagnosticsRequest selects the diagnostic groups to fetch.
type DiagnosticsRequest struct {
	DiagnosticItem []string `json:"diagnosticItem"`
}

// AlertRequest flashes lights and/or honks the horn.
type AlertRequest struct {
	Action   []string `json:"action"`
	Delay    int      `json:"delay"`
	Duration int      `json:"duration"`
	Override []string `json:"override"`
}

// DelayRequest is used by door lock and unlock.
type DelayRequest struct {
	Delay int `json:"delay"`
}

// ChargeOverrideRequest starts or cancels an immediate charge.
type ChargeOverrideRequest struct {
	Mode string `json:"mode"`
}

// ChargingProfileRequest updates the charging schedule.
type ChargingProfileRequest struct {
	ChargeMode string `json:"chargeMode"`
	RateType   string `json:"rateType"`
}
