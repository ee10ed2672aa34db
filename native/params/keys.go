package params

const (
	// ParamsKeyEmergency stores the platform wide emergency flag.
	ParamsKeyEmergency = "system/emergency"
)
