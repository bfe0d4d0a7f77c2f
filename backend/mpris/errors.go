package mpris

// InvalidBusNameError indicates that a busName is not an MPRIS player name
type InvalidBusNameError struct {
	BusName string
	Reason  string
}

func (e *InvalidBusNameError) Error() string {
	return "invalid player name: " + e.Reason
}
