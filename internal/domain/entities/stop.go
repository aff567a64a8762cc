package entities

// StopType says which modes serve a stop. A combined stop serves all of them.
type StopType string

const (
	StopTypeBus      StopType = "bus"
	StopTypeTaxi     StopType = "taxi"
	StopTypeMoto     StopType = "moto"
	StopTypeCombined StopType = "combined"
)

var StopTypes = []StopType{StopTypeBus, StopTypeTaxi, StopTypeMoto, StopTypeCombined}

// ParseStopType maps a raw string onto a StopType.
func ParseStopType(s string) (StopType, bool) {
	for _, t := range StopTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Serves reports whether a stop of type t matches a stop_type filter.
// Combined stops match every filter and an empty filter matches every stop.
func (t StopType) Serves(filter StopType) bool {
	return filter == "" || t == filter || t == StopTypeCombined
}

// Stop is a fixed pickup point. Code is the operator's stable identifier and
// is unique across stops.
type Stop struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Type     StopType `json:"type"`
	Zone     string   `json:"zone,omitempty"`
	Location Location `json:"location"`
	Active   bool     `json:"active"`
}

func (s *Stop) Clone() *Stop {
	c := *s
	return &c
}
