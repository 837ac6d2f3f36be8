// Package booking implements the appointment-booking dialogue: a linear
// multi-turn flow that collects owner name, pet name, phone, date, and time,
// validates the collected record, and emits a finalized appointment request.
package booking

// Step identifies the current position within the booking dialogue.
type Step int

const (
	// StepNone means no booking flow is active.
	StepNone Step = iota
	StepOwnerName
	StepPetName
	StepPhone
	StepDate
	StepTime
	StepConfirm
	// StepUnknown marks an unrecognized persisted step value. The machine
	// treats it as flow-not-started and replies with a generic help prompt.
	StepUnknown
)

// Wire forms match the values older sessions already have persisted.
const (
	stepOwnerNameWire = "petOwnerName"
	stepPetNameWire   = "petName"
	stepPhoneWire     = "phoneNumber"
	stepDateWire      = "preferredDate"
	stepTimeWire      = "preferredTime"
	stepConfirmWire   = "confirm"
)

// String returns the wire form of the step. StepNone and StepUnknown have no
// wire form and return "".
func (s Step) String() string {
	switch s {
	case StepOwnerName:
		return stepOwnerNameWire
	case StepPetName:
		return stepPetNameWire
	case StepPhone:
		return stepPhoneWire
	case StepDate:
		return stepDateWire
	case StepTime:
		return stepTimeWire
	case StepConfirm:
		return stepConfirmWire
	default:
		return ""
	}
}

func parseStep(raw string) Step {
	switch raw {
	case stepOwnerNameWire:
		return StepOwnerName
	case stepPetNameWire:
		return StepPetName
	case stepPhoneWire:
		return StepPhone
	case stepDateWire:
		return StepDate
	case stepTimeWire:
		return StepTime
	case stepConfirmWire:
		return StepConfirm
	case "":
		return StepNone
	default:
		return StepUnknown
	}
}

// State is the booking flow snapshot embedded in a conversation. The zero
// value means "not started". Fields are only meaningful while InProgress is
// true.
type State struct {
	InProgress bool
	Step       Step

	OwnerName string
	PetName   string
	Phone     string
	Date      string // normalized YYYY-MM-DD
	Time      string // HH:MM, 24-hour
}

// Request is the candidate record assembled from a State, handed to the
// validator and, when valid, persisted as an appointment.
type Request struct {
	PetOwnerName  string
	PetName       string
	PhoneNumber   string
	PreferredDate string
	PreferredTime string
}

func (s State) request() Request {
	return Request{
		PetOwnerName:  s.OwnerName,
		PetName:       s.PetName,
		PhoneNumber:   s.Phone,
		PreferredDate: s.Date,
		PreferredTime: s.Time,
	}
}

// ToWire serializes the state to the legacy string map stored alongside the
// conversation. The storage layer expects "inProgress" as "true"/"false" and
// omits collected-field keys when the flow is inactive.
func (s State) ToWire() map[string]string {
	wire := map[string]string{"inProgress": "false"}
	if !s.InProgress {
		return wire
	}
	wire["inProgress"] = "true"
	wire["step"] = s.Step.String()
	if s.OwnerName != "" {
		wire[stepOwnerNameWire] = s.OwnerName
	}
	if s.PetName != "" {
		wire[stepPetNameWire] = s.PetName
	}
	if s.Phone != "" {
		wire[stepPhoneWire] = s.Phone
	}
	if s.Date != "" {
		wire[stepDateWire] = s.Date
	}
	if s.Time != "" {
		wire[stepTimeWire] = s.Time
	}
	return wire
}

// FromWire rebuilds a State from the stored string map. Collected fields are
// ignored when the flow is inactive, and an unrecognized step value surfaces
// as StepUnknown rather than failing the load.
func FromWire(wire map[string]string) State {
	if wire == nil {
		return State{}
	}
	if wire["inProgress"] != "true" {
		return State{}
	}
	return State{
		InProgress: true,
		Step:       parseStep(wire["step"]),
		OwnerName:  wire[stepOwnerNameWire],
		PetName:    wire[stepPetNameWire],
		Phone:      wire[stepPhoneWire],
		Date:       wire[stepDateWire],
		Time:       wire[stepTimeWire],
	}
}
