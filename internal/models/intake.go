package models

// IntakeStatus is the server-side state of an intake request. The backend
// may add values; anything other than REQUESTED and PROCESSING is terminal.
type IntakeStatus string

const (
	IntakeRequested  IntakeStatus = "REQUESTED"
	IntakeProcessing IntakeStatus = "PROCESSING"
	IntakeSuccess    IntakeStatus = "SUCCESS"
	IntakeFail       IntakeStatus = "FAIL"
)

// Terminal reports whether the backend has finished processing the intake.
func (s IntakeStatus) Terminal() bool {
	return s != IntakeRequested && s != IntakeProcessing
}

// CreateIntakeRequest is the body of POST /api/intakes.
type CreateIntakeRequest struct {
	ProfileID     int64  `json:"profileId"`
	DispenserUUID string `json:"dispenserUuid"`
}

// Intake is the response of POST /api/intakes and GET /api/intakes/{intakeId}.
type Intake struct {
	IntakeID int64        `json:"intakeId"`
	Status   IntakeStatus `json:"status"`
}

// ListIntakesRequest is the JSON body sent with GET /api/intakes.
type ListIntakesRequest struct {
	ProfileID     int64  `json:"profileId"`
	DispenserUUID string `json:"dispenserUuid"`
}

// IntakeItem is one entry of the intake history. Dose amounts are absent
// until the dispenser reports them.
type IntakeItem struct {
	IntakeID        int64        `json:"intakeId"`
	Vitamin         *float64     `json:"vitamin,omitempty"`
	Melatonin       *float64     `json:"melatonin,omitempty"`
	Magnesium       *float64     `json:"magnesium,omitempty"`
	Electrolyte     *float64     `json:"electrolyte,omitempty"`
	Status          IntakeStatus `json:"status"`
	ProfileSnapshot *string      `json:"profileSnapshot,omitempty"`
	RequestedAt     *string      `json:"requestedAt,omitempty"`
	CompletedAt     *string      `json:"completedAt,omitempty"`
}

// IntakeHistory is the wrapper returned by GET /api/intakes.
type IntakeHistory struct {
	Items []IntakeItem `json:"items"`
	Count int          `json:"count"`
}
