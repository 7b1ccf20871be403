package models

// RegisterDispenserRequest is the body of POST /api/dispensers.
type RegisterDispenserRequest struct {
	DispenserUUID string `json:"dispenserUuid"`
}

// RegisterDispenserResponse carries the canonical uuid chosen by the server.
type RegisterDispenserResponse struct {
	DispenserUUID string `json:"dispenserUuid"`
}
