package models

// Gender of a profile as understood by the backend.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Condition codes sent in Profile.Conditions.
const (
	ConditionPregnant = "PREGNANT"
)

// Profile is a family member's physiological attributes and lifestyle tags.
// ID is assigned by the server and is zero before creation.
//
// JSON example:
//
//	{
//	  "id": 7,
//	  "name": "Mina",
//	  "height": 162.5,
//	  "weight": 51.2,
//	  "gender": "FEMALE",
//	  "tags": ["ALCOHOL", "CAFFEINE", "STRESS"],
//	  "conditions": ["PREGNANT"]
//	}
type Profile struct {
	ID         int64    `json:"id,omitempty"`
	Name       string   `json:"name"`
	Height     float64  `json:"height"`
	Weight     float64  `json:"weight"`
	Gender     Gender   `json:"gender"`
	Tags       []string `json:"tags"`
	Conditions []string `json:"conditions"`
}

// CreateProfileRequest is the body of POST /api/profiles.
type CreateProfileRequest struct {
	Name       string   `json:"name"`
	Height     float64  `json:"height"`
	Weight     float64  `json:"weight"`
	Gender     Gender   `json:"gender"`
	Tags       []string `json:"tags"`
	Conditions []string `json:"conditions"`
}

// ProfileCreated is the response of POST /api/profiles. Only id and name are
// echoed back; other attributes are filled in by the next list call.
type ProfileCreated struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProfileList is the wrapper returned by GET /api/profiles.
type ProfileList struct {
	Items []Profile `json:"items"`
	Count int       `json:"count"`
}
