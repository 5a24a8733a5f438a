package review

import "encoding/json"

// OptionalBool distinguishes an absent JSON field from an explicit null.
// Both is_approved and requires_clipping are tri-state: true, false, or null
// (undecided), and a PATCH body may set any of the three.
type OptionalBool struct {
	Set   bool
	Value *bool
}

// UnmarshalJSON marks the field as present and decodes its nullable value.
func (o *OptionalBool) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// Patch is a partial edit of the classification draft. Absent fields leave
// the draft untouched.
type Patch struct {
	IsApproved       OptionalBool `json:"is_approved"`
	TrickTypes       *[]string    `json:"trick_type"`
	TrickRanking     *int         `json:"trick_ranking"`
	TrickDifficulty  *int         `json:"trick_difficulty"`
	RequiresClipping OptionalBool `json:"requires_clipping"`
}

// Empty reports whether the patch touches no fields.
func (p Patch) Empty() bool {
	return !p.IsApproved.Set && p.TrickTypes == nil && p.TrickRanking == nil &&
		p.TrickDifficulty == nil && !p.RequiresClipping.Set
}
