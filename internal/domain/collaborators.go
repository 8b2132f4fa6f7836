package domain

// Upstream collaborator contracts. The vision and VIN-registry services
// live outside this system; their outputs may accompany a valuation request
// and refine the raw query parameters before normalization. Neither is
// required for the pipeline to run.

// VisionHints carries optional trim/condition hints from the image
// feature-detection service.
type VisionHints struct {
	Trim        string  `json:"trim,omitempty"`
	Condition   string  `json:"condition,omitempty"`
	DamageNotes string  `json:"damage_notes,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// RegistryRecord carries vehicle identity data from a VIN-registry lookup.
type RegistryRecord struct {
	Make       string  `json:"make,omitempty"`
	Model      string  `json:"model,omitempty"`
	Trim       string  `json:"trim,omitempty"`
	Drivetrain string  `json:"drivetrain,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// registryOverrideConfidence is the confidence at which registry data
// overrides user-supplied identity fields instead of only filling gaps.
const registryOverrideConfidence = 0.8

// ApplyVisionHints fills empty query fields from vision hints. Hints never
// override what the caller typed; damage notes are appended to the
// description so the severity heuristics can see them.
func (p QueryParams) ApplyVisionHints(h VisionHints) QueryParams {
	if p.Trim == "" {
		p.Trim = h.Trim
	}
	if p.Condition == "" {
		p.Condition = h.Condition
	}
	if h.DamageNotes != "" {
		if p.Description == "" {
			p.Description = h.DamageNotes
		} else {
			p.Description = p.Description + " " + h.DamageNotes
		}
	}
	return p
}

// ApplyRegistryRecord merges VIN-registry identity data into the query.
// High-confidence records override user-supplied make/model/trim; lower
// confidence only fills empty fields.
func (p QueryParams) ApplyRegistryRecord(r RegistryRecord) QueryParams {
	override := r.Confidence >= registryOverrideConfidence
	if r.Make != "" && (override || p.Make == "") {
		p.Make = r.Make
	}
	if r.Model != "" && (override || p.Model == "") {
		p.Model = r.Model
	}
	if r.Trim != "" && (override || p.Trim == "") {
		p.Trim = r.Trim
	}
	return p
}
