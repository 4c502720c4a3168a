// Package validation turns struct-tag and programmatic checks into
// errors.AppError values with per-field details.
//
//	type Record struct {
//	    Medicine string `json:"medicine" validate:"notblank"`
//	}
//	err := validation.Validate(rec)
//
// Programmatic checks collect errors the same way:
//
//	v := validation.New()
//	v.Required("livekit.url", cfg.URL)
//	err := v.Err()
package validation
