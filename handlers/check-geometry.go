package handlers

import (
	"errors"
	"fmt"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/twpayne/go-geos"
)

var (
	// ErrInvalidGeometry is returned when an input line cannot form a unit.
	ErrInvalidGeometry = errors.New("invalid line geometry")
	// ErrMissingField is returned when a required attribute is not declared.
	ErrMissingField = errors.New("field not found")
)

// Error is one problem found on an input line. Only fatal errors stop a run;
// the others are logged and the line is processed as a unit whose failure is
// contained.
type Error struct {
	Ref          int    `json:"ref"`
	Part         int    `json:"part"`
	ErrorMessage string `json:"errorMessage"`
	Fatal        bool   `json:"fatal"`
}

func (e Error) Error() string {
	return fmt.Sprintf("feature %d part %d: %s", e.Ref, e.Part, e.ErrorMessage)
}

// CheckGeometry reports every problem of the input lines. Parts with fewer
// than two vertices cannot form a unit and are fatal. Lines GEOS considers
// invalid, such as zero-length lines, are reported but not fatal.
func CheckGeometry(fc *utils.FeatureCollection) []Error {
	var errs []Error

	ctx := geos.NewContext()
	for i, feature := range fc.Features {
		parts, err := utils.Parts(feature.Geom)
		if err != nil {
			errs = append(errs, Error{Ref: i, ErrorMessage: err.Error(), Fatal: true})
			continue
		}
		for p, part := range parts {
			if len(part) < 2 {
				errs = append(errs, Error{Ref: i, Part: p, ErrorMessage: fmt.Sprintf("%d vertices", len(part)), Fatal: true})
			}
		}
		if len(errs) > 0 && errs[len(errs)-1].Ref == i {
			continue
		}

		shape, err := utils.ToGEOS(ctx, feature.Geom)
		if err != nil {
			errs = append(errs, Error{Ref: i, ErrorMessage: err.Error()})
			continue
		}
		if !shape.IsValid() {
			errs = append(errs, Error{Ref: i, ErrorMessage: shape.IsValidReason()})
		}
		shape.Destroy()
	}
	return errs
}

// CheckLines logs every problem and fails with ErrInvalidGeometry only when
// an input line cannot form a unit.
func CheckLines(fc *utils.FeatureCollection, reporter *utils.Reporter) error {
	fatal := 0
	for _, e := range CheckGeometry(fc) {
		if e.Fatal {
			fatal++
			reporter.Log("Invalid input line: %v", e)
			continue
		}
		reporter.Log("Warning, input line may fail: %v", e)
	}
	if fatal == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d features", ErrInvalidGeometry, fatal, len(fc.Features))
}

// CheckField fails with ErrMissingField when the input does not declare name.
func CheckField(fc *utils.FeatureCollection, name string, reporter *utils.Reporter) error {
	if fc.HasField(name) {
		return nil
	}
	reporter.Log("Field %s is not found in the input lines, please check.", name)
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}
