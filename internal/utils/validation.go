package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"example.com/eazyy/fulfillment/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json field names so messages match the request body
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("scan_kind", func(fl validator.FieldLevel) bool {
		kind := fl.Field().String()
		if kind == "" {
			return true
		}
		_, ok := models.TransitionFor(models.ScanKind(kind))
		return ok
	})
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}

// ValidationMessage renders the first validation failure as a short
// human readable message
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a uuid", fe.Field())
	case "scan_kind":
		return fmt.Sprintf("unknown scan kind: %v", fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// IsUnknownScanKind reports whether err failed on the scan_kind rule
func IsUnknownScanKind(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == "scan_kind" {
			return true
		}
	}
	return false
}
