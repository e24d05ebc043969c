package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/driveindex/logger"
)

const (
	TagDrive       = "drive"
	TagSearchQuery = "search_query"
)

type Validator struct {
	validator     *validator.Validate
	logger        logger.Logger
	customTagOnce sync.Once
	customTags    map[string]customTag
}

// customTag pairs a validation function with the error reported for a field
// that fails it.
type customTag struct {
	validate validator.Func
	describe func(fieldErr validator.FieldError) error
}

func New(logger logger.Logger) (*Validator, error) {
	v := &Validator{validator: validator.New(), logger: logger}
	v.validator.RegisterTagNameFunc(jsonFieldName)

	for tag, custom := range v.getCustomTags() {
		if err := v.validator.RegisterValidation(tag, custom.validate); err != nil {
			logger.Error("failed to register custom validation", "tag", tag, "err", err.Error())
			return nil, err
		}
	}

	return v, nil
}

// Validate checks i against its validate tags and reports the first failure.
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	v.logger.Warn("validation failed", "err", err.Error())

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	fieldErr := validationErrs[0]
	if custom, ok := v.getCustomTags()[fieldErr.Tag()]; ok {
		return custom.describe(fieldErr)
	}

	switch fieldErr.Tag() {
	case "required":
		return fmt.Errorf("missing required field '%s'", fieldErr.Field())
	case "unique":
		return fmt.Errorf("field '%s' lists the same value more than once", fieldErr.Field())
	case "min", "max", "dive":
		return fmt.Errorf("value or length of field '%s' is not in the expected range", fieldErr.Field())
	}
	return err
}

func (v *Validator) getCustomTags() map[string]customTag {
	v.customTagOnce.Do(func() {
		v.customTags = map[string]customTag{
			TagDrive: {
				validate: v.isIndexableDrive,
				describe: func(fieldErr validator.FieldError) error {
					return fmt.Errorf("invalid drive %q: must be an existing absolute directory", fieldErr.Value())
				},
			},
			TagSearchQuery: {
				validate: v.isSearchableQuery,
				describe: func(validator.FieldError) error {
					return errors.New("invalid query: nothing to search for")
				},
			},
		}
	})
	return v.customTags
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// isIndexableDrive accepts absolute paths of existing directories.
func (v *Validator) isIndexableDrive(fl validator.FieldLevel) bool {
	drive := fl.Field().String()

	switch {
	case strings.TrimSpace(drive) == "":
		v.logger.Warn("drive is empty")
		return false
	case strings.ContainsRune(drive, 0):
		v.logger.Warn("drive has a null byte", "drive", drive)
		return false
	case !filepath.IsAbs(drive):
		v.logger.Warn("drive is not an absolute path", "drive", drive)
		return false
	}

	info, err := os.Stat(drive)
	if err != nil {
		v.logger.Info("drive cannot be read", "drive", drive, "err", err.Error())
		return false
	}
	if !info.IsDir() {
		v.logger.Info("drive is not a directory", "drive", drive)
		return false
	}

	return true
}

// isSearchableQuery rejects queries made only of whitespace and quotes.
func (v *Validator) isSearchableQuery(fl validator.FieldLevel) bool {
	query := fl.Field().String()
	if strings.Trim(query, "\" \t\r\n") == "" {
		v.logger.Warn("query has no terms", "query", query)
		return false
	}

	return true
}
