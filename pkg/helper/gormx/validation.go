package gormx

import (
	"reflect"

	"gorm.io/gorm"

	"fsca/pkg/helper"
)

// NewValidationPlugin validate models with `validate` tags before create and update
func NewValidationPlugin() gorm.Plugin { return &validationImpl{} }

type validationImpl struct{}

func (v *validationImpl) Name() string { return "validation" }
func (v *validationImpl) Initialize(db *gorm.DB) error {
	callback := db.Callback()
	if callback.Create().Get("validations:validate") == nil {
		if err := callback.Create().Before("gorm:before_create").Register("validations:validate", v.validate); err != nil {
			return err
		}
	}

	if callback.Update().Get("validations:validate") == nil {
		if err := callback.Update().Before("gorm:before_update").Register("validations:validate", v.validate); err != nil {
			return err
		}
	}

	return nil
}

func (v *validationImpl) validate(db *gorm.DB) {
	if db.Statement.Model == nil {
		return
	}

	value := reflect.ValueOf(db.Statement.Model)
	if value.Kind() == reflect.Pointer {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return
	}

	if err := helper.ValidateStruct(db.Statement.Model); err != nil {
		db.AddError(err)
	}
}
