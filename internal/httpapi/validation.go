package httpapi

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"attendboard/internal/attendance"
)

var validatorsOnce sync.Once

// registerValidators adds the attendance_status tag to gin's validator.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
			_, err := attendance.ParseStatus(fl.Field().String())
			return err == nil
		})
	})
}
