package handler

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// RegisterValidators 向 gin 的校验引擎注册自定义标签
//   - hour:     0..24 的整点
//   - dateonly: YYYY-MM-DD
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("hour", validHour); err != nil {
		return err
	}
	return v.RegisterValidation("dateonly", validDateOnly)
}

func validHour(fl validator.FieldLevel) bool {
	h := fl.Field().Int()
	return h >= 0 && h <= 24
}

func validDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}
