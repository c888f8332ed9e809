package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名にはJSONのキーを使う
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest はJSONボディを読み込んで検証する。
// 失敗した場合はフィールドごとのメッセージを含むVALIDATION_FAILEDを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	l, _ := i18n.FromContext(r.Context())

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewValidationError(map[string]string{
			"body": translate(l, "validation.body", ""),
		})
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(map[string]string{
			"body": translate(l, "validation.invalid", ""),
		})
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(l, fe)
	}
	return model.NewValidationError(fields)
}

// fieldMessage は検証タグに対応する表示言語のメッセージを返す。
func fieldMessage(l *i18n.Localizer, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "email", "min", "max", "uuid":
		return translate(l, "validation."+fe.Tag(), fe.Param())
	default:
		return translate(l, "validation.invalid", fe.Param())
	}
}

func translate(l *i18n.Localizer, key, param string) string {
	msg := key
	if l != nil {
		msg = l.Translate(key)
	}
	return strings.ReplaceAll(msg, "{param}", param)
}
