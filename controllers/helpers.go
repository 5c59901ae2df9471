package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var registerTagNames sync.Once

// RegisterValidation makes binding errors report JSON field names.
func RegisterValidation() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON decodes the body into req and writes a 400 when it is malformed or fails
// validation.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": describe(err)})
		return false
	}
	return true
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// respond writes err, logging server-side failures with their cause.
func respond(c *gin.Context, log *zap.Logger, err error) {
	appErr := apperrors.As(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.FromContext(c, log).Error(appErr.Message,
			zap.String("route", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr.Err),
		)
	}
	apperrors.Respond(c, appErr)
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
