package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// All endpoints answer with the same envelope: code 0 means success,
// anything else is a machine-distinguishable failure code.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
