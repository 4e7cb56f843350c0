package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/pkg/apperror"
)

// Success sends a successful JSON response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 No Content response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RawJSON writes an already encoded JSON document unchanged
func RawJSON(c *gin.Context, status int, body []byte) {
	c.Data(status, "application/json", body)
}

// Error sends an RFC 7807 error response
func Error(c *gin.Context, err *apperror.AppError) {
	if err.RequestID == "" {
		err.RequestID = c.GetString("request_id")
	}
	if err.Instance == "" && c.Request != nil {
		err.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", "application/problem+json")
	c.JSON(err.Status, err)
}
