package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The API speaks the same wire format the client decodes: entities are
// returned as plain JSON, failures as {"error": "..."}.

// Error sends a failure envelope with the given status
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// BadRequest sends a 400 Bad Request error
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, err)
}

// NotFound sends a 404 Not Found error
func NotFound(c *gin.Context, err error) {
	Error(c, http.StatusNotFound, err)
}

// Internal sends a 500 Internal Server Error
func Internal(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, err)
}

// OK sends a 200 response with the entity as the body
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with the entity as the body
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends an empty 204 response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
