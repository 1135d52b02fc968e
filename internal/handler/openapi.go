package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/triageops/controlplane/docs"
)

// OpenAPIDoc returns the hand-authored OpenAPI document registered by
// package docs.
func OpenAPIDoc(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(docs.SwaggerInfo.ReadDoc()))
}
