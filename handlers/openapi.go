package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterOpenAPI registers minimal API documentation endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterOpenAPI(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, openAPIJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>identity — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the identity sync surface.
const openAPIJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "identity", "version": "v0.1.0" },
  "paths": {
    "/webhooks/idp": {
      "post": {
        "summary": "IdP lifecycle webhook (user.created / user.updated / user.deleted)",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"type":{"type":"string"},"data":{"type":"object","properties":{"id":{"type":"string"},"username":{"type":"string"},"first_name":{"type":"string"},"last_name":{"type":"string"},"email_addresses":{"type":"array","items":{"type":"object","properties":{"email_address":{"type":"string"}}}}}}}}}}},
        "responses": { "200": { "description": "event processed, {received: true}" }, "400": { "description": "invalid signature or payload" } }
      }
    },
    "/api/v1/users/me": {
      "get": { "summary": "Current federated user", "responses": { "200": { "description": "user record" }, "401": { "description": "not authenticated" } } }
    },
    "/api/v1/users/{id}": {
      "get": { "summary": "Fetch own user record", "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"integer"}}], "responses": { "200": { "description": "user record" }, "401": { "description": "not authenticated" }, "403": { "description": "not the owner" } } },
      "patch": { "summary": "Update own user record", "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"integer"}}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"username":{"type":"string"},"fullName":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated record" }, "400": { "description": "externalId is immutable" }, "403": { "description": "not the owner" } } }
    },
    "/health": { "get": { "summary": "Liveness", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness with per-dependency state", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
