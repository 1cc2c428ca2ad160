package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints for the doctrack API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>doctrack API</title>
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

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "doctrack", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Document": {"type":"object","properties":{"id":{"type":"integer"},"title":{"type":"string"},"doc_type":{"type":"string"},"expiry_date":{"type":"string","format":"date"},"status":{"type":"string","enum":["active"]},"state":{"type":"string","enum":["active","expired"]},"created_at":{"type":"string","format":"date-time"},"updated_at":{"type":"string","format":"date-time"}}},
      "DocumentCreate": {"type":"object","required":["title","doc_type","expiry_date"],"properties":{"title":{"type":"string","minLength":1,"maxLength":200},"doc_type":{"type":"string","minLength":1,"maxLength":100},"expiry_date":{"type":"string","format":"date"}}},
      "Renew": {"type":"object","required":["new_expiry_date"],"properties":{"new_expiry_date":{"type":"string","format":"date"}}},
      "HistoryEntry": {"type":"object","properties":{"id":{"type":"integer"},"document_id":{"type":"integer"},"old_expiry_date":{"type":"string","format":"date"},"new_expiry_date":{"type":"string","format":"date"},"updated_at":{"type":"string","format":"date-time"}}},
      "ReminderResult": {"type":"object","properties":{"sent":{"type":"integer"},"mode":{"type":"string","enum":["email","webhook"]},"target":{"type":"string"},"details":{"type":"array","items":{"type":"string"}}}},
      "Error": {"type":"object","properties":{"detail":{"type":"string"}}}
    }
  },
  "paths": {
    "/documents": {
      "get": { "summary": "List documents by expiry date", "parameters": [{"name":"state","in":"query","schema":{"type":"string","enum":["active","expired"]}}], "responses": { "200": { "description": "documents" }, "422": { "description": "invalid state" } } },
      "post": { "summary": "Create a document", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/DocumentCreate"}}}}, "responses": { "200": { "description": "created document" }, "422": { "description": "validation error" }, "429": { "description": "rate limited" } } }
    },
    "/documents/expiring": {
      "get": { "summary": "Documents due within N days, overdue included", "parameters": [{"name":"days","in":"query","schema":{"type":"integer","minimum":1,"maximum":365,"default":30}}], "responses": { "200": { "description": "documents" }, "422": { "description": "days out of range" } } }
    },
    "/documents/clear": {
      "post": { "summary": "Delete every document and its history", "responses": { "200": { "description": "{status: cleared, deleted: n}" }, "429": { "description": "rate limited" } } }
    },
    "/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a document and its history", "responses": { "200": { "description": "{status: deleted, id}" }, "404": { "description": "not found" } } }
    },
    "/documents/{id}/delete": {
      "post": { "summary": "Delete a document (POST alias)", "responses": { "200": { "description": "{status: deleted, id}" }, "404": { "description": "not found" } } }
    },
    "/documents/{id}/renew": {
      "post": { "summary": "Move the expiry date and record history", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Renew"}}}}, "responses": { "200": { "description": "renewed document" }, "404": { "description": "not found" }, "422": { "description": "validation error" } } }
    },
    "/documents/{id}/history": {
      "get": { "summary": "Renewal history, most recent first", "responses": { "200": { "description": "history entries" }, "404": { "description": "not found" } } }
    },
    "/reminders/send": {
      "post": { "summary": "Dispatch reminders for due documents", "parameters": [{"name":"days","in":"query","schema":{"type":"integer","minimum":1,"maximum":365,"default":30}},{"name":"mode","in":"query","schema":{"type":"string","enum":["email","webhook"]}},{"name":"target","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "reminder result" }, "400": { "description": "invalid mode or target" }, "422": { "description": "days out of range" }, "429": { "description": "rate limited" }, "502": { "description": "sink failure" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
