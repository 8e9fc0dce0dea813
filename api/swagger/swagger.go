package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Supervision Portal API",
        "description": "Multi-tenant school-supervision portal: periodic report reconciliation, artifact lifecycle and consolidation dispatch",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Reports", "description": "Periodic report families: attendance, council-minutes, quarterly"},
        {"name": "Events", "description": "Shared event calendar"},
        {"name": "Evidence", "description": "Photographic evidence records"},
        {"name": "Documents", "description": "Shared document repository with allow-list visibility"},
        {"name": "Files", "description": "Artifact streaming"},
        {"name": "Dashboard", "description": "Submission overview"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a portal account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current account info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/{family}": {
            "get": {
                "tags": ["Reports"],
                "summary": "List periodic reports",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "family", "in": "path", "required": true, "type": "string", "enum": ["attendance", "council-minutes", "quarterly"]},
                    {"name": "school", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Submit a periodic report (school accounts only)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "family", "in": "path", "required": true, "type": "string", "enum": ["attendance", "council-minutes", "quarterly"]},
                    {"name": "date", "in": "formData", "type": "string"},
                    {"name": "month", "in": "formData", "type": "integer"},
                    {"name": "year", "in": "formData", "type": "integer"},
                    {"name": "quarter", "in": "formData", "type": "integer"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation or size-cap failure"}
                }
            }
        },
        "/api/v1/reports/{family}/{id}": {
            "delete": {
                "tags": ["Reports"],
                "summary": "Delete a periodic report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "family", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owning school"}
                }
            }
        },
        "/api/v1/reports/{family}/send-email": {
            "post": {
                "tags": ["Reports"],
                "summary": "Consolidate one period across schools and email the workbook",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "family", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConsolidateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Dispatched", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No matching records"}
                }
            }
        },
        "/api/v1/events": {
            "get": {
                "tags": ["Events"],
                "summary": "List calendar events",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "month", "in": "query", "type": "integer"},
                    {"name": "year", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Events"],
                "summary": "Create a calendar event (admin)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "event_type", "in": "formData", "required": true, "type": "string"},
                    {"name": "start_date", "in": "formData", "required": true, "type": "string"},
                    {"name": "end_date", "in": "formData", "type": "string"},
                    {"name": "school_id", "in": "formData", "type": "string"},
                    {"name": "image", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Get one calendar event",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Events"],
                "summary": "Update a calendar event (admin)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Events"],
                "summary": "Delete a calendar event (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/events/calendar.pdf": {
            "get": {
                "tags": ["Events"],
                "summary": "Export the monthly calendar as PDF (admin)",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "month", "in": "query", "required": true, "type": "integer"},
                    {"name": "year", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/api/v1/evidence": {
            "get": {
                "tags": ["Evidence"],
                "summary": "List evidence records",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Evidence"],
                "summary": "Upload an evidence record with 1-10 photos",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "school_id", "in": "formData", "type": "string"},
                    {"name": "photos", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Photo count or type rejected"}
                }
            }
        },
        "/api/v1/evidence/{id}": {
            "delete": {
                "tags": ["Evidence"],
                "summary": "Delete an evidence record and all of its photos",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List repository documents visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a repository document (admin)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "allowed_school_ids", "in": "formData", "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents/{id}": {
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a repository document (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents/{id}/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document via its signed token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Document bytes"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/api/v1/documents/send-email": {
            "post": {
                "tags": ["Documents"],
                "summary": "Consolidate selected documents and email the workbook (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConsolidateDocumentsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Dispatched", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/files/{name}": {
            "get": {
                "tags": ["Files"],
                "summary": "Stream a stored artifact",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Artifact bytes"},
                    "404": {"description": "Unknown artifact"}
                }
            }
        },
        "/api/v1/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Per-school submission counts for one month (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "month", "in": "query", "type": "integer"},
                    {"name": "year", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ConsolidateRequest": {
            "type": "object",
            "required": ["recipients"],
            "properties": {
                "date": {"type": "string"},
                "month": {"type": "integer"},
                "year": {"type": "integer"},
                "quarter": {"type": "integer"},
                "recipients": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ConsolidateDocumentsRequest": {
            "type": "object",
            "required": ["document_ids", "recipients"],
            "properties": {
                "document_ids": {"type": "array", "items": {"type": "string"}},
                "recipients": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
