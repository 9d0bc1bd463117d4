// Package docs registers the dashboard's OpenAPI description with swag.
// Regenerate with: swag init -g cmd/dashboard/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/recalls": {
            "get": {
                "produces": ["application/json"],
                "tags": ["recalls"],
                "summary": "List recalls",
                "parameters": [
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"},
                    {"type": "string", "description": "acknowledged, unacknowledged, reviewed or pending", "name": "status", "in": "query"},
                    {"type": "string", "description": "received_asc, created_desc or created_asc", "name": "sort", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/recalls/{id}/acknowledge": {
            "put": {
                "tags": ["recalls"],
                "summary": "Acknowledge a recall",
                "parameters": [{"type": "string", "description": "Recall ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/recalls/{id}/unacknowledge": {
            "put": {
                "tags": ["recalls"],
                "summary": "Withdraw a recall acknowledgment",
                "parameters": [{"type": "string", "description": "Recall ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/recalls/{id}/review": {
            "put": {
                "tags": ["recalls"],
                "summary": "Mark a recall reviewed",
                "parameters": [{"type": "string", "description": "Recall ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/recalls/{id}/unreview": {
            "put": {
                "tags": ["recalls"],
                "summary": "Return a recall to pending review",
                "parameters": [{"type": "string", "description": "Recall ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/recalls/{id}/classification": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["recalls"],
                "summary": "Change a recall's classification",
                "parameters": [
                    {"type": "string", "description": "Recall ID", "name": "id", "in": "path", "required": true},
                    {"description": "New classification", "name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"classification": {"type": "string"}}}}
                ],
                "responses": {"204": {"description": "No Content"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/users": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "List users",
                "parameters": [{"type": "string", "description": "Email or name contains", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/users/{uid}/role": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["users"],
                "summary": "Set a user's role",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "uid", "in": "path", "required": true},
                    {"description": "user or admin", "name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"role": {"type": "string"}}}}
                ],
                "responses": {"204": {"description": "No Content"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Upload history",
                "parameters": [{"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Upload a recall notice",
                "parameters": [{"type": "file", "description": "PDF or image of the recall notice", "name": "recall", "in": "formData", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "415": {"description": "Unsupported Media Type"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/auth/login": {
            "get": {"tags": ["auth"], "summary": "Start sign-in", "responses": {"302": {"description": "Found"}}}
        },
        "/auth/callback": {
            "get": {
                "tags": ["auth"],
                "summary": "Finish sign-in",
                "parameters": [
                    {"type": "string", "description": "OAuth state", "name": "state", "in": "query", "required": true},
                    {"type": "string", "description": "Authorization code", "name": "code", "in": "query", "required": true}
                ],
                "responses": {"302": {"description": "Found"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Sign out", "responses": {"204": {"description": "No Content"}}}
        },
        "/health": {
            "get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/health/ready": {
            "get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "RapidRecall Dashboard API",
	Description:      "Session, page and recall action endpoints of the RapidRecall dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
