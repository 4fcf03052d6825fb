package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Provider Admission API",
        "description": "Provider application intake, scoring and review",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Applications", "description": "Provider application intake"},
        {"name": "Admin", "description": "Review queue, analytics and exports"}
    ],
    "paths": {
        "/applications/validate": {
            "post": {
                "tags": ["Applications"],
                "summary": "Validate an application payload without submitting it",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplicationPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/score": {
            "post": {
                "tags": ["Applications"],
                "summary": "Preview the automated score for a payload",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplicationPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications": {
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a provider application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplicationPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active application exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/me": {
            "get": {
                "tags": ["Applications"],
                "summary": "List the caller's applications",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}": {
            "get": {
                "tags": ["Applications"],
                "summary": "Get an application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications": {
            "get": {
                "tags": ["Admin"],
                "summary": "List applications for review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "tier", "in": "query", "type": "string"},
                    {"name": "auto_approved", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications/{id}/transition": {
            "post": {
                "tags": ["Admin"],
                "summary": "Move an application to a new status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionApplicationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition or concurrent change", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications/{id}/notify": {
            "post": {
                "tags": ["Admin"],
                "summary": "Re-send the status notification",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications/analytics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Aggregate application analytics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export applications as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "tier", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/admin/applications/events": {
            "get": {
                "tags": ["Admin"],
                "summary": "Websocket stream of application events",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "access_token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        },
        "/admin/system/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Instrumentation snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CaseStudy": {
            "type": "object",
            "properties": {
                "client_name": {"type": "string"},
                "industry": {"type": "string"},
                "challenge": {"type": "string"},
                "solution": {"type": "string"},
                "results_achieved": {"type": "string"},
                "metrics": {"type": "string"}
            }
        },
        "ApplicationPayload": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "location": {"type": "string"},
                "availability": {"type": "string"},
                "business_name": {"type": "string"},
                "website_url": {"type": "string"},
                "bio": {"type": "string"},
                "years_experience": {"type": "string", "enum": ["5+", "3-5", "1-3", "0-1"]},
                "expertise_areas": {"type": "array", "items": {"type": "string"}},
                "platforms": {"type": "array", "items": {"type": "string"}},
                "case_studies": {"type": "array", "items": {"$ref": "#/definitions/CaseStudy"}},
                "portfolio_url": {"type": "string"},
                "linkedin_url": {"type": "string"},
                "performance_guarantee": {"type": "string"},
                "hourly_rate": {"type": "string"},
                "agree_to_terms": {"type": "boolean"},
                "agree_to_background_check": {"type": "boolean"}
            }
        },
        "TransitionApplicationRequest": {
            "type": "object",
            "properties": {
                "expected_status": {"type": "string", "enum": ["submitted", "in_review", "approved", "rejected"]},
                "status": {"type": "string", "enum": ["submitted", "in_review", "approved", "rejected"]},
                "reviewer_notes": {"type": "string"},
                "technical_assessment_score": {"type": "integer", "minimum": 0, "maximum": 100}
            },
            "required": ["expected_status", "status"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
