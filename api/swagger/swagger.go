package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Reimbursement Portal API",
        "description": "Student competition reimbursement requests: submission, review and notification.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Requests", "description": "Reimbursement request lifecycle"},
        {"name": "Attachments", "description": "Signed document downloads"},
        {"name": "Authentication", "description": "Student and admin sign in"}
    ],
    "paths": {
        "/student-requests": {
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a reimbursement request",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "studentDetails", "in": "formData", "type": "string", "required": true, "description": "StudentDetails JSON"},
                    {"name": "teamDetails", "in": "formData", "type": "string", "description": "TeamDetails JSON"},
                    {"name": "competitionDetails", "in": "formData", "type": "string", "description": "CompetitionDetails JSON"},
                    {"name": "declaration", "in": "formData", "type": "string", "description": "Declaration JSON"},
                    {"name": "tickets", "in": "formData", "type": "file"},
                    {"name": "invitationLetter", "in": "formData", "type": "file"},
                    {"name": "certificates", "in": "formData", "type": "file"},
                    {"name": "undertaking", "in": "formData", "type": "file"},
                    {"name": "mandateForm", "in": "formData", "type": "file"},
                    {"name": "taForm", "in": "formData", "type": "file"},
                    {"name": "idCards", "in": "formData", "type": "file"},
                    {"name": "lastSemesterDmc", "in": "formData", "type": "file"},
                    {"name": "attendanceProof", "in": "formData", "type": "file"},
                    {"name": "idProof", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CreateRequestResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Payload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/{caseNumber}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get a request by case number",
                "parameters": [
                    {"name": "caseNumber", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/status/{status}": {
            "get": {
                "tags": ["Requests"],
                "summary": "List requests in one status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "path", "type": "string", "required": true, "enum": ["Pending", "Under Review", "Approved", "Rejected"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/all": {
            "get": {
                "tags": ["Requests"],
                "summary": "List every request",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/{caseNumber}/status": {
            "patch": {
                "tags": ["Requests"],
                "summary": "Change the status of a request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "caseNumber", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/{caseNumber}/attachments/{key}/url": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Issue a signed download link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "caseNumber", "in": "path", "type": "string", "required": true},
                    {"name": "key", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-requests/export": {
            "get": {
                "tags": ["Requests"],
                "summary": "Export requests as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/attachments/download": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Download an attachment via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/signup": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/admin/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate an administrator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an admin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/verify": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateRequestResponse": {
            "type": "object",
            "properties": {
                "caseNumber": {"type": "string", "example": "REQ25040001"},
                "message": {"type": "string"},
                "emailError": {"type": "string"}
            }
        },
        "UpdateStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["Pending", "Under Review", "Approved", "Rejected"]},
                "adminComments": {"type": "string"}
            },
            "required": ["status"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SignupRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "phone": {"type": "string"},
                "eid": {"type": "string"}
            },
            "required": ["name", "email", "password"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
