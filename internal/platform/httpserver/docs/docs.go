// Package docs registers the OpenAPI document served under /swagger/.
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
        "/api/booth/v1/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Begin a verification session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.SessionResponse"}}
                }
            }
        },
        "/api/booth/v1/sessions/{session_id}": {
            "delete": {
                "tags": ["booth"],
                "summary": "Abandon a verification session",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/booth/v1/sessions/{session_id}/qr": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Submit the voter id read from the QR code",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SubmitQRRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.QRVerifiedResponse"}},
                    "403": {"description": "Underage", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not registered", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/booth/v1/sessions/{session_id}/fingerprint": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Submit the fingerprint scanner payload",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SubmitFingerprintRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SessionResponse"}},
                    "401": {"description": "Fingerprint mismatch", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/booth/v1/sessions/{session_id}/face": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Submit a base64 still frame for face verification",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SubmitFaceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SessionResponse"}},
                    "401": {"description": "Face mismatch", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "422": {"description": "No face detected or no enrolled face", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/booth/v1/sessions/{session_id}/vote": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Cast the single vote of a verified voter",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CastVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.VoteResponse"}},
                    "400": {"description": "Invalid candidate", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Already voted", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Outcome unknown", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/booth/v1/voters/{voter_id}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Read a voter's public profile and voted flag",
                "parameters": [
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VoterProfileResponse"}}
                }
            }
        },
        "/api/booth/v1/candidates": {
            "get": {
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "List the configured candidates",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CandidatesResponse"}}}
            }
        },
        "/api/booth/v1/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["booth"],
                "summary": "Tally votes per candidate",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ResultsResponse"}}}
            }
        },
        "/api/admin/v1/voters": {
            "get": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List enrolled voters, newest first",
                "parameters": [
                    {"type": "string", "name": "X-Admin-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ListVotersResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Enroll a voter",
                "parameters": [
                    {"type": "string", "name": "X-Admin-Id", "in": "header", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.EnrollVoterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.AdminVoterResponse"}},
                    "409": {"description": "Voter exists", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/admin/v1/voters/{voter_id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Update a voter",
                "parameters": [
                    {"type": "string", "name": "X-Admin-Id", "in": "header", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.UpdateVoterRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AdminVoterResponse"}}}
            },
            "delete": {
                "tags": ["admin"],
                "summary": "Delete a voter",
                "parameters": [
                    {"type": "string", "name": "X-Admin-Id", "in": "header", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/admin/v1/voters/{voter_id}/reset-vote": {
            "post": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Reset a voter's voted flag",
                "parameters": [
                    {"type": "string", "name": "X-Admin-Id", "in": "header", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AdminVoterResponse"}}}
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "http.SessionResponse": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "stage": {"type": "string", "enum": ["awaiting_qr", "awaiting_fingerprint", "awaiting_face", "verified"]},
                "voter_id": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "http.SubmitQRRequest": {
            "type": "object",
            "properties": {"voter_id": {"type": "string"}}
        },
        "http.SubmitFingerprintRequest": {
            "type": "object",
            "properties": {"payload": {"type": "string"}}
        },
        "http.SubmitFaceRequest": {
            "type": "object",
            "properties": {"image_base64": {"type": "string"}}
        },
        "http.CastVoteRequest": {
            "type": "object",
            "properties": {"candidate": {"type": "string"}}
        },
        "http.VoterProfileResponse": {
            "type": "object",
            "properties": {
                "voter_id": {"type": "string"},
                "name": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "phone": {"type": "string"},
                "has_voted": {"type": "boolean"}
            }
        },
        "http.QRVerifiedResponse": {
            "type": "object",
            "properties": {
                "session": {"$ref": "#/definitions/http.SessionResponse"},
                "voter": {"$ref": "#/definitions/http.VoterProfileResponse"}
            }
        },
        "http.VoteResponse": {
            "type": "object",
            "properties": {
                "vote_id": {"type": "string"},
                "voter_id": {"type": "string"},
                "candidate": {"type": "string"},
                "cast_at": {"type": "string", "format": "date-time"}
            }
        },
        "http.CandidatesResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"type": "string"}}}
        },
        "http.ResultsResponse": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {"candidate": {"type": "string"}, "votes": {"type": "integer"}}
                    }
                },
                "total_votes": {"type": "integer"}
            }
        },
        "http.EnrollVoterRequest": {
            "type": "object",
            "properties": {
                "voter_id": {"type": "string"},
                "name": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "phone": {"type": "string"},
                "fingerprint_template": {"type": "string"},
                "face_image_base64": {"type": "string"},
                "face_template_base64": {"type": "string"}
            }
        },
        "http.UpdateVoterRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "phone": {"type": "string"},
                "fingerprint_template": {"type": "string"},
                "face_image_base64": {"type": "string"},
                "face_template_base64": {"type": "string"}
            }
        },
        "http.AdminVoterResponse": {
            "type": "object",
            "properties": {
                "voter_id": {"type": "string"},
                "name": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "phone": {"type": "string"},
                "has_voted": {"type": "boolean"},
                "has_fingerprint": {"type": "boolean"},
                "has_face": {"type": "boolean"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "http.ListVotersResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/http.AdminVoterResponse"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ballot Booth API",
	Description:      "Voter verification (QR, fingerprint, face) and single-vote casting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
