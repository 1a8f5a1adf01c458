package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Kelas Bersih API",
        "description": "Classroom cleaning gamification backend",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh and account management"},
        {"name": "Classes", "description": "Classes and join codes"},
        {"name": "Groups", "description": "Groups and memberships"},
        {"name": "Tasks", "description": "Cleaning tasks"},
        {"name": "Submissions", "description": "Proof photos and review decisions"},
        {"name": "Badges", "description": "Badge catalog and awards"},
        {"name": "Leaderboard", "description": "Class rankings and exports"},
        {"name": "Attendance", "description": "Daily attendance"}
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
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/classes/join": {
            "post": {
                "tags": ["Classes"],
                "summary": "Join class via code",
                "responses": {
                    "201": {"description": "Student placed in group"},
                    "409": {"description": "Already in a group in this class"}
                }
            }
        },
        "/api/v1/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit proof photo",
                "consumes": ["multipart/form-data"],
                "responses": {
                    "201": {"description": "Pending submission created"},
                    "409": {"description": "Duplicate pending submission"},
                    "412": {"description": "Student has no group in this class"}
                }
            },
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions (review queue)",
                "responses": {
                    "200": {"description": "Paginated submissions"}
                }
            }
        },
        "/api/v1/submissions/{id}/decision": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Approve or reject a pending submission",
                "responses": {
                    "200": {"description": "Decision applied"},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/api/v1/classes/{classId}/leaderboard": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Class leaderboard",
                "responses": {
                    "200": {"description": "Ranked groups"}
                }
            }
        },
        "/api/v1/attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark attendance for a day",
                "responses": {
                    "200": {"description": "Record upserted"}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
