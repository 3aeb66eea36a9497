package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CampusKit Timetable API",
        "description": "Timetable scheduling, conflict detection and bulk operations for college batches",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Timetable", "description": "Single timetable entry CRUD and validation"},
        {"name": "Calendar", "description": "Holidays and exam periods"},
        {"name": "Templates", "description": "Recurrence templates"},
        {"name": "TimeSlots", "description": "Period definitions"},
        {"name": "BulkOps", "description": "Clone, faculty replacement, rescheduling, template application"},
        {"name": "Undo", "description": "Deletion undo ledger"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email and password",
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
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/entries": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List timetable entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "type": "string"},
                    {"name": "entryType", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "includeInactive", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Create a timetable entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created, possibly with warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/entries/validate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Run conflict detection without persisting",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateEntriesRequest"}}
                ],
                "responses": {
                    "200": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/entries/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get entry by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Timetable"],
                "summary": "Update an entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Soft-delete an entry, returns an undo handle",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Undo handle", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/calendar/holidays": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List holidays",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a holiday",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateHolidayRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/calendar/holidays/{id}": {
            "delete": {
                "tags": ["Calendar"],
                "summary": "Soft-delete a holiday, returns an undo handle",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Undo handle", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/calendar/exam-periods": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List exam periods",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create an exam period",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamPeriodRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List templates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Templates"],
                "summary": "Create a recurrence template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/templates/{id}": {
            "get": {
                "tags": ["Templates"],
                "summary": "Get template by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Templates"],
                "summary": "Deactivate a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/templates/{id}/preview": {
            "get": {
                "tags": ["Templates"],
                "summary": "Preview generated entries for a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Drafts, skipped dates and conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/time-slots": {
            "get": {
                "tags": ["TimeSlots"],
                "summary": "List time slots",
                "parameters": [
                    {"name": "includeInactive", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["TimeSlots"],
                "summary": "Create a time slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTimeSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/clone": {
            "post": {
                "tags": ["BulkOps"],
                "summary": "Clone a batch's timetable onto another batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CloneRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview (dryRun or validateOnly)", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted for execution", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejected with conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/faculty-replace": {
            "post": {
                "tags": ["BulkOps"],
                "summary": "Replace one faculty with another across entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FacultyReplaceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejected with conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/reschedule": {
            "post": {
                "tags": ["BulkOps"],
                "summary": "Move dated entries from one window to another",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejected with conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/apply-template": {
            "post": {
                "tags": ["BulkOps"],
                "summary": "Expand a recurrence template onto target batches",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TemplateApplyRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejected with conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/operations": {
            "get": {
                "tags": ["BulkOps"],
                "summary": "List the caller's bulk operations",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/bulk/operations/{id}": {
            "get": {
                "tags": ["BulkOps"],
                "summary": "Get a bulk operation's status and results",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/timetable/bulk/operations/{id}/cancel": {
            "post": {
                "tags": ["BulkOps"],
                "summary": "Request cooperative cancellation of a bulk operation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Cancellation requested", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already terminal"}
                }
            }
        },
        "/api/v1/undo/{id}": {
            "post": {
                "tags": ["Undo"],
                "summary": "Restore a recently deleted record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown handle or wrong requester"},
                    "410": {"description": "Handle expired"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateEntryRequest": {
            "type": "object",
            "required": ["batchId", "timeSlotId", "dayOfWeek"],
            "properties": {
                "batchId": {"type": "string"},
                "timeSlotId": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "date": {"type": "string"},
                "entryType": {"type": "string"},
                "notes": {"type": "string"},
                "lesson": {"type": "object"},
                "event": {"type": "object"}
            }
        },
        "ValidateEntriesRequest": {
            "type": "object",
            "required": ["entries"],
            "properties": {
                "entries": {"type": "array", "items": {"$ref": "#/definitions/CreateEntryRequest"}}
            }
        },
        "UpdateEntryRequest": {
            "type": "object",
            "properties": {
                "timeSlotId": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "date": {"type": "string"},
                "notes": {"type": "string"},
                "facultyId": {"type": "string"}
            }
        },
        "CreateHolidayRequest": {
            "type": "object",
            "required": ["date", "name", "scope"],
            "properties": {
                "date": {"type": "string"},
                "name": {"type": "string"},
                "scope": {"type": "string", "enum": ["INSTITUTION", "DEPARTMENT"]},
                "departmentId": {"type": "string"},
                "recurring": {"type": "boolean"}
            }
        },
        "CreateExamPeriodRequest": {
            "type": "object",
            "required": ["name", "startDate", "endDate"],
            "properties": {
                "name": {"type": "string"},
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "departmentId": {"type": "string"},
                "blockRegular": {"type": "boolean"}
            }
        },
        "CreateTemplateRequest": {
            "type": "object",
            "required": ["name", "batchId", "subjectId", "facultyId", "timeSlotId", "dayOfWeek", "frequency", "startDate", "totalHours"],
            "properties": {
                "name": {"type": "string"},
                "batchId": {"type": "string"},
                "subjectId": {"type": "string"},
                "facultyId": {"type": "string"},
                "timeSlotId": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "frequency": {"type": "string", "enum": ["DAILY", "WEEKLY", "MONTHLY"]},
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "totalHours": {"type": "integer"}
            }
        },
        "CreateTimeSlotRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "startMinute": {"type": "integer"},
                "endMinute": {"type": "integer"},
                "sortOrder": {"type": "integer"}
            }
        },
        "BulkOptions": {
            "type": "object",
            "properties": {
                "dryRun": {"type": "boolean"},
                "validateOnly": {"type": "boolean"},
                "conflictPolicy": {"type": "string", "enum": ["STOP", "SKIP", "OVERRIDE"]},
                "excludeWeekends": {"type": "boolean"},
                "respectBlackouts": {"type": "boolean"},
                "undoTtlSeconds": {"type": "integer"}
            }
        },
        "CloneRequest": {
            "type": "object",
            "required": ["sourceBatchId", "targetBatchId"],
            "properties": {
                "sourceBatchId": {"type": "string"},
                "targetBatchId": {"type": "string"},
                "dateFrom": {"type": "string"},
                "dateTo": {"type": "string"},
                "preserveFaculty": {"type": "boolean"},
                "options": {"$ref": "#/definitions/BulkOptions"}
            }
        },
        "FacultyReplaceRequest": {
            "type": "object",
            "required": ["currentFacultyId", "newFacultyId"],
            "properties": {
                "currentFacultyId": {"type": "string"},
                "newFacultyId": {"type": "string"},
                "batchIds": {"type": "array", "items": {"type": "string"}},
                "effectiveDate": {"type": "string"},
                "options": {"$ref": "#/definitions/BulkOptions"}
            }
        },
        "RescheduleRequest": {
            "type": "object",
            "required": ["sourceStart", "sourceEnd", "targetStart", "targetEnd", "moveType"],
            "properties": {
                "sourceStart": {"type": "string"},
                "sourceEnd": {"type": "string"},
                "targetStart": {"type": "string"},
                "targetEnd": {"type": "string"},
                "batchIds": {"type": "array", "items": {"type": "string"}},
                "moveType": {"type": "string", "enum": ["shift", "map"]},
                "options": {"$ref": "#/definitions/BulkOptions"}
            }
        },
        "TemplateApplyRequest": {
            "type": "object",
            "required": ["templateId", "targetBatchIds"],
            "properties": {
                "templateId": {"type": "string"},
                "targetBatchIds": {"type": "array", "items": {"type": "string"}},
                "options": {"$ref": "#/definitions/BulkOptions"}
            }
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
