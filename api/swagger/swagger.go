package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ePathshala Portal API",
        "description": "Role based school portal: authentication, navigation shell, notifications and realtime chat.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login, logout and session administration"},
        {"name": "Navigation", "description": "Role menus and the layout shell"},
        {"name": "Layout", "description": "Sidebar collapse preferences per layout variant"},
        {"name": "Notifications", "description": "Notification bell, announcements and topic broadcasts"},
        {"name": "Routes", "description": "Route table and guard decisions"},
        {"name": "Chat", "description": "Chat room history"},
        {"name": "Users", "description": "Account administration"},
        {"name": "System", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/status": {
            "get": {"tags": ["Auth"], "summary": "Authentication service status", "responses": {"200": {"description": "OK"}}}
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email, password and role",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "Tokens and role redirect"}, "401": {"description": "Invalid credentials or role"}}
            }
        },
        "/auth/refresh": {
            "post": {"tags": ["Auth"], "summary": "Rotate a refresh token", "responses": {"200": {"description": "New access token"}, "401": {"description": "Invalid refresh token"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["Auth"], "summary": "Revoke the current session", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "Logged out"}}}
        },
        "/auth/change-password": {
            "post": {"tags": ["Auth"], "summary": "Change the caller's password", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "Changed"}}}
        },
        "/auth/forgot-password": {
            "post": {"tags": ["Auth"], "summary": "Issue a password reset code", "responses": {"202": {"description": "Accepted"}}}
        },
        "/auth/verify-otp": {
            "post": {"tags": ["Auth"], "summary": "Reset a password with a code", "responses": {"204": {"description": "Password reset"}, "400": {"description": "Invalid or expired code"}}}
        },
        "/auth/me": {
            "get": {"tags": ["Auth"], "summary": "Current user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/auth/token-status": {
            "get": {"tags": ["Auth"], "summary": "Access token expiry", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/auth/sessions": {
            "get": {"tags": ["Auth"], "summary": "List active sessions (admin)", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/auth/session/{id}": {
            "get": {
                "tags": ["Auth"],
                "summary": "Session details (owner or admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/auth/sessions/export": {
            "get": {
                "tags": ["Auth"],
                "summary": "Export active sessions (admin)",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/navigation/menu": {
            "get": {
                "tags": ["Navigation"],
                "summary": "Role menu",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "role", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/navigation/shell": {
            "get": {
                "tags": ["Navigation"],
                "summary": "Layout shell for the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "variant", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/navigation/shell.html": {
            "get": {"tags": ["Navigation"], "summary": "Rendered layout shell", "security": [{"BearerAuth": []}], "produces": ["text/html"], "responses": {"200": {"description": "HTML"}}}
        },
        "/layout/preferences": {
            "get": {"tags": ["Layout"], "summary": "All sidebar preferences", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/layout/preferences/{variant}": {
            "get": {
                "tags": ["Layout"],
                "summary": "Sidebar preference for a layout",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "variant", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Layout"],
                "summary": "Store a sidebar preference",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "variant", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LayoutPreferenceRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/layout/preferences/{variant}/toggle": {
            "post": {
                "tags": ["Layout"],
                "summary": "Toggle the sidebar",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "variant", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/user": {
            "get": {"tags": ["Notifications"], "summary": "Caller's notifications", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/user/unread/count": {
            "get": {"tags": ["Notifications"], "summary": "Unread badge count", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/user/summary": {
            "get": {"tags": ["Notifications"], "summary": "List and count together", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/mark-read/{id}": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark one notification read",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Marked"}, "404": {"description": "Not found"}}
            }
        },
        "/notifications/mark-all-read": {
            "post": {"tags": ["Notifications"], "summary": "Mark all notifications read", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/announcements": {
            "get": {"tags": ["Notifications"], "summary": "Active announcements", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["Notifications"],
                "summary": "Create an announcement (admin, teacher)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnnouncementRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/notifications/assignment": {
            "post": {"tags": ["Notifications"], "summary": "Broadcast to /topic/assignment", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Queued"}}}
        },
        "/notifications/leaveApproval": {
            "post": {"tags": ["Notifications"], "summary": "Broadcast to /topic/leaveApproval", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Queued"}}}
        },
        "/routes": {
            "get": {"tags": ["Routes"], "summary": "Route table", "responses": {"200": {"description": "OK"}}}
        },
        "/routes/resolve": {
            "get": {
                "tags": ["Routes"],
                "summary": "Guard decision for a path",
                "parameters": [{"name": "path", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/rooms/{roomId}/messages": {
            "get": {
                "tags": ["Chat"],
                "summary": "Recent room messages",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "roomId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List accounts (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create an account (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Email already exists"}}
            }
        },
        "/admin/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get an account", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Users"], "summary": "Update an account", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Users"], "summary": "Deactivate an account", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "Deactivated"}}}
        },
        "/events": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List academic events",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/events/{id}": {
            "get": {"tags": ["Calendar"], "summary": "Get an academic event", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/admin/events": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Create an academic event and announce it (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CalendarEventRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/admin/events/{id}": {
            "put": {"tags": ["Calendar"], "summary": "Update an academic event", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CalendarEventRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Calendar"], "summary": "Delete an academic event", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/system/metrics": {
            "get": {"tags": ["System"], "summary": "Metrics snapshot (admin)", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "STUDENT", "TEACHER", "PARENT"]}
            },
            "required": ["email", "password"]
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "STUDENT", "TEACHER", "PARENT"]},
                "password": {"type": "string"}
            },
            "required": ["email", "full_name", "role", "password"]
        },
        "CalendarEventRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "event_type": {"type": "string", "enum": ["HOLIDAY", "EXAM", "MEETING", "EVENT"]},
                "start_date": {"type": "string", "format": "date-time"},
                "end_date": {"type": "string", "format": "date-time"},
                "audience": {"type": "string", "enum": ["ALL", "ADMIN", "STUDENT", "TEACHER", "PARENT"]},
                "location": {"type": "string"}
            },
            "required": ["title", "start_date"]
        },
        "LayoutPreferenceRequest": {
            "type": "object",
            "properties": {
                "collapsed": {"type": "boolean"}
            },
            "required": ["collapsed"]
        },
        "AnnouncementRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "priority": {"type": "string"}
            },
            "required": ["title", "content"]
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
