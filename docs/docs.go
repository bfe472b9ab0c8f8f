// Package docs registers the OpenAPI description served at /swagger.
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
        "/wallet/deposit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Records a pending deposit and returns the confirmation URL and its QR code",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Initiate deposit",
                "parameters": [{"description": "Deposit request", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"amount": {"type": "integer", "minimum": 1, "maximum": 1000000000}}}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/wallet/deposit/callback": {
            "post": {
                "description": "Resolves a pending deposit exactly once. The body must be signed with HMAC-SHA256 in X-Gateway-Signature.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Payment gateway callback",
                "parameters": [
                    {"type": "string", "description": "hex HMAC-SHA256 of the body", "name": "X-Gateway-Signature", "in": "header", "required": true},
                    {"description": "Gateway outcome", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"transactionId": {"type": "string"}, "status": {"type": "string", "enum": ["succeeded", "failed"]}}}}
                ],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/wallet/deposit/{txId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Deposit status",
                "parameters": [{"type": "string", "description": "Transaction ID", "name": "txId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/wallet/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Wallet balance",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wallet/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Newest first",
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Transaction history",
                "parameters": [
                    {"type": "integer", "description": "Page, from 1", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size, at most 100", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/videos/vote": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Debits amount from the caller and adds it to the episode. The vote that reaches the threshold releases the episode.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Cast funding vote",
                "parameters": [{"description": "Funding vote", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"episodeId": {"type": "string"}, "amount": {"type": "integer"}}}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "402": {"description": "Payment Required"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/videos/series": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Create series",
                "parameters": [{"description": "Series", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"title": {"type": "string"}, "description": {"type": "string"}, "coverUrl": {"type": "string"}}}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/videos": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds a FUNDING episode to one of the caller's series. votesRequired of 0 takes the server default.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Create episode",
                "parameters": [{"description": "Episode", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"seriesId": {"type": "string"}, "title": {"type": "string"}, "url": {"type": "string"}, "votesRequired": {"type": "integer"}}}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/videos/workspace": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Author workspace",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/videos/series/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Series details",
                "parameters": [{"type": "string", "description": "Series ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/videos/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Videos"],
                "summary": "Episode details",
                "parameters": [{"type": "string", "description": "Episode ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/interactions/review": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Charges the review fee and opens a POSITIVE or NEGATIVE review on an episode",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Interactions"],
                "summary": "Post review",
                "parameters": [{"description": "Review", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"videoId": {"type": "string"}, "type": {"type": "string", "enum": ["POSITIVE", "NEGATIVE"]}, "content": {"type": "string"}}}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "402": {"description": "Payment Required"}, "404": {"description": "Not Found"}}
            }
        },
        "/interactions/vote-review": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "One execute and one cancel vote per account. The vote that crosses a threshold settles the review.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Interactions"],
                "summary": "Vote on review",
                "parameters": [{"description": "Review vote", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"reviewId": {"type": "string"}, "isCancel": {"type": "boolean"}}}}],
                "responses": {"200": {"description": "OK"}, "402": {"description": "Payment Required"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/interactions/video/{episodeId}/reviews": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Interactions"],
                "summary": "Episode reviews",
                "parameters": [{"type": "string", "description": "Episode ID", "name": "episodeId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/events/subscribe": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "The first frame is CONNECTED with the connection id; clients treat it as \"everything is stale\". Heartbeats are SSE comments.",
                "produces": ["text/event-stream"],
                "tags": ["Events"],
                "summary": "Event stream (SSE)",
                "parameters": [{"type": "string", "description": "JWT, for clients that cannot set headers", "name": "access_token", "in": "query"}],
                "responses": {"200": {"description": "event stream"}}
            }
        },
        "/events/ws": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Server messages are JSON events. Client messages are watch requests.",
                "tags": ["Events"],
                "summary": "Event stream (WebSocket)",
                "parameters": [{"type": "string", "description": "JWT, for clients that cannot set headers", "name": "access_token", "in": "query"}],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/events/{connectionId}/watch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Events"],
                "summary": "Watch entities",
                "parameters": [
                    {"type": "string", "description": "Connection ID from CONNECTED", "name": "connectionId", "in": "path", "required": true},
                    {"description": "Entities to watch", "name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"episodeIds": {"type": "array", "items": {"type": "string"}}, "reviewIds": {"type": "array", "items": {"type": "string"}}, "seriesIds": {"type": "array", "items": {"type": "string"}}}}}
                ],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/events/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Events"],
                "summary": "Broadcast logout",
                "responses": {"204": {"description": "No Content"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "CastFund Backend API",
	Description:      "Episode crowdfunding, paid critic reviews and real-time sync",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
