// Package docs holds the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/goran-ethernal/NFTIndexor"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/indexers": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Indexers"],
                "summary": "List all indexers",
                "responses": {
                    "200": {
                        "description": "List of indexers",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/api.IndexerInfo"}}
                    }
                }
            }
        },
        "/indexers/{name}/entities/{type}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "List entities",
                "parameters": [
                    {"type": "string", "description": "Indexer name", "name": "name", "in": "path", "required": true},
                    {
                        "enum": ["factories", "collections", "instances", "balances", "transfers", "listings", "bids", "listing-history", "bid-history", "ownerships"],
                        "type": "string", "description": "Entity type", "name": "type", "in": "path", "required": true
                    },
                    {"type": "integer", "default": 100, "description": "Maximum number of entities to return", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Number of entities to skip", "name": "offset", "in": "query"},
                    {"type": "integer", "description": "Only entities from this block number", "name": "from_block", "in": "query"},
                    {"type": "integer", "description": "Only entities up to this block number", "name": "to_block", "in": "query"},
                    {"type": "string", "description": "Match any address column of the entity type", "name": "address", "in": "query"},
                    {"type": "string", "description": "Column to sort by", "name": "sort_by", "in": "query"},
                    {"enum": ["asc", "desc"], "type": "string", "description": "Sort order", "name": "sort_order", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Entities with pagination info", "schema": {"$ref": "#/definitions/api.EntityResponse"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Indexer or entity type not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/indexers/{name}/entities/{type}/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "Get an entity",
                "parameters": [
                    {"type": "string", "description": "Indexer name", "name": "name", "in": "path", "required": true},
                    {"type": "string", "description": "Entity type", "name": "type", "in": "path", "required": true},
                    {"type": "string", "description": "Entity id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "The entity", "schema": {"type": "object"}},
                    "404": {"description": "Indexer, entity type or entity not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/indexers/{name}/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Get indexer statistics",
                "parameters": [
                    {"type": "string", "description": "Indexer name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Indexer statistics", "schema": {"$ref": "#/definitions/indexer.StatsResponse"}},
                    "404": {"description": "Indexer not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/indexers/{name}/timeseries/{type}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Get activity timeseries",
                "parameters": [
                    {"type": "string", "description": "Indexer name", "name": "name", "in": "path", "required": true},
                    {"enum": ["transfers", "listing-history", "bid-history"], "type": "string", "description": "Entity type", "name": "type", "in": "path", "required": true},
                    {"enum": ["hour", "day", "week"], "type": "string", "default": "day", "description": "Time period interval", "name": "interval", "in": "query"},
                    {"type": "integer", "description": "Only entities from this block number", "name": "from_block", "in": "query"},
                    {"type": "integer", "description": "Only entities up to this block number", "name": "to_block", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "Timeseries data points",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/indexer.TimeseriesDataPoint"}}
                    },
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Indexer or entity type not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.EntityResponse": {
            "type": "object",
            "properties": {
                "entities": {},
                "pagination": {"$ref": "#/definitions/api.PaginationResult"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "api.IndexerInfo": {
            "type": "object",
            "properties": {
                "endpoints": {"type": "array", "items": {"type": "string"}},
                "entity_types": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "api.PaginationResult": {
            "type": "object",
            "properties": {
                "has_more": {"type": "boolean"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "indexer.StatsResponse": {
            "description": "Entity counts and processed block range of an indexer",
            "type": "object",
            "properties": {
                "earliest_block": {"type": "integer", "example": 19000000},
                "entity_counts": {"type": "object", "additionalProperties": {"type": "integer", "format": "int64"}},
                "latest_block": {"type": "integer", "example": 19500000},
                "total_entities": {"type": "integer", "example": 150000}
            }
        },
        "indexer.TimeseriesDataPoint": {
            "description": "Number of entities recorded in one period",
            "type": "object",
            "properties": {
                "count": {"type": "integer", "example": 1250},
                "max_block": {"type": "integer", "example": 19510000},
                "min_block": {"type": "integer", "example": 19500000},
                "period": {"type": "string", "example": "2024-01-15"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "NFTIndexor API",
	Description:      "Read-only REST API over the NFT collections, tokens, transfers and marketplace activity indexed by NFTIndexor",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
