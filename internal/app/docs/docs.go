// Package docs registers the swagger document served by the /swagger mount.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"}
    },
    "paths": {
        "/cluster/jobs/list": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs, optionally filtered by user, cluster and recency",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/cluster/jobs/one": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Fetch a single job",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/cluster/jobs/user_props": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Read the props of a job",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Merge keys into the props of a job",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "500": {"description": "Props size limit exceeded"}}
            },
            "delete": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "tags": ["jobs"],
                "summary": "Remove keys from the props of a job",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cluster/nodes/list": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["nodes"],
                "summary": "List nodes",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cluster/nodes/one": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["nodes"],
                "summary": "Fetch a single node",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/cluster/gpu/list": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["gpu"],
                "summary": "List the GPU reference table",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cluster/gpu/one": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["gpu"],
                "summary": "Fetch one GPU model",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Clockwork cluster API",
	Description:      "Jobs, nodes and GPU inventory scraped from Slurm clusters.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
