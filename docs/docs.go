// Package docs registers the OpenAPI description served under /swagger.
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
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "ScorerPIN": {"type": "apiKey", "name": "X-Scorer-PIN", "in": "header"}
    },
    "paths": {
        "/tournaments": {
            "get": {"tags": ["tournaments"], "summary": "List tournaments", "parameters": [
                {"name": "club_id", "in": "query", "type": "string"},
                {"name": "status", "in": "query", "type": "string"},
                {"name": "limit", "in": "query", "type": "integer"},
                {"name": "offset", "in": "query", "type": "integer"}
            ], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tournaments"], "summary": "Create a tournament", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}, "403": {"description": "Not a club admin"}}}
        },
        "/tournaments/{tournamentID}": {
            "get": {"tags": ["tournaments"], "summary": "Get a tournament", "parameters": [{"name": "tournamentID", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/tournaments/{tournamentID}/overview": {
            "get": {"tags": ["tournaments"], "summary": "Tournament with matches, group standings and placements", "parameters": [{"name": "tournamentID", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tournaments/{tournamentID}/players": {
            "post": {"tags": ["registration"], "summary": "Apply to a tournament", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Registered or waiting"}, "409": {"description": "Already registered or closed"}}}
        },
        "/tournaments/{tournamentID}/groups": {
            "post": {"tags": ["stages"], "summary": "Generate groups and group matches", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Already generated"}}}
        },
        "/tournaments/{tournamentID}/groups/finish": {
            "post": {"tags": ["stages"], "summary": "Rank groups and close the group stage", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Unfinished group matches"}}}
        },
        "/tournaments/{tournamentID}/knockout": {
            "post": {"tags": ["stages"], "summary": "Seed the knockout bracket", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["stages"], "summary": "Cancel an unstarted knockout bracket", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Knockout already started"}}}
        },
        "/tournaments/{tournamentID}/knockout/manual": {
            "put": {"tags": ["stages"], "summary": "Submit a manual first round", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/tournaments/{tournamentID}/knockout/rounds/{round}/advance": {
            "post": {"tags": ["stages"], "summary": "Build the next knockout round", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Round incomplete or already generated"}}}
        },
        "/tournaments/{tournamentID}/matches": {
            "get": {"tags": ["matches"], "summary": "List matches of a tournament", "responses": {"200": {"description": "OK"}}}
        },
        "/matches/{matchID}/start": {
            "post": {"tags": ["matches"], "summary": "Start a match", "security": [{"BearerAuth": []}, {"ScorerPIN": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Match not pending"}}}
        },
        "/matches/{matchID}/legs": {
            "post": {"tags": ["matches"], "summary": "Record a finished leg", "security": [{"BearerAuth": []}, {"ScorerPIN": []}], "responses": {"200": {"description": "OK"}, "422": {"description": "Impossible checkout"}}}
        },
        "/matches/{matchID}/legs/last": {
            "delete": {"tags": ["matches"], "summary": "Undo the last leg", "security": [{"BearerAuth": []}, {"ScorerPIN": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/leagues": {
            "get": {"tags": ["leagues"], "summary": "List leagues of a club", "parameters": [{"name": "club_id", "in": "query", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["leagues"], "summary": "Create a league", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/leagues/{leagueID}/standings": {
            "get": {"tags": ["leagues"], "summary": "League table", "responses": {"200": {"description": "OK"}}}
        },
        "/leagues/{leagueID}/adjustments": {
            "post": {"tags": ["leagues"], "summary": "Add a manual point adjustment", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Darts Tournament System API",
	Description:      "Club darts tournaments: groups, knockout brackets, live scoring and league tables.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
