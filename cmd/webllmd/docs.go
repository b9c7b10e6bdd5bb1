package main

// General API documentation for swaggo. Generate with `swag init -g cmd/webllmd/docs.go`.
//
// @title           webllmd API
// @version         1.0
// @description     Local OpenAI-style chat API whose inference runs in a browser tab through web-llm.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
