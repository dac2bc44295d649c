// Package docs embeds the OpenAPI document served at /swagger.
package docs

import _ "embed"

//go:embed swagger.yaml
var SwaggerYAML []byte
