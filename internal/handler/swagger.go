package handler

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
)

const swaggerDocPath = "/swagger/doc.yaml"

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%s</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
    SwaggerUIBundle({url: %q, dom_id: "#swagger-ui", deepLinking: true});
    </script>
</body>
</html>`

// RegisterSwagger serves the OpenAPI document and a Swagger UI page. It is a no-op without a document.
func RegisterSwagger(r fiber.Router, doc []byte, title string) {
	if len(doc) == 0 {
		slog.Warn("no OpenAPI document embedded, swagger UI disabled")
		return
	}
	page := fmt.Sprintf(swaggerPage, title, swaggerDocPath)

	r.Get(swaggerDocPath, func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(doc)
	})
	r.Get("/swagger/*", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(page)
	})
}
