// Package adapter contains implementations of interfaces defined in app.
// DynamoDB, Redis, and SES adapters live here.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("authsvc/adapter")
