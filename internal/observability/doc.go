// Package observability provides the structured logger and Prometheus
// collectors shared by the HTTP layer and the RAG pipeline.
package observability
