// Package logging provides a fluent field builder that bridges structured
// log context into logrus.Fields, plus a set of domain-scoped constructors
// used across the QA intelligence core.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a fluent builder over a flat key/value map destined for logrus.
type Fields map[string]interface{}

// NewFields returns an empty Fields builder.
func NewFields() Fields {
	return Fields{}
}

// Component sets the component field.
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation sets the operation field.
func (f Fields) Operation(op string) Fields {
	f["operation"] = op
	return f
}

// Resource sets resource_type and, if non-empty, resource_name.
func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Duration sets duration_ms from a time.Duration.
func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Error sets the error field if err is non-nil.
func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// UserID sets user_id if non-empty.
func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

// RequestID sets request_id.
func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

// TraceID sets trace_id.
func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

// StatusCode sets status_code.
func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

// Method sets method.
func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

// URL sets url.
func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

// Count sets count.
func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

// Size sets size_bytes.
func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

// Version sets version.
func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

// Custom sets an arbitrary key.
func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts Fields to logrus.Fields for use with a *logrus.Entry.
func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields builds fields for a database operation against a table.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds fields for an HTTP request/response.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields builds fields for a workflow operation.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// KubernetesFields builds fields for a Kubernetes resource operation.
func KubernetesFields(operation, resourceType, name, namespace string) Fields {
	f := NewFields().Component("kubernetes").Operation(operation).Resource(resourceType, name)
	if namespace != "" {
		f["namespace"] = namespace
	}
	return f
}

// AIFields builds fields for an AI provider operation against a model.
func AIFields(operation, model string) Fields {
	return NewFields().Component("ai").Operation(operation).Custom("model", model)
}

// MetricsFields builds fields for a metrics recording operation.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}

// SecurityFields builds fields for a security-sensitive operation.
func SecurityFields(operation, subject string) Fields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// PerformanceFields builds fields for a timed operation outcome.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(d).Custom("success", success)
}

// IntegrationFields builds fields for an integration health check operation.
func IntegrationFields(operation, integration string) Fields {
	return NewFields().Component("health").Operation(operation).Resource("integration", integration)
}
