package api

import (
	"encoding"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/veesix-networks/netbind/pkg/northbound"
)

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

func buildOpenAPISpec() *openapi3.T {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "netbind API",
			Description: "Bind process traffic to a wireless network and release it",
			Version:     "1.0.0",
		},
		Paths: &openapi3.Paths{},
		Tags: openapi3.Tags{
			{Name: "General", Description: "General API endpoints"},
			{Name: "Binding", Description: "Network binding commands"},
		},
	}

	errorResponses := []openapi3.NewResponsesOption{
		errorStatus(http.StatusBadRequest, "Missing ssid or malformed request"),
		errorStatus(http.StatusConflict, "A bind request is already pending"),
		errorStatus(http.StatusTooManyRequests, "Bind requests are rate limited"),
		errorStatus(http.StatusBadGateway, "The platform failed the request"),
	}

	spec.Paths.Set("/api", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"General"},
			Summary:     "List API paths and callable methods",
			OperationID: "listPaths",
			Responses: openapi3.NewResponses(
				okStatus("Registered paths and methods", reflect.TypeOf(PathsResponse{})),
			),
		},
	})

	spec.Paths.Set("/api/status", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"General"},
			Summary:     "Get binder and API state",
			OperationID: "getStatus",
			Responses: openapi3.NewResponses(
				okStatus("Current state", reflect.TypeOf(StatusResponse{})),
			),
		},
	})

	spec.Paths.Set("/api/bind", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Binding"},
			Summary:     "Bind process traffic to the network with the given SSID",
			OperationID: northbound.MethodBind,
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Required: true,
					Content:  openapi3.NewContentWithJSONSchemaRef(schemaFromType(reflect.TypeOf(BindRequest{}))),
				},
			},
			Responses: openapi3.NewResponses(append([]openapi3.NewResponsesOption{
				okStatus("true when bound, false when the network was lost or unreachable", reflect.TypeOf(ResultResponse{})),
			}, errorResponses...)...),
		},
	})

	spec.Paths.Set("/api/unbind", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Binding"},
			Summary:     "Release the bound network",
			OperationID: northbound.MethodUnbind,
			Responses: openapi3.NewResponses(
				okStatus("true when a bound network was released", reflect.TypeOf(ResultResponse{})),
				errorStatus(http.StatusBadGateway, "The platform refused to clear the override"),
			),
		},
	})

	methods := make([]interface{}, 0, len(northbound.Methods()))
	for _, m := range northbound.Methods() {
		methods = append(methods, m)
	}

	spec.Paths.Set("/api/call/{method}", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Binding"},
			Summary:     "Invoke a method by name",
			OperationID: "call",
			Parameters: openapi3.Parameters{
				{
					Value: &openapi3.Parameter{
						Name:     "method",
						In:       "path",
						Required: true,
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type: &openapi3.Types{"string"},
							Enum: methods,
						}},
					},
				},
			},
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Content: openapi3.NewContentWithJSONSchemaRef(schemaFromType(reflect.TypeOf(northbound.BindParams{}))),
				},
			},
			Responses: openapi3.NewResponses(append([]openapi3.NewResponsesOption{
				okStatus("Method result", reflect.TypeOf(CallResponse{})),
				errorStatus(http.StatusNotImplemented, "Unknown method"),
			}, errorResponses...)...),
		},
	})

	return spec
}

func okStatus(description string, t reflect.Type) openapi3.NewResponsesOption {
	return openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: ptr(description),
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaFromType(t)),
		},
	})
}

func errorStatus(status int, description string) openapi3.NewResponsesOption {
	return openapi3.WithStatus(status, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: ptr(description),
			Content: openapi3.NewContentWithJSONSchemaRef(
				schemaFromType(reflect.TypeOf(ErrorResponse{})),
			),
		},
	})
}

func schemaFromType(t reflect.Type) *openapi3.SchemaRef {
	if t == nil {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == reflect.TypeOf(time.Time{}) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	}

	if t == reflect.TypeOf(time.Duration(0)) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Description: "Duration in nanoseconds"}}
	}

	if t.Kind() != reflect.Struct && t.Implements(textMarshalerType) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "byte"}}
		}
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaFromType(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFromType(t.Elem())},
			},
		}

	case reflect.Struct:
		return structToSchema(t)
	}

	return &openapi3.SchemaRef{Value: &openapi3.Schema{}}
}

func structToSchema(t reflect.Type) *openapi3.SchemaRef {
	properties := openapi3.Schemas{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}

		propSchema := schemaFromType(field.Type)

		if desc := field.Tag.Get("description"); desc != "" {
			propSchema.Value.Description = desc
		}

		if !omitempty && field.Type.Kind() != reflect.Ptr && field.Type.Kind() != reflect.Interface {
			required = append(required, name)
		}
		properties[name] = propSchema
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
			Required:   required,
		},
	}
}

func ptr(s string) *string {
	return &s
}
