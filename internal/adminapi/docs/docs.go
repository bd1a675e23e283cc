// Package docs builds the OpenAPI document describing the admin HTTP
// surface. It is hand-built with go-openapi/spec rather than emitted by
// swag's code generator (see DESIGN.md for why the generated-doc
// registration path was judged too fragile to author by hand), but it
// still serves the same role: something for the swagger UI to render.
package docs

import (
	"encoding/json"

	"github.com/go-openapi/spec"
)

func operation(summary string, responses map[int]string) *spec.Operation {
	op := spec.NewOperation("")
	op.Summary = summary
	op.Responses = &spec.Responses{}
	op.Responses.StatusCodeResponses = make(map[int]spec.Response)
	for code, desc := range responses {
		op.Responses.StatusCodeResponses[code] = *spec.NewResponse().WithDescription(desc)
	}
	return op
}

// Build returns the OpenAPI 2.0 document for the admin API.
func Build() *spec.Swagger {
	doc := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger: "2.0",
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       "raftcore admin API",
					Description: "Cluster status and key/value operations for a raftcore node.",
					Version:     "1.0",
				},
			},
			BasePath: "/",
			Schemes:  []string{"http"},
			Paths: &spec.Paths{
				Paths: map[string]spec.PathItem{
					"/status": {
						PathItemProps: spec.PathItemProps{
							Get: operation("Cluster status for this node", map[int]string{200: "current status"}),
						},
					},
					"/nodes": {
						PathItemProps: spec.PathItemProps{
							Get: operation("Known cluster members", map[int]string{200: "node list"}),
						},
					},
					"/entries": {
						PathItemProps: spec.PathItemProps{
							Post: operation("Submit a key/value mutation", map[int]string{
								200: "accepted by the leader; assigned index and term (not yet committed)",
								409: "not leader",
							}),
						},
					},
					"/entries/{key}": {
						PathItemProps: spec.PathItemProps{
							Get: operation("Read a key's current value", map[int]string{
								200: "value",
								404: "key not found",
							}),
						},
					},
				},
			},
		},
	}
	return doc
}

// JSON renders the document as compact JSON, for serving at /swagger/doc.json.
func JSON() ([]byte, error) {
	return json.Marshal(Build())
}
