package gateway

// Shape names the envelope a list response arrived in.
type Shape string

const (
	ShapeArray    Shape = "array"
	ShapeData     Shape = "data"
	ShapeResponse Shape = "response"
	ShapeOffers   Shape = "offers"
	ShapeSchemes  Shape = "schemes"
	ShapeEmpty    Shape = "empty"
)

var defaultListKeys = []string{"data", "response", "offers", "schemes"}

// Envelope is a normalized list response.
type Envelope struct {
	Shape Shape
	Items []Fields
}

// NormalizeList accepts every list shape the remote is known to return: a
// bare array, or an object holding the array under one of keys (default
// data, response, offers, schemes), possibly nested one level deep such as
// {data:{offers:[...]}}. Anything else normalizes to ShapeEmpty.
func NormalizeList(raw any, keys ...string) Envelope {
	if len(keys) == 0 {
		keys = defaultListKeys
	}
	switch v := raw.(type) {
	case []any:
		return Envelope{Shape: ShapeArray, Items: objects(v)}
	case map[string]any:
		obj := Fields(v)
		for _, k := range keys {
			inner, ok := obj.Any(k)
			if !ok {
				continue
			}
			if arr, ok := inner.([]any); ok {
				return Envelope{Shape: Shape(k), Items: objects(arr)}
			}
			if nested, ok := inner.(map[string]any); ok {
				for _, nk := range keys {
					if arr, ok := Fields(nested).Any(nk); ok {
						if items, ok := arr.([]any); ok {
							return Envelope{Shape: Shape(nk), Items: objects(items)}
						}
					}
				}
			}
		}
	}
	return Envelope{Shape: ShapeEmpty}
}

func objects(arr []any) []Fields {
	out := make([]Fields, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}
